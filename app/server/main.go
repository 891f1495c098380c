package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/unidoc/unipdf/v3/common/license"

	"github.com/hirelens/hirelens/config"
	"github.com/hirelens/hirelens/internal/api/handlers"
	"github.com/hirelens/hirelens/internal/api/middleware"
	"github.com/hirelens/hirelens/internal/api/routes"
	"github.com/hirelens/hirelens/internal/cache"
	"github.com/hirelens/hirelens/internal/chunker"
	"github.com/hirelens/hirelens/internal/embeddings"
	"github.com/hirelens/hirelens/internal/logger"
	"github.com/hirelens/hirelens/internal/nlp"
	"github.com/hirelens/hirelens/internal/pipeline"
	"github.com/hirelens/hirelens/internal/providers/llm"
	"github.com/hirelens/hirelens/internal/queue"
	pgrepo "github.com/hirelens/hirelens/internal/repositories/postgres"
	"github.com/hirelens/hirelens/internal/services"
	"github.com/hirelens/hirelens/internal/storage"
	"github.com/hirelens/hirelens/internal/summary"
	"github.com/hirelens/hirelens/internal/taxonomy"
	"github.com/hirelens/hirelens/internal/textextract"
)

func main() {
	_ = godotenv.Load()

	logg := logger.New()

	if key := os.Getenv("UNIDOC_LICENSE_API_KEY"); key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			log.Fatalf("unidoc license error: %v", err)
		}
	}

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	logg.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	logg.Info("Redis connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	screenings := pgrepo.NewScreeningRepo(config.PostgresDB)
	apps := pgrepo.NewApplicationRepo(config.PostgresDB)
	postings := pgrepo.NewJobPostingRepo(config.PostgresDB)
	embStore := pgrepo.NewEmbeddingRepo(config.PostgresDB)
	skills := pgrepo.NewSkillRepo(config.PostgresDB)

	// Providers
	embProvider := embeddings.NewOpenAIProvider(
		os.Getenv("OPENAI_API_KEY"),
		os.Getenv("EMBEDDING_MODEL"),
		envInt("EMBEDDING_DIMENSIONS", 768),
	)
	embClient := embeddings.NewClient(embProvider, logg)

	var llmProvider llm.Provider
	if projectID := os.Getenv("VERTEX_PROJECT_ID"); projectID != "" {
		p, err := llm.NewVertexGemini(ctx, projectID,
			os.Getenv("VERTEX_LOCATION"), os.Getenv("VERTEX_MODEL"))
		if err != nil {
			log.Fatalf("Vertex init error: %v", err)
		}
		defer p.Close()
		llmProvider = p
	} else {
		logg.Warn("VERTEX_PROJECT_ID not set, summaries fall back to heuristics")
	}

	// Domain components
	matcher := taxonomy.NewMatcher(skills, embeddings.VectorAdapter{Client: embClient}, logg)
	if err := matcher.Refresh(ctx); err != nil {
		logg.WithError(err).Warn("initial skill taxonomy load failed, will retry lazily")
	}
	nlpExtractor := nlp.NewExtractor(matcher, envFloat("SEMANTIC_THRESHOLD", taxonomy.DefaultSemanticThreshold), logg)
	summaries := summary.NewGenerator(llmProvider, logg)

	// Queues and pipeline. The processor enqueues onto the next stage, so
	// the queues wrap its methods in closures resolved at dispatch time.
	var processor *pipeline.Processor
	onFailure := func(ctx context.Context, job queue.Job, err error) {
		processor.MarkFailed(ctx, job, err)
	}

	cvQ := queue.New(config.RedisClient, queueFor(queue.QueueCVProcessing, 2),
		func(ctx context.Context, j queue.Job) error { return processor.ProcessCV(ctx, j) }, onFailure, logg)
	simQ := queue.New(config.RedisClient, queueFor(queue.QueueSimilarity, 3),
		func(ctx context.Context, j queue.Job) error { return processor.ComputeSimilarity(ctx, j) }, onFailure, logg)
	sumQ := queue.New(config.RedisClient, queueFor(queue.QueueSummary, 1),
		func(ctx context.Context, j queue.Job) error { return processor.GenerateSummary(ctx, j) }, onFailure, logg)

	processor = pipeline.NewProcessor(pipeline.Deps{
		Screenings:      screenings,
		Apps:            apps,
		Postings:        postings,
		Embeddings:      embStore,
		Extractor:       textextract.NewExtractor(),
		Embedder:        embClient,
		NLP:             nlpExtractor,
		Matcher:         matcher,
		Summaries:       summaries,
		SimilarityQueue: simQ,
		SummaryQueue:    sumQ,
		ChunkConfig:     chunker.DefaultConfig(),
		Logger:          logg,
	})

	cvQ.Start(ctx)
	simQ.Start(ctx)
	sumQ.Start(ctx)
	logg.Info("screening workers started")

	// Service and HTTP surface
	svc := services.NewScreeningService(services.ScreeningServiceDeps{
		Screenings: screenings,
		Apps:       apps,
		Postings:   postings,
		Embeddings: embStore,
		Resolver:   storage.NewLocalResolver(os.Getenv("UPLOADS_DIR")),
		CVQueue:    cvQ,
		Queues:     []services.StatusReporter{cvQ, simQ, sumQ},
		Taxonomy:   matcher,
		Cache:      cache.NewRedisCache(config.RedisClient),
		Logger:     logg,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logg))

	routes.RegisterRoutes(r, routes.Deps{
		Screening: handlers.NewScreeningHandler(svc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func queueFor(name string, concurrency int) queue.Config {
	return queue.Config{
		Name:        name,
		Concurrency: concurrency,
		MaxAttempts: envInt("JOB_MAX_ATTEMPTS", 3),
		BaseBackoff: time.Duration(envInt("JOB_BACKOFF_SECONDS", 2)) * time.Second,
	}
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return def
}
