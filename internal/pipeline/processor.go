package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/hirelens/hirelens/internal/chunker"
	"github.com/hirelens/hirelens/internal/embeddings"
	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/nlp"
	"github.com/hirelens/hirelens/internal/queue"
	"github.com/hirelens/hirelens/internal/repositories/postgres"
	"github.com/hirelens/hirelens/internal/scoring"
	"github.com/hirelens/hirelens/internal/summary"
	"github.com/hirelens/hirelens/internal/textextract"
	"github.com/hirelens/hirelens/internal/utils"
)

// Enqueuer is the slice of a queue the processor needs to chain stages.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// TextExtractor pulls normalized text out of a resume file.
type TextExtractor interface {
	ExtractFile(path string) (string, *textextract.Metadata, error)
}

// EmbeddingClient is the slice of the embedding client the stages use.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) (*embeddings.Result, error)
}

// SummaryGenerator produces the final fit summary.
type SummaryGenerator interface {
	Generate(ctx context.Context, in summary.Input) (*summary.FitSummary, error)
}

// FeatureExtractor derives structured CV features from extracted text.
type FeatureExtractor interface {
	Extract(ctx context.Context, text string) (*nlp.ProcessedCvData, error)
}

// SkillNormalizer maps job posting skill names to canonical taxonomy names.
type SkillNormalizer interface {
	NormalizeJobSkills(ctx context.Context, skills []string) ([]string, error)
}

// Deps collects everything the three stage handlers touch.
type Deps struct {
	Screenings postgres.ScreeningRepository
	Apps       postgres.ApplicationRepository
	Postings   postgres.JobPostingRepository
	Embeddings postgres.EmbeddingRepository

	Extractor TextExtractor
	Embedder  EmbeddingClient
	NLP       FeatureExtractor
	Matcher   SkillNormalizer
	Summaries SummaryGenerator

	SimilarityQueue Enqueuer
	SummaryQueue    Enqueuer

	ChunkConfig chunker.Config
	Logger      *logrus.Logger
}

// Processor implements the three screening stages. Each stage loads the
// screening row fresh, skips cancelled jobs, persists its output, then
// enqueues the next stage. Intermediate state travels through the database,
// not the queue message.
type Processor struct {
	deps Deps
	log  *logrus.Logger
	now  func() time.Time
}

func NewProcessor(deps Deps) *Processor {
	if deps.ChunkConfig.MaxChunkSize <= 0 {
		deps.ChunkConfig = chunker.DefaultConfig()
	}
	return &Processor{deps: deps, log: deps.Logger, now: time.Now}
}

// ProcessCV is the first stage: extract text, derive NLP features, chunk
// and embed the resume.
func (p *Processor) ProcessCV(ctx context.Context, job queue.Job) error {
	const op = "Processor.ProcessCV"

	row, skip, err := p.loadActive(ctx, op, job)
	if err != nil || skip {
		return err
	}
	log := p.jobLog(job, "cv-processing")

	text, meta, err := p.deps.Extractor.ExtractFile(job.ResumePath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "resume contains no extractable text", nil)
	}
	if err := p.deps.Screenings.SetProcessing(ctx, row.ID, text); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist extracted text", err)
	}
	log.WithFields(logrus.Fields{"chars": len(text), "pages": meta.PageCount}).Info("resume text extracted")

	features, err := p.deps.NLP.Extract(ctx, text)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode nlp features", err)
	}
	if err := p.deps.Screenings.SetNLPFeatures(ctx, row.ID, datatypes.JSON(raw)); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist nlp features", err)
	}

	if err := p.embedChunks(ctx, job.ApplicationID, text); err != nil {
		return err
	}

	full, err := p.deps.Embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	err = p.deps.Embeddings.Upsert(ctx, &models.Embedding{
		EmbeddingType: models.EmbeddingCVFullText,
		ApplicationID: job.ApplicationID,
		Embedding:     pgvector.NewVector(full.Vector),
		Model:         full.Model,
		Dimensions:    full.Dimensions,
		OriginalText:  embeddings.Truncate(text, 2000),
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist cv embedding", err)
	}

	log.Info("cv processing stage done")
	return p.deps.SimilarityQueue.Enqueue(ctx, nextStage(job))
}

func (p *Processor) embedChunks(ctx context.Context, applicationID uint, text string) error {
	const op = "Processor.embedChunks"

	pieces := chunker.Split(text, p.deps.ChunkConfig)
	rows := make([]models.EmbeddingChunk, 0, len(pieces))
	for _, c := range pieces {
		res, err := p.deps.Embedder.Embed(ctx, c.Text)
		if err != nil {
			return err
		}
		rows = append(rows, models.EmbeddingChunk{
			ApplicationID: applicationID,
			ChunkIndex:    c.ChunkIndex,
			ChunkText:     c.Text,
			StartPosition: c.StartPosition,
			EndPosition:   c.EndPosition,
			Embedding:     pgvector.NewVector(res.Vector),
			Model:         res.Model,
		})
	}
	if err := p.deps.Embeddings.ReplaceChunks(ctx, applicationID, rows); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist chunk embeddings", err)
	}
	return nil
}

// ComputeSimilarity is the second stage: compare the CV against the job
// posting and persist the score breakdown.
func (p *Processor) ComputeSimilarity(ctx context.Context, job queue.Job) error {
	const op = "Processor.ComputeSimilarity"

	row, skip, err := p.loadActive(ctx, op, job)
	if err != nil || skip {
		return err
	}
	log := p.jobLog(job, "similarity")

	posting, err := p.deps.Postings.GetByID(ctx, job.JobPostingID)
	if err != nil {
		return utils.E(utils.CodeNotFound, op, fmt.Sprintf("job posting %d not found", job.JobPostingID), err)
	}

	cvEmb, err := p.deps.Embeddings.Get(ctx, models.EmbeddingCVFullText, job.ApplicationID, 0)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "cv embedding missing", err)
	}
	jobVec, err := p.jobPostingVector(ctx, posting)
	if err != nil {
		return err
	}

	similarity := scoring.CosineSimilarity(cvEmb.Embedding.Slice(), jobVec)

	features, err := decodeFeatures(row.NLPFeatures)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "stored nlp features unreadable", err)
	}

	jobSkills, err := p.deps.Matcher.NormalizeJobSkills(ctx, posting.Skills)
	if err != nil {
		return err
	}
	skillsScore := scoring.SkillsMatchScore(jobSkills, features.SkillNames())
	expScore := scoring.ExperienceMatchScore(features.TotalExperienceYears(),
		posting.MinExperienceYears, posting.MaxExperienceYears)
	eduScore := scoring.EducationMatchScore(posting.EducationLevel, features.EducationTexts())

	breakdown := scoring.Compute(similarity, skillsScore, expScore, eduScore)
	err = p.deps.Screenings.SetScores(ctx, row.ID, postgres.ScoreUpdate{
		OverallScore:    breakdown.OverallScore,
		SkillsScore:     breakdown.SkillsScore,
		ExperienceScore: breakdown.ExperienceScore,
		EducationScore:  breakdown.EducationScore,
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist scores", err)
	}

	log.WithFields(logrus.Fields{
		"overall":    breakdown.OverallScore,
		"similarity": breakdown.VectorSimilarity,
	}).Info("similarity stage done")
	return p.deps.SummaryQueue.Enqueue(ctx, nextStage(job))
}

// jobPostingVector returns the posting's embedding, creating and persisting
// it on first use.
func (p *Processor) jobPostingVector(ctx context.Context, posting *models.JobPosting) ([]float32, error) {
	const op = "Processor.jobPostingVector"

	existing, err := p.deps.Embeddings.Get(ctx, models.EmbeddingJobPosting, 0, posting.ID)
	if err == nil {
		return existing.Embedding.Slice(), nil
	}

	text := strings.TrimSpace(posting.Title + "\n" + posting.Description + "\n" + posting.Requirements)
	res, err := p.deps.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	err = p.deps.Embeddings.Upsert(ctx, &models.Embedding{
		EmbeddingType: models.EmbeddingJobPosting,
		JobPostingID:  posting.ID,
		Embedding:     pgvector.NewVector(res.Vector),
		Model:         res.Model,
		Dimensions:    res.Dimensions,
		OriginalText:  embeddings.Truncate(text, 2000),
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist job posting embedding", err)
	}
	return res.Vector, nil
}

// GenerateSummary is the final stage: produce the AI summary and write the
// terminal result, including the denormalized fields on the application.
func (p *Processor) GenerateSummary(ctx context.Context, job queue.Job) error {
	const op = "Processor.GenerateSummary"

	row, skip, err := p.loadActive(ctx, op, job)
	if err != nil || skip {
		return err
	}
	log := p.jobLog(job, "summary-generation")

	posting, err := p.deps.Postings.GetByID(ctx, job.JobPostingID)
	if err != nil {
		return utils.E(utils.CodeNotFound, op, fmt.Sprintf("job posting %d not found", job.JobPostingID), err)
	}
	features, err := decodeFeatures(row.NLPFeatures)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "stored nlp features unreadable", err)
	}

	fit, err := p.deps.Summaries.Generate(ctx, summary.Input{
		ExtractedText:  row.ExtractedText,
		Features:       features,
		JobDescription: posting.Title + "\n" + posting.Description + "\n" + posting.Requirements,
	})
	if err != nil {
		return err
	}

	// A cancellation may have landed while the model was generating; never
	// overwrite it with a completed result.
	fresh, err := p.deps.Screenings.GetByID(ctx, row.ID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to reload screening", err)
	}
	if fresh.Cancelled() {
		log.Info("screening cancelled mid-flight, discarding summary")
		return nil
	}

	completedAt := p.now().UTC()
	err = p.deps.Screenings.Complete(ctx, row.ID, postgres.CompletionUpdate{
		AISummary:        fit.Summary,
		KeyHighlights:    fit.KeyHighlights,
		Concerns:         fit.Concerns,
		ProcessingTimeMs: completedAt.Sub(runStart(fresh)).Milliseconds(),
		CompletedAt:      completedAt,
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to complete screening", err)
	}

	err = p.deps.Apps.WriteBackScreening(ctx, job.ApplicationID,
		fresh.OverallScore, string(models.ScreeningCompleted), &completedAt)
	if err != nil {
		// The screening result itself is complete; log and move on.
		log.WithError(err).Warn("application write-back failed")
	}

	log.WithField("recommendation", fit.Recommendation).Info("screening completed")
	return nil
}

// MarkFailed is the queue failure handler: it records the terminal error on
// the screening row unless the job was already cancelled.
func (p *Processor) MarkFailed(ctx context.Context, job queue.Job, cause error) {
	row, err := p.deps.Screenings.GetByID(ctx, job.ScreeningID)
	if err != nil {
		p.jobLog(job, "failure").WithError(err).Error("cannot load screening to mark failed")
		return
	}
	if row.Cancelled() {
		return
	}

	msg := cause.Error()
	if r := []rune(msg); len(r) > 500 {
		msg = string(r[:500])
	}
	elapsed := p.now().Sub(runStart(row)).Milliseconds()
	if err := p.deps.Screenings.MarkFailed(ctx, row.ID, msg, elapsed); err != nil {
		p.jobLog(job, "failure").WithError(err).Error("failed to mark screening failed")
		return
	}
	_ = p.deps.Apps.WriteBackScreening(ctx, job.ApplicationID, 0, string(models.ScreeningFailed), nil)
}

// loadActive fetches the job's screening row, reporting skip for rows
// cancelled before the stage started.
func (p *Processor) loadActive(ctx context.Context, op string, job queue.Job) (*models.ScreeningResult, bool, error) {
	row, err := p.deps.Screenings.GetByID(ctx, job.ScreeningID)
	if err != nil {
		return nil, false, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("screening %d not found", job.ScreeningID), err)
	}
	if row.Cancelled() {
		p.jobLog(job, "skip").Info("screening cancelled, skipping job")
		return nil, true, nil
	}
	return row, false, nil
}

func (p *Processor) jobLog(job queue.Job, stage string) *logrus.Entry {
	return p.log.WithFields(logrus.Fields{
		"stage":          stage,
		"job_id":         job.ID,
		"application_id": job.ApplicationID,
		"screening_id":   job.ScreeningID,
	})
}

// runStart is the moment the current run began work. Rows that never
// reached the processing stage fall back to their creation time.
func runStart(row *models.ScreeningResult) time.Time {
	if row.StartedAt != nil {
		return *row.StartedAt
	}
	return row.CreatedAt
}

// nextStage forwards a job to the following queue with the retry counter
// reset; each stage gets its own attempt budget.
func nextStage(job queue.Job) queue.Job {
	job.Attempt = 1
	return job
}

func decodeFeatures(raw datatypes.JSON) (*nlp.ProcessedCvData, error) {
	if len(raw) == 0 {
		return &nlp.ProcessedCvData{}, nil
	}
	var features nlp.ProcessedCvData
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, err
	}
	return &features, nil
}
