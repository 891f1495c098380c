package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/hirelens/hirelens/internal/embeddings"
	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/nlp"
	"github.com/hirelens/hirelens/internal/queue"
	"github.com/hirelens/hirelens/internal/repositories/postgres"
	"github.com/hirelens/hirelens/internal/summary"
	"github.com/hirelens/hirelens/internal/textextract"
	"github.com/hirelens/hirelens/internal/utils"
)

type fakeScreenings struct {
	rows map[uint]*models.ScreeningResult

	processingText string
	features       datatypes.JSON
	scores         *postgres.ScoreUpdate
	completion     *postgres.CompletionUpdate
	failedMsg      string
}

func (f *fakeScreenings) Insert(_ context.Context, r *models.ScreeningResult) error {
	f.rows[r.ID] = r
	return nil
}

func (f *fakeScreenings) GetByID(_ context.Context, id uint) (*models.ScreeningResult, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeScreenings) LatestByApplication(context.Context, uint) (*models.ScreeningResult, error) {
	return nil, utils.ErrNotFound
}

func (f *fakeScreenings) ListByJobPosting(context.Context, uint, int, int) ([]models.ScreeningResult, int64, error) {
	return nil, 0, nil
}

func (f *fakeScreenings) SetProcessing(_ context.Context, id uint, text string) error {
	f.processingText = text
	f.rows[id].Status = models.ScreeningProcessing
	f.rows[id].ExtractedText = text
	now := time.Now()
	f.rows[id].StartedAt = &now
	return nil
}

func (f *fakeScreenings) SetNLPFeatures(_ context.Context, id uint, features datatypes.JSON) error {
	f.features = features
	f.rows[id].NLPFeatures = features
	return nil
}

func (f *fakeScreenings) SetScores(_ context.Context, id uint, s postgres.ScoreUpdate) error {
	f.scores = &s
	f.rows[id].OverallScore = s.OverallScore
	return nil
}

func (f *fakeScreenings) Complete(_ context.Context, id uint, upd postgres.CompletionUpdate) error {
	f.completion = &upd
	f.rows[id].Status = models.ScreeningCompleted
	return nil
}

func (f *fakeScreenings) MarkFailed(_ context.Context, id uint, msg string, elapsedMs int64) error {
	f.failedMsg = msg
	f.rows[id].Status = models.ScreeningFailed
	f.rows[id].ErrorMessage = msg
	f.rows[id].ProcessingTimeMs = elapsedMs
	return nil
}

func (f *fakeScreenings) ResetForRetry(context.Context, uint) error { return nil }

type fakeApps struct {
	wroteStatus string
	wroteScore  float64
}

func (f *fakeApps) GetByID(context.Context, uint) (*models.JobApplication, error) {
	return nil, utils.ErrNotFound
}

func (f *fakeApps) ListIDsByJobPosting(context.Context, uint) ([]uint, error) { return nil, nil }

func (f *fakeApps) WriteBackScreening(_ context.Context, _ uint, score float64, status string, _ *time.Time) error {
	f.wroteScore = score
	f.wroteStatus = status
	return nil
}

type fakePostings struct {
	posting *models.JobPosting
}

func (f *fakePostings) GetByID(context.Context, uint) (*models.JobPosting, error) {
	if f.posting == nil {
		return nil, utils.ErrNotFound
	}
	return f.posting, nil
}

type fakeEmbStore struct {
	vectors map[string]*models.Embedding
	chunks  []models.EmbeddingChunk
}

func embKey(t models.EmbeddingType, app, posting uint) string {
	return fmt.Sprintf("%s/%d/%d", t, app, posting)
}

func (f *fakeEmbStore) Upsert(_ context.Context, e *models.Embedding) error {
	f.vectors[embKey(e.EmbeddingType, e.ApplicationID, e.JobPostingID)] = e
	return nil
}

func (f *fakeEmbStore) Get(_ context.Context, t models.EmbeddingType, app, posting uint) (*models.Embedding, error) {
	e, ok := f.vectors[embKey(t, app, posting)]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return e, nil
}

func (f *fakeEmbStore) ReplaceChunks(_ context.Context, _ uint, chunks []models.EmbeddingChunk) error {
	f.chunks = chunks
	return nil
}

func (f *fakeEmbStore) TopChunks(context.Context, uint, pgvector.Vector, int) ([]postgres.ChunkMatch, error) {
	return nil, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractFile(string) (string, *textextract.Metadata, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.text, &textextract.Metadata{PageCount: 1, ByteSize: len(f.text)}, nil
}

type fakeEmbedder struct {
	vector []float32
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) (*embeddings.Result, error) {
	f.calls++
	return &embeddings.Result{Vector: f.vector, Model: "test-model", Dimensions: len(f.vector)}, nil
}

type fakeSummaries struct {
	fit *summary.FitSummary
}

func (f *fakeSummaries) Generate(context.Context, summary.Input) (*summary.FitSummary, error) {
	return f.fit, nil
}

type captureQueue struct {
	jobs []queue.Job
}

func (c *captureQueue) Enqueue(_ context.Context, j queue.Job) error {
	c.jobs = append(c.jobs, j)
	return nil
}

type fixture struct {
	screenings *fakeScreenings
	apps       *fakeApps
	postings   *fakePostings
	embStore   *fakeEmbStore
	embedder   *fakeEmbedder
	simQ       *captureQueue
	sumQ       *captureQueue
	proc       *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f := &fixture{
		screenings: &fakeScreenings{rows: map[uint]*models.ScreeningResult{}},
		apps:       &fakeApps{},
		postings: &fakePostings{posting: &models.JobPosting{
			ID:                 7,
			Title:              "Backend Engineer",
			Description:        "Build services in Go.",
			Skills:             []string{"Go", "PostgreSQL"},
			MinExperienceYears: 2,
			MaxExperienceYears: 6,
			EducationLevel:     "bachelor",
		}},
		embStore: &fakeEmbStore{vectors: map[string]*models.Embedding{}},
		embedder: &fakeEmbedder{vector: []float32{0.6, 0.8}},
		simQ:     &captureQueue{},
		sumQ:     &captureQueue{},
	}
	f.screenings.rows[99] = &models.ScreeningResult{
		ID:            99,
		ApplicationID: 42,
		JobPostingID:  7,
		Status:        models.ScreeningPending,
		CreatedAt:     time.Now().Add(-time.Second),
	}

	f.proc = NewProcessor(Deps{
		Screenings: f.screenings,
		Apps:       f.apps,
		Postings:   f.postings,
		Embeddings: f.embStore,
		Extractor:  &fakeExtractor{text: "Go developer. Bachelor of Science.\n2019 - 2024 Acme Corp"},
		Embedder:   f.embedder,
		NLP:        stubNLP{},
		Matcher:    stubNormalizer{},
		Summaries: &fakeSummaries{fit: &summary.FitSummary{
			Summary:        "Looks solid.",
			KeyHighlights:  []string{"Go"},
			Concerns:       []string{},
			Recommendation: summary.RecommendationStrongFit,
			FitScore:       80,
		}},
		SimilarityQueue: f.simQ,
		SummaryQueue:    f.sumQ,
		Logger:          log,
	})
	return f
}

type stubNLP struct{}

func (stubNLP) Extract(_ context.Context, text string) (*nlp.ProcessedCvData, error) {
	data := &nlp.ProcessedCvData{
		Skills:      []nlp.SkillMention{{Name: "Go", Category: "programming_language", Confidence: 1.0}},
		Education:   []nlp.EducationEntry{},
		WorkHistory: []nlp.WorkPeriod{},
	}
	if text == "" {
		data.Skills = nil
	}
	return data, nil
}

type stubNormalizer struct{}

func (stubNormalizer) NormalizeJobSkills(_ context.Context, skills []string) ([]string, error) {
	return skills, nil
}

func testJob() queue.Job {
	return queue.Job{ID: "j1", ApplicationID: 42, JobPostingID: 7, ScreeningID: 99, Attempt: 1, ResumePath: "./uploads/42.pdf"}
}

func TestProcessCVPersistsAndChains(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.proc.ProcessCV(context.Background(), testJob()))

	assert.NotEmpty(t, f.screenings.processingText)
	assert.NotEmpty(t, f.screenings.features)
	assert.NotEmpty(t, f.embStore.chunks)
	_, err := f.embStore.Get(context.Background(), models.EmbeddingCVFullText, 42, 0)
	assert.NoError(t, err)

	require.Len(t, f.simQ.jobs, 1)
	assert.Equal(t, uint(99), f.simQ.jobs[0].ScreeningID)
	assert.Equal(t, 1, f.simQ.jobs[0].Attempt)
}

func TestProcessCVSkipsCancelled(t *testing.T) {
	f := newFixture(t)
	f.screenings.rows[99].Status = models.ScreeningFailed
	f.screenings.rows[99].ErrorMessage = models.CancelledMessage

	require.NoError(t, f.proc.ProcessCV(context.Background(), testJob()))
	assert.Empty(t, f.simQ.jobs)
	assert.Empty(t, f.screenings.processingText)
}

func TestComputeSimilarityScoresAndChains(t *testing.T) {
	f := newFixture(t)
	seedFeatures(t, f)
	f.embStore.vectors[embKey(models.EmbeddingCVFullText, 42, 0)] = &models.Embedding{
		Embedding: pgvector.NewVector([]float32{0.6, 0.8}),
	}

	require.NoError(t, f.proc.ComputeSimilarity(context.Background(), testJob()))

	require.NotNil(t, f.screenings.scores)
	assert.Greater(t, f.screenings.scores.OverallScore, 0.0)
	// Posting embedding was created on first use.
	_, err := f.embStore.Get(context.Background(), models.EmbeddingJobPosting, 0, 7)
	assert.NoError(t, err)
	require.Len(t, f.sumQ.jobs, 1)
}

func TestGenerateSummaryCompletesAndWritesBack(t *testing.T) {
	f := newFixture(t)
	seedFeatures(t, f)
	f.screenings.rows[99].OverallScore = 73.5
	f.screenings.rows[99].ExtractedText = "resume text"

	require.NoError(t, f.proc.GenerateSummary(context.Background(), testJob()))

	require.NotNil(t, f.screenings.completion)
	assert.Equal(t, "Looks solid.", f.screenings.completion.AISummary)
	assert.GreaterOrEqual(t, f.screenings.completion.ProcessingTimeMs, int64(0))
	assert.Equal(t, string(models.ScreeningCompleted), f.apps.wroteStatus)
	assert.Equal(t, 73.5, f.apps.wroteScore)
}

func TestMarkFailedRecordsError(t *testing.T) {
	f := newFixture(t)

	f.proc.MarkFailed(context.Background(), testJob(), assert.AnError)

	assert.Equal(t, models.ScreeningFailed, f.screenings.rows[99].Status)
	assert.NotEmpty(t, f.screenings.failedMsg)
	assert.Equal(t, string(models.ScreeningFailed), f.apps.wroteStatus)
}

func TestMarkFailedLeavesCancellation(t *testing.T) {
	f := newFixture(t)
	f.screenings.rows[99].Status = models.ScreeningFailed
	f.screenings.rows[99].ErrorMessage = models.CancelledMessage

	f.proc.MarkFailed(context.Background(), testJob(), assert.AnError)

	assert.Equal(t, models.CancelledMessage, f.screenings.rows[99].ErrorMessage)
}

func TestCompletionMeasuresFromRunStart(t *testing.T) {
	f := newFixture(t)
	seedFeatures(t, f)

	// A retry days after the original trigger must not report days of
	// processing time; the run-start stamp wins over the creation time.
	started := time.Now().Add(-2 * time.Second)
	f.screenings.rows[99].CreatedAt = time.Now().Add(-72 * time.Hour)
	f.screenings.rows[99].StartedAt = &started

	require.NoError(t, f.proc.GenerateSummary(context.Background(), testJob()))

	require.NotNil(t, f.screenings.completion)
	assert.GreaterOrEqual(t, f.screenings.completion.ProcessingTimeMs, int64(2000))
	assert.Less(t, f.screenings.completion.ProcessingTimeMs, int64(60_000))
}

func TestMarkFailedMeasuresFromRunStart(t *testing.T) {
	f := newFixture(t)

	started := time.Now().Add(-time.Second)
	f.screenings.rows[99].CreatedAt = time.Now().Add(-72 * time.Hour)
	f.screenings.rows[99].StartedAt = &started

	f.proc.MarkFailed(context.Background(), testJob(), assert.AnError)

	assert.GreaterOrEqual(t, f.screenings.rows[99].ProcessingTimeMs, int64(1000))
	assert.Less(t, f.screenings.rows[99].ProcessingTimeMs, int64(60_000))
}

func TestMarkFailedTruncatesMessageOnRunes(t *testing.T) {
	f := newFixture(t)

	f.proc.MarkFailed(context.Background(), testJob(), errors.New(strings.Repeat("é", 600)))

	assert.True(t, utf8.ValidString(f.screenings.failedMsg))
	assert.Equal(t, 500, utf8.RuneCountInString(f.screenings.failedMsg))
}

func seedFeatures(t *testing.T, f *fixture) {
	t.Helper()
	raw, err := json.Marshal(&nlp.ProcessedCvData{
		Skills:                []nlp.SkillMention{{Name: "Go"}, {Name: "PostgreSQL"}},
		Education:             []nlp.EducationEntry{{Text: "Bachelor of Science", DegreeLevel: "bachelor"}},
		TotalExperienceMonths: 48,
	})
	require.NoError(t, err)
	f.screenings.rows[99].NLPFeatures = raw
}
