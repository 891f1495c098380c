package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hirelens/hirelens/internal/cache"
	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/queue"
	pgrepo "github.com/hirelens/hirelens/internal/repositories/postgres"
	"github.com/hirelens/hirelens/internal/scoring"
	"github.com/hirelens/hirelens/internal/storage"
	"github.com/hirelens/hirelens/internal/utils"
)

const (
	maxPriority         = 10
	queueStatusCacheKey = "screening:queue-status"
	queueStatusCacheTTL = 5 * time.Second
)

type ScreeningService interface {
	Trigger(ctx context.Context, applicationID uint, resumePath string, priority int) (*models.ScreeningResult, error)
	TriggerBulk(ctx context.Context, jobPostingID uint, priority int) (int, error)
	Get(ctx context.Context, id uint) (*models.ScreeningResult, error)
	GetByApplication(ctx context.Context, applicationID uint) (*models.ScreeningResult, error)
	ListByJobPosting(ctx context.Context, jobPostingID uint, limit, offset int) ([]models.ScreeningResult, int64, error)
	Retry(ctx context.Context, screeningID uint, force bool) (*models.ScreeningResult, error)
	Cancel(ctx context.Context, screeningID uint) error
	ReprocessJobPosting(ctx context.Context, jobPostingID uint) (int, error)
	BestMatchingChunks(ctx context.Context, applicationID, jobPostingID uint, limit int) (*ChunkMatchResult, error)
	QueueStatus(ctx context.Context) ([]queue.Stats, error)
	RefreshSkillCache(ctx context.Context) (skills, aliases int, err error)
}

// Enqueuer abstracts the CV-processing queue for the trigger paths.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// StatusReporter is one queue's depth-reporting side.
type StatusReporter interface {
	Status(ctx context.Context) (queue.Stats, error)
}

// TaxonomyCache is the management side of the skill matcher.
type TaxonomyCache interface {
	Refresh(ctx context.Context) error
	Stats() (skills, aliases int, loadedAt time.Time)
}

type screeningService struct {
	screenings pgrepo.ScreeningRepository
	apps       pgrepo.ApplicationRepository
	postings   pgrepo.JobPostingRepository
	embeddings pgrepo.EmbeddingRepository

	resolver storage.Resolver
	cvQueue  Enqueuer
	queues   []StatusReporter
	taxonomy TaxonomyCache
	cache    cache.Cache

	log *logrus.Logger
}

type ScreeningServiceDeps struct {
	Screenings pgrepo.ScreeningRepository
	Apps       pgrepo.ApplicationRepository
	Postings   pgrepo.JobPostingRepository
	Embeddings pgrepo.EmbeddingRepository
	Resolver   storage.Resolver
	CVQueue    Enqueuer
	Queues     []StatusReporter
	Taxonomy   TaxonomyCache
	Cache      cache.Cache
	Logger     *logrus.Logger
}

func NewScreeningService(d ScreeningServiceDeps) ScreeningService {
	return &screeningService{
		screenings: d.Screenings,
		apps:       d.Apps,
		postings:   d.Postings,
		embeddings: d.Embeddings,
		resolver:   d.Resolver,
		cvQueue:    d.CVQueue,
		queues:     d.Queues,
		taxonomy:   d.Taxonomy,
		cache:      d.Cache,
		log:        d.Logger,
	}
}

// Trigger starts a screening for one application. An explicit resumePath
// overrides the application's stored resume URL. Re-triggering while an
// earlier run is pending, processing or completed returns the existing
// result without enqueueing a duplicate; only failed runs start fresh.
func (s *screeningService) Trigger(ctx context.Context, applicationID uint, resumePath string, priority int) (*models.ScreeningResult, error) {
	const op = "ScreeningService.Trigger"

	if applicationID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "application_id is required", nil)
	}
	if priority < 0 || priority > maxPriority {
		return nil, utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("priority must be between 0 and %d", maxPriority), nil)
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("application %d not found", applicationID), err)
	}

	// Resolve the resume before touching the database so an application
	// without a readable resume never leaves a dangling pending row.
	if resumePath == "" {
		resumePath, err = s.resolver.Resolve(app.ResumeURL)
		if err != nil {
			return nil, err
		}
	}

	if existing, err := s.screenings.LatestByApplication(ctx, applicationID); err == nil {
		if existing.Status != models.ScreeningFailed {
			return existing, nil
		}
	}

	row := &models.ScreeningResult{
		ApplicationID: applicationID,
		JobPostingID:  app.JobPostingID,
		Status:        models.ScreeningPending,
	}
	if err := s.screenings.Insert(ctx, row); err != nil {
		// A concurrent trigger can slip past the pre-check; the partial
		// unique index turns the loser's insert into a conflict, so hand
		// back the row the winner created.
		if utils.IsCode(err, utils.CodeConflict) {
			if existing, lerr := s.screenings.LatestByApplication(ctx, applicationID); lerr == nil {
				return existing, nil
			}
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create screening", err)
	}

	if err := s.enqueue(ctx, row, priority, false, resumePath); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"screening_id":   row.ID,
		"application_id": applicationID,
		"priority":       priority,
	}).Info("screening triggered")
	return row, nil
}

// TriggerBulk screens every application of a job posting, skipping the ones
// that cannot be triggered (already in flight, bad resume location).
func (s *screeningService) TriggerBulk(ctx context.Context, jobPostingID uint, priority int) (int, error) {
	const op = "ScreeningService.TriggerBulk"

	if jobPostingID == 0 {
		return 0, utils.E(utils.CodeInvalidArgument, op, "job_posting_id is required", nil)
	}
	if _, err := s.postings.GetByID(ctx, jobPostingID); err != nil {
		return 0, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("job posting %d not found", jobPostingID), err)
	}

	ids, err := s.apps.ListIDsByJobPosting(ctx, jobPostingID)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to list applications", err)
	}

	triggered := 0
	for _, id := range ids {
		if _, err := s.Trigger(ctx, id, "", priority); err != nil {
			s.log.WithError(err).WithField("application_id", id).Warn("bulk trigger skipped application")
			continue
		}
		triggered++
	}
	return triggered, nil
}

func (s *screeningService) Get(ctx context.Context, id uint) (*models.ScreeningResult, error) {
	const op = "ScreeningService.Get"

	row, err := s.screenings.GetByID(ctx, id)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, fmt.Sprintf("screening %d not found", id), err)
	}
	return row, nil
}

func (s *screeningService) GetByApplication(ctx context.Context, applicationID uint) (*models.ScreeningResult, error) {
	const op = "ScreeningService.GetByApplication"

	row, err := s.screenings.LatestByApplication(ctx, applicationID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("no screening for application %d", applicationID), err)
	}
	return row, nil
}

func (s *screeningService) ListByJobPosting(ctx context.Context, jobPostingID uint, limit, offset int) ([]models.ScreeningResult, int64, error) {
	const op = "ScreeningService.ListByJobPosting"

	if jobPostingID == 0 {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "job_posting_id is required", nil)
	}
	rows, total, err := s.screenings.ListByJobPosting(ctx, jobPostingID, limit, offset)
	if err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to list screenings", err)
	}
	return rows, total, nil
}

// Retry re-runs a screening. Without force only failed screenings restart;
// force restarts any state, including completed.
func (s *screeningService) Retry(ctx context.Context, screeningID uint, force bool) (*models.ScreeningResult, error) {
	const op = "ScreeningService.Retry"

	row, err := s.screenings.GetByID(ctx, screeningID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, fmt.Sprintf("screening %d not found", screeningID), err)
	}
	if !force && row.Status != models.ScreeningFailed {
		return nil, utils.E(utils.CodeConflict, op,
			fmt.Sprintf("screening is %s; only failed screenings retry without force", row.Status), nil)
	}

	app, err := s.apps.GetByID(ctx, row.ApplicationID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("application %d not found", row.ApplicationID), err)
	}
	resumePath, err := s.resolver.Resolve(app.ResumeURL)
	if err != nil {
		return nil, err
	}

	if err := s.screenings.ResetForRetry(ctx, row.ID); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to reset screening", err)
	}
	row.Status = models.ScreeningPending
	row.ErrorMessage = ""

	if err := s.enqueue(ctx, row, 0, force, resumePath); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"screening_id": row.ID, "force": force}).Info("screening retried")
	return row, nil
}

// Cancel stops further pipeline work on a screening. Completed screenings
// cannot be cancelled; workers detect the cancellation marker and skip
// whatever stages remain.
func (s *screeningService) Cancel(ctx context.Context, screeningID uint) error {
	const op = "ScreeningService.Cancel"

	row, err := s.screenings.GetByID(ctx, screeningID)
	if err != nil {
		return utils.E(utils.CodeNotFound, op, fmt.Sprintf("screening %d not found", screeningID), err)
	}
	if row.Status == models.ScreeningCompleted {
		return utils.E(utils.CodeConflict, op, "completed screening cannot be cancelled", nil)
	}
	if row.Cancelled() {
		return nil
	}

	start := row.CreatedAt
	if row.StartedAt != nil {
		start = *row.StartedAt
	}
	elapsed := time.Since(start).Milliseconds()
	if err := s.screenings.MarkFailed(ctx, row.ID, models.CancelledMessage, elapsed); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to cancel screening", err)
	}
	s.log.WithField("screening_id", row.ID).Info("screening cancelled")
	return nil
}

// ReprocessJobPosting force-restarts every screening of a posting, used
// after the posting text or requirements change.
func (s *screeningService) ReprocessJobPosting(ctx context.Context, jobPostingID uint) (int, error) {
	const op = "ScreeningService.ReprocessJobPosting"

	if _, err := s.postings.GetByID(ctx, jobPostingID); err != nil {
		return 0, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("job posting %d not found", jobPostingID), err)
	}

	ids, err := s.apps.ListIDsByJobPosting(ctx, jobPostingID)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to list applications", err)
	}

	count := 0
	for _, appID := range ids {
		row, err := s.screenings.LatestByApplication(ctx, appID)
		if err != nil {
			// Never screened; a plain trigger covers it.
			if _, terr := s.Trigger(ctx, appID, "", 0); terr == nil {
				count++
			}
			continue
		}
		if _, err := s.Retry(ctx, row.ID, true); err != nil {
			s.log.WithError(err).WithField("screening_id", row.ID).Warn("reprocess skipped screening")
			continue
		}
		count++
	}
	return count, nil
}

// ChunkMatchResult is the top-K chunk excerpts with summary similarity
// figures across them.
type ChunkMatchResult struct {
	Chunks        []pgrepo.ChunkMatch `json:"chunks"`
	MaxSimilarity float64             `json:"max_similarity"`
	AvgSimilarity float64             `json:"avg_similarity"`
}

// BestMatchingChunks ranks an application's resume chunks against the job
// posting's embedding. The posting must have been embedded by a prior
// similarity run.
func (s *screeningService) BestMatchingChunks(ctx context.Context, applicationID, jobPostingID uint, limit int) (*ChunkMatchResult, error) {
	const op = "ScreeningService.BestMatchingChunks"

	if applicationID == 0 || jobPostingID == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "application_id and job_posting_id are required", nil)
	}

	posting, err := s.embeddings.Get(ctx, models.EmbeddingJobPosting, 0, jobPostingID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("job posting %d has no embedding yet", jobPostingID), err)
	}

	matches, err := s.embeddings.TopChunks(ctx, applicationID, posting.Embedding, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "chunk search failed", err)
	}

	result := &ChunkMatchResult{Chunks: matches}
	if len(matches) > 0 {
		var sum float64
		for _, m := range matches {
			sum += m.Similarity
			if m.Similarity > result.MaxSimilarity {
				result.MaxSimilarity = m.Similarity
			}
		}
		result.AvgSimilarity = scoring.Round2(sum / float64(len(matches)))
	}
	return result, nil
}

// QueueStatus reports all stage queue depths, cached briefly to keep
// dashboard polling off Redis.
func (s *screeningService) QueueStatus(ctx context.Context) ([]queue.Stats, error) {
	const op = "ScreeningService.QueueStatus"

	var cached []queue.Stats
	if s.cache != nil {
		if hit, err := s.cache.GetJSON(ctx, queueStatusCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	stats := make([]queue.Stats, 0, len(s.queues))
	for _, q := range s.queues {
		st, err := q.Status(ctx)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "queue status unavailable", err)
		}
		stats = append(stats, st)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, queueStatusCacheKey, stats, queueStatusCacheTTL); err != nil {
			s.log.WithError(err).Debug("queue status cache write failed")
		}
	}
	return stats, nil
}

// RefreshSkillCache rebuilds the taxonomy snapshot from the database.
func (s *screeningService) RefreshSkillCache(ctx context.Context) (int, int, error) {
	const op = "ScreeningService.RefreshSkillCache"

	if err := s.taxonomy.Refresh(ctx); err != nil {
		return 0, 0, err
	}
	skills, aliases, _ := s.taxonomy.Stats()
	return skills, aliases, nil
}

func (s *screeningService) enqueue(ctx context.Context, row *models.ScreeningResult, priority int, force bool, resumePath string) error {
	const op = "ScreeningService.enqueue"

	job := queue.Job{
		ID:            uuid.NewString(),
		ApplicationID: row.ApplicationID,
		JobPostingID:  row.JobPostingID,
		ScreeningID:   row.ID,
		Priority:      priority,
		Force:         force,
		ResumePath:    resumePath,
	}
	if err := s.cvQueue.Enqueue(ctx, job); err != nil {
		// The row exists but nothing will pick it up; mark it failed so
		// operators see it instead of a stuck pending.
		_ = s.screenings.MarkFailed(ctx, row.ID, "enqueue failed: "+err.Error(), 0)
		return utils.E(utils.CodeUnavailable, op, "failed to enqueue screening job", err)
	}
	return nil
}
