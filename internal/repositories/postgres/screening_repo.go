package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/utils"
)

type ScreeningRepository interface {
	Insert(ctx context.Context, r *models.ScreeningResult) error
	GetByID(ctx context.Context, id uint) (*models.ScreeningResult, error)
	LatestByApplication(ctx context.Context, applicationID uint) (*models.ScreeningResult, error)
	ListByJobPosting(ctx context.Context, jobPostingID uint, limit, offset int) ([]models.ScreeningResult, int64, error)

	SetProcessing(ctx context.Context, id uint, extractedText string) error
	SetNLPFeatures(ctx context.Context, id uint, features datatypes.JSON) error
	SetScores(ctx context.Context, id uint, scores ScoreUpdate) error
	Complete(ctx context.Context, id uint, upd CompletionUpdate) error
	MarkFailed(ctx context.Context, id uint, message string, elapsedMs int64) error
	ResetForRetry(ctx context.Context, id uint) error
}

// ScoreUpdate carries the similarity-stage sub-scores.
type ScoreUpdate struct {
	OverallScore    float64
	SkillsScore     float64
	ExperienceScore float64
	EducationScore  float64
}

// CompletionUpdate carries the summary-stage terminal fields.
type CompletionUpdate struct {
	AISummary        string
	KeyHighlights    []string
	Concerns         []string
	ProcessingTimeMs int64
	CompletedAt      time.Time
}

type screeningRepo struct {
	db *gorm.DB
}

func NewScreeningRepo(db *gorm.DB) ScreeningRepository {
	return &screeningRepo{db: db}
}

func (r *screeningRepo) Insert(ctx context.Context, row *models.ScreeningResult) error {
	const op = "ScreeningRepo.Insert"

	err := r.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.E(utils.CodeConflict, op, "an active screening already exists for this application", err)
	}
	return err
}

func (r *screeningRepo) GetByID(ctx context.Context, id uint) (*models.ScreeningResult, error) {
	var row models.ScreeningResult
	err := r.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *screeningRepo) LatestByApplication(ctx context.Context, applicationID uint) (*models.ScreeningResult, error) {
	var row models.ScreeningResult
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *screeningRepo) ListByJobPosting(ctx context.Context, jobPostingID uint, limit, offset int) ([]models.ScreeningResult, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).
		Model(&models.ScreeningResult{}).
		Where("job_posting_id = ?", jobPostingID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ScreeningResult
	err := q.
		Order("overall_score DESC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, total, err
}

func (r *screeningRepo) SetProcessing(ctx context.Context, id uint, extractedText string) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status":         models.ScreeningProcessing,
		"extracted_text": extractedText,
		"started_at":     time.Now().UTC(),
	})
}

func (r *screeningRepo) SetNLPFeatures(ctx context.Context, id uint, features datatypes.JSON) error {
	return r.updates(ctx, id, map[string]interface{}{"nlp_features": features})
}

func (r *screeningRepo) SetScores(ctx context.Context, id uint, s ScoreUpdate) error {
	return r.updates(ctx, id, map[string]interface{}{
		"overall_score":    s.OverallScore,
		"skills_score":     s.SkillsScore,
		"experience_score": s.ExperienceScore,
		"education_score":  s.EducationScore,
	})
}

func (r *screeningRepo) Complete(ctx context.Context, id uint, upd CompletionUpdate) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status":             models.ScreeningCompleted,
		"ai_summary":         upd.AISummary,
		"key_highlights":     pq.StringArray(upd.KeyHighlights),
		"concerns":           pq.StringArray(upd.Concerns),
		"processing_time_ms": upd.ProcessingTimeMs,
		"error_message":      "",
		"completed_at":       upd.CompletedAt,
	})
}

func (r *screeningRepo) MarkFailed(ctx context.Context, id uint, message string, elapsedMs int64) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status":             models.ScreeningFailed,
		"error_message":      message,
		"processing_time_ms": elapsedMs,
	})
}

// ResetForRetry puts a result back to pending and clears the previous
// terminal fields so a re-run starts clean.
func (r *screeningRepo) ResetForRetry(ctx context.Context, id uint) error {
	return r.updates(ctx, id, map[string]interface{}{
		"status":             models.ScreeningPending,
		"error_message":      "",
		"overall_score":      0,
		"skills_score":       0,
		"experience_score":   0,
		"education_score":    0,
		"ai_summary":         "",
		"processing_time_ms": 0,
		"started_at":         nil,
		"completed_at":       nil,
	})
}

func (r *screeningRepo) updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.ScreeningResult{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
