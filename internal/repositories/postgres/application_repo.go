package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/utils"
)

type ApplicationRepository interface {
	GetByID(ctx context.Context, id uint) (*models.JobApplication, error)
	ListIDsByJobPosting(ctx context.Context, jobPostingID uint) ([]uint, error)
	WriteBackScreening(ctx context.Context, id uint, score float64, status string, completedAt *time.Time) error
}

type applicationRepo struct {
	db *gorm.DB
}

func NewApplicationRepo(db *gorm.DB) ApplicationRepository {
	return &applicationRepo{db: db}
}

func (r *applicationRepo) GetByID(ctx context.Context, id uint) (*models.JobApplication, error) {
	var row models.JobApplication
	err := r.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *applicationRepo) ListIDsByJobPosting(ctx context.Context, jobPostingID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.JobApplication{}).
		Where("job_posting_id = ?", jobPostingID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// WriteBackScreening denormalizes the screening outcome onto the
// application row for the recruitment views.
func (r *applicationRepo) WriteBackScreening(ctx context.Context, id uint, score float64, status string, completedAt *time.Time) error {
	fields := map[string]interface{}{
		"screening_score":        score,
		"screening_status":       status,
		"is_screening_completed": status == string(models.ScreeningCompleted),
	}
	if completedAt != nil {
		fields["screening_completed_at"] = *completedAt
	}

	res := r.db.WithContext(ctx).
		Model(&models.JobApplication{}).
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
