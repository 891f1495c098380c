package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/utils"
)

type JobPostingRepository interface {
	GetByID(ctx context.Context, id uint) (*models.JobPosting, error)
}

type jobPostingRepo struct {
	db *gorm.DB
}

func NewJobPostingRepo(db *gorm.DB) JobPostingRepository {
	return &jobPostingRepo{db: db}
}

func (r *jobPostingRepo) GetByID(ctx context.Context, id uint) (*models.JobPosting, error) {
	var row models.JobPosting
	err := r.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
