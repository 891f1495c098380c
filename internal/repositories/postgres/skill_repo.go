package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/hirelens/hirelens/internal/models"
)

type SkillRepository interface {
	ListActiveSkills(ctx context.Context) ([]models.Skill, error)
	ListActiveAliases(ctx context.Context) ([]models.SkillAlias, error)
}

type skillRepo struct {
	db *gorm.DB
}

func NewSkillRepo(db *gorm.DB) SkillRepository {
	return &skillRepo{db: db}
}

func (r *skillRepo) ListActiveSkills(ctx context.Context) ([]models.Skill, error) {
	var rows []models.Skill
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC, canonical_name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *skillRepo) ListActiveAliases(ctx context.Context) ([]models.SkillAlias, error) {
	var rows []models.SkillAlias
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&rows).Error
	return rows, err
}
