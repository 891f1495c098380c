package postgres

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/utils"
)

type EmbeddingRepository interface {
	Upsert(ctx context.Context, e *models.Embedding) error
	Get(ctx context.Context, typ models.EmbeddingType, applicationID, jobPostingID uint) (*models.Embedding, error)
	ReplaceChunks(ctx context.Context, applicationID uint, chunks []models.EmbeddingChunk) error
	TopChunks(ctx context.Context, applicationID uint, query pgvector.Vector, limit int) ([]ChunkMatch, error)
}

// ChunkMatch is a chunk row plus its cosine similarity to the query vector.
type ChunkMatch struct {
	models.EmbeddingChunk
	Similarity float64 `gorm:"column:similarity" json:"similarity"`
}

type embeddingRepo struct {
	db *gorm.DB
}

func NewEmbeddingRepo(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepo{db: db}
}

// Upsert overwrites the vector for an existing (type, application, posting)
// key so re-screening never duplicates rows.
func (r *embeddingRepo) Upsert(ctx context.Context, e *models.Embedding) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "embedding_type"},
				{Name: "application_id"},
				{Name: "job_posting_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"embedding", "model", "dimensions", "original_text", "metadata", "updated_at",
			}),
		}).
		Create(e).Error
}

func (r *embeddingRepo) Get(ctx context.Context, typ models.EmbeddingType, applicationID, jobPostingID uint) (*models.Embedding, error) {
	var row models.Embedding
	err := r.db.WithContext(ctx).
		Where("embedding_type = ? AND application_id = ? AND job_posting_id = ?", typ, applicationID, jobPostingID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

// ReplaceChunks swaps an application's chunk set atomically.
func (r *embeddingRepo) ReplaceChunks(ctx context.Context, applicationID uint, chunks []models.EmbeddingChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("application_id = ?", applicationID).
			Delete(&models.EmbeddingChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// TopChunks ranks an application's chunks by pgvector cosine distance.
// Similarity is reported as 1 - distance, clamped to [0, 1].
func (r *embeddingRepo) TopChunks(ctx context.Context, applicationID uint, query pgvector.Vector, limit int) ([]ChunkMatch, error) {
	if limit <= 0 || limit > 20 {
		limit = 3
	}

	var rows []ChunkMatch
	err := r.db.WithContext(ctx).Raw(`
		SELECT *, GREATEST(0, LEAST(1, 1 - (embedding <=> ?))) AS similarity
		FROM embedding_chunks
		WHERE application_id = ?
		ORDER BY embedding <=> ?
		LIMIT ?`,
		query, applicationID, query, limit,
	).Scan(&rows).Error
	return rows, err
}
