package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type EmbeddingType string

const (
	EmbeddingCVFullText EmbeddingType = "cv_full_text"
	EmbeddingJobPosting EmbeddingType = "job_posting"
)

// Embedding stores one vector per (type, application, job posting) key.
// Exactly one of ApplicationID/JobPostingID is non-zero for a given type;
// the zero value stands in for NULL so the composite unique index holds.
type Embedding struct {
	ID            uint          `gorm:"column:id;primaryKey" json:"id"`
	EmbeddingType EmbeddingType `gorm:"column:embedding_type;type:text;not null;uniqueIndex:idx_embeddings_key" json:"embedding_type"`
	ApplicationID uint          `gorm:"column:application_id;not null;default:0;uniqueIndex:idx_embeddings_key" json:"application_id"`
	JobPostingID  uint          `gorm:"column:job_posting_id;not null;default:0;uniqueIndex:idx_embeddings_key" json:"job_posting_id"`

	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	Model      string          `gorm:"column:model;type:text" json:"model"`
	Dimensions int             `gorm:"column:dimensions" json:"dimensions"`

	OriginalText string         `gorm:"column:original_text;type:text" json:"-"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Embedding) TableName() string { return "embeddings" }

// EmbeddingChunk is one overlapping segment of an application's CV text.
// All chunks of an application are replaced together on reprocessing.
type EmbeddingChunk struct {
	ID            uint `gorm:"column:id;primaryKey" json:"id"`
	ApplicationID uint `gorm:"column:application_id;not null;uniqueIndex:idx_chunks_app_index" json:"application_id"`
	ChunkIndex    int  `gorm:"column:chunk_index;not null;uniqueIndex:idx_chunks_app_index" json:"chunk_index"`

	ChunkText     string `gorm:"column:chunk_text;type:text" json:"chunk_text"`
	StartPosition int    `gorm:"column:start_position" json:"start_position"`
	EndPosition   int    `gorm:"column:end_position" json:"end_position"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	Model     string          `gorm:"column:model;type:text" json:"model"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (EmbeddingChunk) TableName() string { return "embedding_chunks" }
