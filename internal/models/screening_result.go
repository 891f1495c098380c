package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type ScreeningStatus string

const (
	ScreeningPending    ScreeningStatus = "pending"
	ScreeningProcessing ScreeningStatus = "processing"
	ScreeningCompleted  ScreeningStatus = "completed"
	ScreeningFailed     ScreeningStatus = "failed"
)

// CancelledMessage is the fixed error message written when a screening is
// cancelled by the user. Workers compare against it to skip cancelled jobs.
const CancelledMessage = "cancelled by user"

type ScreeningResult struct {
	ID            uint `gorm:"column:id;primaryKey" json:"id"`
	ApplicationID uint `gorm:"column:application_id;not null;index" json:"application_id"`
	JobPostingID  uint `gorm:"column:job_posting_id;not null;index" json:"job_posting_id"`

	Status ScreeningStatus `gorm:"column:status;type:text;default:'pending';index" json:"status"`

	OverallScore    float64 `gorm:"column:overall_score" json:"overall_score"`
	SkillsScore     float64 `gorm:"column:skills_score" json:"skills_score"`
	ExperienceScore float64 `gorm:"column:experience_score" json:"experience_score"`
	EducationScore  float64 `gorm:"column:education_score" json:"education_score"`

	ExtractedText string         `gorm:"column:extracted_text;type:text" json:"-"`
	NLPFeatures   datatypes.JSON `gorm:"column:nlp_features;type:jsonb" json:"-"`

	AISummary     string         `gorm:"column:ai_summary;type:text" json:"ai_summary"`
	KeyHighlights pq.StringArray `gorm:"column:key_highlights;type:text[]" json:"key_highlights"`
	Concerns      pq.StringArray `gorm:"column:concerns;type:text[]" json:"concerns"`

	ProcessingTimeMs int64  `gorm:"column:processing_time_ms" json:"processing_time_ms"`
	ErrorMessage     string `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	// StartedAt marks when the current run began processing; retries clear
	// it so elapsed time never spans the idle gap between runs.
	StartedAt *time.Time `gorm:"column:started_at;type:timestamptz" json:"-"`

	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
}

func (ScreeningResult) TableName() string { return "screening_results" }

// Cancelled reports whether this result is the terminal record of a
// user cancellation rather than a pipeline failure.
func (r *ScreeningResult) Cancelled() bool {
	return r.Status == ScreeningFailed && r.ErrorMessage == CancelledMessage
}
