package models

import (
	"time"

	"github.com/lib/pq"
)

// JobApplication rows are owned by the recruitment CRUD modules. The
// pipeline reads the resume location and writes the screening outcome back.
type JobApplication struct {
	ID           uint `gorm:"column:id;primaryKey" json:"id"`
	JobPostingID uint `gorm:"column:job_posting_id;not null;index" json:"job_posting_id"`

	CandidateName  string `gorm:"column:candidate_name;type:text" json:"candidate_name"`
	CandidateEmail string `gorm:"column:candidate_email;type:text" json:"candidate_email"`
	ResumeURL      string `gorm:"column:resume_url;type:text" json:"resume_url"`

	IsScreeningCompleted bool       `gorm:"column:is_screening_completed;default:false" json:"is_screening_completed"`
	ScreeningScore       float64    `gorm:"column:screening_score" json:"screening_score"`
	ScreeningStatus      string     `gorm:"column:screening_status;type:text" json:"screening_status"`
	ScreeningCompletedAt *time.Time `gorm:"column:screening_completed_at;type:timestamptz" json:"screening_completed_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (JobApplication) TableName() string { return "job_applications" }

// JobPosting rows are owned by the position-management module; the pipeline
// reads them for scoring and embedding text.
type JobPosting struct {
	ID uint `gorm:"column:id;primaryKey" json:"id"`

	Title        string `gorm:"column:title;type:text;not null" json:"title"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	Requirements string `gorm:"column:requirements;type:text" json:"requirements"`

	Skills pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`

	MinExperienceYears int    `gorm:"column:min_experience_years" json:"min_experience_years"`
	MaxExperienceYears int    `gorm:"column:max_experience_years" json:"max_experience_years"`
	EducationLevel     string `gorm:"column:education_level;type:text" json:"education_level"`

	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (JobPosting) TableName() string { return "job_postings" }
