package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type SkillCategory string

const (
	CategoryProgrammingLanguage SkillCategory = "programming_language"
	CategoryFramework           SkillCategory = "framework"
	CategoryDatabase            SkillCategory = "database"
	CategoryTool                SkillCategory = "tool"
	CategoryCloudPlatform       SkillCategory = "cloud_platform"
	CategoryMethodology         SkillCategory = "methodology"
	CategorySoftSkill           SkillCategory = "soft_skill"
	CategoryCertification       SkillCategory = "certification"
	CategoryOther               SkillCategory = "other"
)

// Skill is a canonical taxonomy entry. The taxonomy tables are owned by a
// separate management module; the matcher only reads them.
type Skill struct {
	ID            uint          `gorm:"column:id;primaryKey" json:"id"`
	CanonicalName string        `gorm:"column:canonical_name;type:text;not null;uniqueIndex" json:"canonical_name"`
	Category      SkillCategory `gorm:"column:category;type:text;not null;default:'other'" json:"category"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	Priority int  `gorm:"column:priority;default:0" json:"priority"`
	IsActive bool `gorm:"column:is_active;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Skill) TableName() string { return "skills" }

// HasEmbedding reports whether a vector was populated for semantic matching.
func (s *Skill) HasEmbedding() bool { return len(s.Embedding.Slice()) > 0 }

type SkillAlias struct {
	ID        uint   `gorm:"column:id;primaryKey" json:"id"`
	AliasName string `gorm:"column:alias_name;type:text;not null;uniqueIndex:idx_alias_skill" json:"alias_name"`
	SkillID   uint   `gorm:"column:skill_id;not null;uniqueIndex:idx_alias_skill;index" json:"skill_id"`

	// Confidence 1-10; divided by 10 when reported as a match confidence.
	Confidence int  `gorm:"column:confidence;default:8" json:"confidence"`
	IsActive   bool `gorm:"column:is_active;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (SkillAlias) TableName() string { return "skill_aliases" }
