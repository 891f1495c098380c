package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamps to zero", []float32{1, 0}, []float32{-1, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSkillsMatchScore(t *testing.T) {
	cand := []string{"Go", "PostgreSQL", "Docker"}

	assert.InDelta(t, 1.0, SkillsMatchScore([]string{"go", "docker"}, cand), 1e-9)
	assert.InDelta(t, 0.5, SkillsMatchScore([]string{"go", "kubernetes"}, cand), 1e-9)
	// Substring containment works both directions.
	assert.InDelta(t, 1.0, SkillsMatchScore([]string{"postgres"}, []string{"postgresql"}), 1e-9)
	assert.InDelta(t, 1.0, SkillsMatchScore([]string{"amazon web services"}, []string{"web services"}), 1e-9)
	// Blank required entries do not deflate the ratio.
	assert.InDelta(t, 1.0, SkillsMatchScore([]string{"go", "", "  "}, cand), 1e-9)
	// No required skills scores zero, not NaN; all-blank counts as none.
	assert.Equal(t, 0.0, SkillsMatchScore(nil, cand))
	assert.Equal(t, 0.0, SkillsMatchScore([]string{"", "  "}, cand))
	assert.Equal(t, 0.0, SkillsMatchScore([]string{"rust"}, nil))
}

func TestExperienceMatchScore(t *testing.T) {
	// In-range.
	assert.InDelta(t, 1.0, ExperienceMatchScore(3, 2, 5), 1e-9)
	assert.InDelta(t, 1.0, ExperienceMatchScore(2, 2, 5), 1e-9)
	assert.InDelta(t, 1.0, ExperienceMatchScore(5, 2, 5), 1e-9)

	// Under minimum: 0.2 penalty per missing year, floored at 0.
	under := ExperienceMatchScore(1, 3, 5)
	assert.Less(t, under, 1.0)
	assert.GreaterOrEqual(t, under, 0.0)
	assert.InDelta(t, 0.6, under, 1e-9)
	assert.InDelta(t, 0.0, ExperienceMatchScore(0, 10, 12), 1e-9)

	// Over maximum: 0.1 penalty per extra year, floored at 0.7.
	assert.InDelta(t, 0.9, ExperienceMatchScore(6, 2, 5), 1e-9)
	assert.InDelta(t, 0.7, ExperienceMatchScore(20, 2, 5), 1e-9)

	// Open-ended range (no max) never penalizes seniority.
	assert.InDelta(t, 1.0, ExperienceMatchScore(15, 3, 0), 1e-9)
}

func TestEducationMatchScore(t *testing.T) {
	// Degree keyword shared by requirement and candidate education.
	assert.InDelta(t, 1.0, EducationMatchScore("Bachelor's degree in CS", []string{"Bachelor of Science, 2018"}), 1e-9)
	assert.InDelta(t, 1.0, EducationMatchScore("PhD preferred", []string{"phd in machine learning"}), 1e-9)
	// Candidate has education but no keyword overlap.
	assert.InDelta(t, 0.3, EducationMatchScore("Master's degree", []string{"Diploma in design"}), 1e-9)
	// No education data is neutral.
	assert.InDelta(t, 0.5, EducationMatchScore("Bachelor required", nil), 1e-9)
}

func TestComputeWeightsAndRounding(t *testing.T) {
	b := Compute(0.875, 0.5, 1.0, 0.3)

	assert.InDelta(t, 87.5, b.VectorSimilarity, 1e-9)
	assert.InDelta(t, 50.0, b.SkillsScore, 1e-9)
	assert.InDelta(t, 100.0, b.ExperienceScore, 1e-9)
	assert.InDelta(t, 30.0, b.EducationScore, 1e-9)
	// 0.4*0.875 + 0.3*0.5 + 0.2*1.0 + 0.1*0.3 = 0.73
	assert.InDelta(t, 73.0, b.OverallScore, 1e-9)
}

func TestComputeOverallAlwaysInRange(t *testing.T) {
	inputs := []float64{-0.5, 0, 0.25, 0.5, 0.99, 1.0, 1.7}
	for _, v := range inputs {
		for _, s := range inputs {
			b := Compute(v, s, 1-ClampUnit(s), ClampUnit(v))
			assert.GreaterOrEqual(t, b.OverallScore, 0.0)
			assert.LessOrEqual(t, b.OverallScore, 100.0)
		}
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 73.46, Round2(73.456))
	assert.Equal(t, 0.0, Round2(0.0049999))
	assert.Equal(t, 100.0, Round2(99.999))
}
