package scoring

import (
	"math"
	"strings"
)

// Weights of the overall score, fixed by the screening policy.
const (
	WeightVectorSimilarity = 0.4
	WeightSkills           = 0.3
	WeightExperience       = 0.2
	WeightEducation        = 0.1
)

// CosineSimilarity returns the cosine of the angle between a and b,
// clamped to [0, 1]. Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return ClampUnit(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func ClampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// SkillsMatchScore is the fraction of required job skills found in the
// candidate's skills. A required term counts when it contains, or is
// contained by, any candidate skill, case-insensitively. Blank required
// entries are dropped before the ratio; jobs with no usable required
// skills score 0.
func SkillsMatchScore(jobSkills, candidateSkills []string) float64 {
	required := make([]string, 0, len(jobSkills))
	for _, s := range jobSkills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			required = append(required, s)
		}
	}
	if len(required) == 0 {
		return 0
	}
	lowered := make([]string, 0, len(candidateSkills))
	for _, s := range candidateSkills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			lowered = append(lowered, s)
		}
	}

	matched := 0
	for _, job := range required {
		for _, cand := range lowered {
			if strings.Contains(cand, job) || strings.Contains(job, cand) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(required))
}

// ExperienceMatchScore scores candidate years against the job's range.
// Inside the range scores 1.0; overshooting decays 0.1 per extra year with
// a 0.7 floor; undershooting decays 0.2 per missing year down to 0.
func ExperienceMatchScore(years float64, minYears, maxYears int) float64 {
	minF, maxF := float64(minYears), float64(maxYears)
	switch {
	case years >= minF && (maxYears <= 0 || years <= maxF):
		return 1.0
	case maxYears > 0 && years > maxF:
		return math.Max(0.7, 1.0-0.1*(years-maxF))
	default:
		return math.Max(0, 1.0-0.2*(minF-years))
	}
}

var degreeKeywords = []string{"bachelor", "master", "phd"}

// EducationMatchScore compares the job's education requirement against the
// candidate's listed education. A shared degree-level keyword scores 1.0;
// any education without a keyword match scores 0.3; no education data at
// all is neutral 0.5.
func EducationMatchScore(requirement string, candidateEducation []string) float64 {
	if len(candidateEducation) == 0 {
		return 0.5
	}
	req := strings.ToLower(requirement)
	for _, kw := range degreeKeywords {
		if !strings.Contains(req, kw) {
			continue
		}
		for _, edu := range candidateEducation {
			if strings.Contains(strings.ToLower(edu), kw) {
				return 1.0
			}
		}
	}
	return 0.3
}

// Breakdown holds the reported sub-scores (0-100) and the weighted total.
type Breakdown struct {
	VectorSimilarity float64 `json:"vector_similarity"`
	SkillsScore      float64 `json:"skills_score"`
	ExperienceScore  float64 `json:"experience_score"`
	EducationScore   float64 `json:"education_score"`
	OverallScore     float64 `json:"overall_score"`
}

// Compute combines unit-interval sub-scores into the reported breakdown.
func Compute(vectorSim, skills, experience, education float64) Breakdown {
	vectorSim = ClampUnit(vectorSim)
	skills = ClampUnit(skills)
	experience = ClampUnit(experience)
	education = ClampUnit(education)

	overall := WeightVectorSimilarity*vectorSim +
		WeightSkills*skills +
		WeightExperience*experience +
		WeightEducation*education

	return Breakdown{
		VectorSimilarity: Round2(100 * vectorSim),
		SkillsScore:      Round2(100 * skills),
		ExperienceScore:  Round2(100 * experience),
		EducationScore:   Round2(100 * education),
		OverallScore:     Round2(100 * overall),
	}
}

func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
