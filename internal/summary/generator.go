package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hirelens/hirelens/internal/nlp"
	"github.com/hirelens/hirelens/internal/providers/llm"
	"github.com/hirelens/hirelens/internal/utils"
)

// Recommendation buckets the model may return; the neutral default is used
// whenever the response omits one.
const (
	RecommendationStrongFit   = "strong_fit"
	RecommendationModerateFit = "moderate_fit"
	RecommendationWeakFit     = "weak_fit"
)

const neutralFitScore = 50

type SkillsAssessment struct {
	TechnicalSkills  []string `json:"technicalSkills"`
	ExperienceLevel  string   `json:"experienceLevel"`
	StrengthAreas    []string `json:"strengthAreas"`
	ImprovementAreas []string `json:"improvementAreas"`
}

// FitSummary is the structured output contract of the summary stage.
type FitSummary struct {
	Summary          string           `json:"summary"`
	KeyHighlights    []string         `json:"keyHighlights"`
	Concerns         []string         `json:"concerns"`
	SkillsAssessment SkillsAssessment `json:"skillsAssessment"`
	FitScore         float64          `json:"fitScore"`
	Recommendation   string           `json:"recommendation"`
}

// Input carries everything the prompt needs.
type Input struct {
	ExtractedText  string
	Features       *nlp.ProcessedCvData
	JobDescription string
}

// Generator produces an AI-written fit summary, falling back to a
// deterministic feature-based summary when the model response cannot be
// parsed. A provider transport error still surfaces so the job layer can
// retry it.
type Generator struct {
	provider llm.Provider
	log      *logrus.Logger
}

func NewGenerator(provider llm.Provider, log *logrus.Logger) *Generator {
	return &Generator{provider: provider, log: log}
}

const maxPromptCVChars = 12000

func (g *Generator) Generate(ctx context.Context, in Input) (*FitSummary, error) {
	const op = "SummaryGenerator.Generate"

	if g.provider == nil {
		return Fallback(in.Features), nil
	}

	raw, err := g.provider.Generate(ctx, buildPrompt(in))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "text generation failed", err)
	}

	fs, err := parseResponse(raw)
	if err != nil {
		g.log.WithError(err).Warn("summary response unparseable, using heuristic fallback")
		return Fallback(in.Features), nil
	}
	return fs, nil
}

func buildPrompt(in Input) string {
	var sb strings.Builder
	sb.WriteString("You are a technical recruiter assistant. Assess how well the candidate below fits the job.\n\n")

	if in.JobDescription != "" {
		sb.WriteString("## JOB\n")
		sb.WriteString(in.JobDescription)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## CANDIDATE RESUME (extracted text)\n")
	cv := in.ExtractedText
	if len(cv) > maxPromptCVChars {
		cv = cv[:maxPromptCVChars] + "\n...[truncated]"
	}
	sb.WriteString(cv)
	sb.WriteString("\n\n")

	if f := in.Features; f != nil {
		sb.WriteString("## EXTRACTED SIGNALS\n")
		fmt.Fprintf(&sb, "Detected skills: %s\n", strings.Join(f.SkillNames(), ", "))
		fmt.Fprintf(&sb, "Total experience: %.1f years\n", f.TotalExperienceYears())
		fmt.Fprintf(&sb, "Education entries: %d\n\n", len(f.Education))
	}

	sb.WriteString("Return ONLY a raw JSON object, no markdown fences, with this exact shape:\n")
	sb.WriteString(`{
  "summary": string,
  "keyHighlights": [string],
  "concerns": [string],
  "skillsAssessment": {
    "technicalSkills": [string],
    "experienceLevel": string,
    "strengthAreas": [string],
    "improvementAreas": [string]
  },
  "fitScore": number between 0 and 100,
  "recommendation": "strong_fit" | "moderate_fit" | "weak_fit"
}`)
	return sb.String()
}

// parseResponse locates the first {...} object in the raw model output and
// decodes it, defaulting any missing field.
func parseResponse(raw string) (*FitSummary, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response (%d chars)", len(raw))
	}

	var decoded struct {
		Summary          *string           `json:"summary"`
		KeyHighlights    []string          `json:"keyHighlights"`
		Concerns         []string          `json:"concerns"`
		SkillsAssessment *SkillsAssessment `json:"skillsAssessment"`
		FitScore         *float64          `json:"fitScore"`
		Recommendation   *string           `json:"recommendation"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return nil, fmt.Errorf("decoding summary JSON: %w", err)
	}

	fs := &FitSummary{
		KeyHighlights:  []string{},
		Concerns:       []string{},
		FitScore:       neutralFitScore,
		Recommendation: RecommendationModerateFit,
		SkillsAssessment: SkillsAssessment{
			TechnicalSkills:  []string{},
			ExperienceLevel:  "unknown",
			StrengthAreas:    []string{},
			ImprovementAreas: []string{},
		},
	}

	if decoded.Summary != nil {
		fs.Summary = strings.TrimSpace(*decoded.Summary)
	}
	if decoded.KeyHighlights != nil {
		fs.KeyHighlights = decoded.KeyHighlights
	}
	if decoded.Concerns != nil {
		fs.Concerns = decoded.Concerns
	}
	if sa := decoded.SkillsAssessment; sa != nil {
		if sa.TechnicalSkills != nil {
			fs.SkillsAssessment.TechnicalSkills = sa.TechnicalSkills
		}
		if sa.ExperienceLevel != "" {
			fs.SkillsAssessment.ExperienceLevel = sa.ExperienceLevel
		}
		if sa.StrengthAreas != nil {
			fs.SkillsAssessment.StrengthAreas = sa.StrengthAreas
		}
		if sa.ImprovementAreas != nil {
			fs.SkillsAssessment.ImprovementAreas = sa.ImprovementAreas
		}
	}
	if decoded.FitScore != nil && *decoded.FitScore >= 0 && *decoded.FitScore <= 100 {
		fs.FitScore = *decoded.FitScore
	}
	if decoded.Recommendation != nil && *decoded.Recommendation != "" {
		fs.Recommendation = *decoded.Recommendation
	}
	return fs, nil
}

// Fallback builds a deterministic summary straight from the NLP features so
// a malformed model response never produces an empty result.
func Fallback(features *nlp.ProcessedCvData) *FitSummary {
	fs := &FitSummary{
		KeyHighlights:  []string{},
		Concerns:       []string{},
		FitScore:       neutralFitScore,
		Recommendation: RecommendationModerateFit,
		SkillsAssessment: SkillsAssessment{
			TechnicalSkills:  []string{},
			ExperienceLevel:  "unknown",
			StrengthAreas:    []string{},
			ImprovementAreas: []string{},
		},
	}

	if features == nil {
		fs.Summary = "Automatic assessment unavailable; no structured signals were extracted from the resume."
		fs.Concerns = append(fs.Concerns, "resume yielded no structured signals")
		return fs
	}

	years := features.TotalExperienceYears()
	skills := features.SkillNames()
	sort.Strings(skills)
	if len(skills) > 5 {
		skills = skills[:5]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Candidate shows approximately %.1f years of detected experience", years)
	if len(skills) > 0 {
		fmt.Fprintf(&sb, " with skills including %s", strings.Join(skills, ", "))
	}
	sb.WriteString(".")
	if len(features.Education) > 0 {
		fmt.Fprintf(&sb, " %d education entr(y/ies) detected.", len(features.Education))
	} else {
		sb.WriteString(" No education information was detected.")
	}
	fs.Summary = sb.String()

	fs.SkillsAssessment.TechnicalSkills = skills
	switch {
	case years >= 8:
		fs.SkillsAssessment.ExperienceLevel = "senior"
	case years >= 3:
		fs.SkillsAssessment.ExperienceLevel = "mid"
	case years > 0:
		fs.SkillsAssessment.ExperienceLevel = "junior"
	}

	if len(skills) > 0 {
		fs.KeyHighlights = append(fs.KeyHighlights, "Detected skills: "+strings.Join(skills, ", "))
	}
	if years == 0 {
		fs.Concerns = append(fs.Concerns, "no work-history date ranges detected")
	}
	if len(features.Education) == 0 {
		fs.Concerns = append(fs.Concerns, "no education information detected")
	}
	return fs
}
