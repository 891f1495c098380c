package nlp

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hirelens/hirelens/internal/taxonomy"
)

// SkillMention is one resolved skill from the CV text.
type SkillMention struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// EducationEntry is one detected education line.
type EducationEntry struct {
	Text        string `json:"text"`
	DegreeLevel string `json:"degree_level,omitempty"` // bachelor | master | phd
}

// WorkPeriod is one detected employment date range.
type WorkPeriod struct {
	Line      string `json:"line"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"` // current year for open-ended ranges
	Months    int    `json:"months"`
}

// ProcessedCvData is the structured feature set the scoring and summary
// stages consume. It is persisted as JSON alongside the screening result
// so later stages do not re-run extraction.
type ProcessedCvData struct {
	Skills                []SkillMention   `json:"skills"`
	UnmatchedTerms        []string         `json:"unmatched_terms,omitempty"`
	Education             []EducationEntry `json:"education"`
	WorkHistory           []WorkPeriod     `json:"work_history"`
	TotalExperienceMonths int              `json:"total_experience_months"`
}

// TotalExperienceYears converts the summed months for scoring.
func (d *ProcessedCvData) TotalExperienceYears() float64 {
	return float64(d.TotalExperienceMonths) / 12.0
}

// SkillNames flattens mentions for scoring and prompts.
func (d *ProcessedCvData) SkillNames() []string {
	out := make([]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		out = append(out, s.Name)
	}
	return out
}

// EducationTexts flattens education lines.
func (d *ProcessedCvData) EducationTexts() []string {
	out := make([]string, 0, len(d.Education))
	for _, e := range d.Education {
		out = append(out, e.Text)
	}
	return out
}

// SkillExtractor is the slice of the taxonomy matcher the extractor needs.
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, text string, semanticThreshold float64) (*taxonomy.ExtractionResult, error)
}

// Extractor derives structured CV features from normalized text.
// Work-history parsing is intentionally shallow: it sums detected year
// ranges without overlap reconciliation, and scoring must cope with CVs
// where nothing is detected at all.
type Extractor struct {
	matcher           SkillExtractor
	semanticThreshold float64
	log               *logrus.Logger
	now               func() time.Time
}

func NewExtractor(matcher SkillExtractor, semanticThreshold float64, log *logrus.Logger) *Extractor {
	if semanticThreshold <= 0 {
		semanticThreshold = taxonomy.DefaultSemanticThreshold
	}
	return &Extractor{
		matcher:           matcher,
		semanticThreshold: semanticThreshold,
		log:               log,
		now:               time.Now,
	}
}

func (e *Extractor) Extract(ctx context.Context, text string) (*ProcessedCvData, error) {
	data := &ProcessedCvData{
		Skills:      []SkillMention{},
		Education:   []EducationEntry{},
		WorkHistory: []WorkPeriod{},
	}

	res, err := e.matcher.ExtractSkills(ctx, text, e.semanticThreshold)
	if err != nil {
		return nil, err
	}
	for _, m := range res.AllMatches() {
		data.Skills = append(data.Skills, SkillMention{
			Name:       m.CanonicalName,
			Category:   string(m.Category),
			Confidence: m.Confidence,
		})
	}
	data.UnmatchedTerms = res.UnmatchedTerms

	data.Education = extractEducation(text)
	data.WorkHistory = extractWorkHistory(text, e.now().Year())
	for _, w := range data.WorkHistory {
		data.TotalExperienceMonths += w.Months
	}

	return data, nil
}

var degreeLevels = []string{"bachelor", "master", "phd"}

var educationKeywords = []string{
	"bachelor", "master", "phd", "b.sc", "m.sc", "bsc", "msc", "mba",
	"b.eng", "m.eng", "doctorate", "university", "degree", "diploma",
}

func extractEducation(text string) []EducationEntry {
	entries := []EducationEntry{}
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		matched := false
		for _, kw := range educationKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		entry := EducationEntry{Text: strings.TrimSpace(line)}
		for _, lvl := range degreeLevels {
			if strings.Contains(lower, lvl) {
				entry.DegreeLevel = lvl
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// yearRangeRe matches "2018 - 2022", "2019 to 2021", "2020 - present" and
// similar employment ranges.
var yearRangeRe = regexp.MustCompile(`(?i)\b(19\d{2}|20\d{2})\s*(?:-|–|—|to|until)\s*(19\d{2}|20\d{2}|present|now|current)\b`)

func extractWorkHistory(text string, currentYear int) []WorkPeriod {
	periods := []WorkPeriod{}
	for _, line := range strings.Split(text, "\n") {
		for _, m := range yearRangeRe.FindAllStringSubmatch(line, -1) {
			start, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			end := currentYear
			if y, err := strconv.Atoi(m[2]); err == nil {
				end = y
			}
			if end < start || start > currentYear {
				continue
			}
			periods = append(periods, WorkPeriod{
				Line:      strings.TrimSpace(line),
				StartYear: start,
				EndYear:   end,
				Months:    (end - start) * 12,
			})
		}
	}
	return periods
}
