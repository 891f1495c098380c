package taxonomy

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/scoring"
	"github.com/hirelens/hirelens/internal/utils"
)

// DefaultSemanticThreshold is the minimum cosine similarity for a semantic
// match when the caller does not supply one.
const DefaultSemanticThreshold = 0.8

// SkillStore is the read side of the taxonomy tables. The tables belong to
// the taxonomy-management module; the matcher only loads them into its
// snapshot.
type SkillStore interface {
	ListActiveSkills(ctx context.Context) ([]models.Skill, error)
	ListActiveAliases(ctx context.Context) ([]models.SkillAlias, error)
}

// Embedder is the subset of the embedding client the semantic step needs.
type Embedder interface {
	Embed(ctx context.Context, text string) (vector []float32, err error)
}

// Match is one resolved skill mention.
type Match struct {
	SkillID       uint                 `json:"skill_id"`
	CanonicalName string               `json:"canonical_name"`
	Category      models.SkillCategory `json:"category"`
	MatchedTerm   string               `json:"matched_term"`
	Confidence    float64              `json:"confidence"`
	Method        string               `json:"method"` // exact | alias | semantic
}

// ExtractionResult groups matches by category.
type ExtractionResult struct {
	Matches        map[models.SkillCategory][]Match `json:"matches"`
	UnmatchedTerms []string                         `json:"unmatched_terms"`
}

// AllMatches flattens the category groups.
func (r *ExtractionResult) AllMatches() []Match {
	var out []Match
	for _, ms := range r.Matches {
		out = append(out, ms...)
	}
	return out
}

type aliasEntry struct {
	skill      *models.Skill
	confidence float64
}

// snapshot is an immutable view of the active taxonomy. Readers grab the
// whole structure; Refresh swaps it atomically, never mutates in place.
type snapshot struct {
	byCanonical map[string]*models.Skill
	byAlias     map[string]aliasEntry
	embedded    []*models.Skill
	loadedAt    time.Time
}

// Matcher resolves free-text skill mentions to canonical taxonomy entries.
type Matcher struct {
	store    SkillStore
	embedder Embedder // nil disables the semantic step
	log      *logrus.Logger

	snap atomic.Pointer[snapshot]
}

func NewMatcher(store SkillStore, embedder Embedder, log *logrus.Logger) *Matcher {
	return &Matcher{store: store, embedder: embedder, log: log}
}

// Refresh rebuilds the snapshot from persisted state and swaps it in.
// Concurrent readers keep whatever snapshot they already hold.
func (m *Matcher) Refresh(ctx context.Context) error {
	const op = "Matcher.Refresh"

	skills, err := m.store.ListActiveSkills(ctx)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load skills", err)
	}
	aliases, err := m.store.ListActiveAliases(ctx)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load skill aliases", err)
	}

	snap := &snapshot{
		byCanonical: make(map[string]*models.Skill, len(skills)),
		byAlias:     make(map[string]aliasEntry, len(aliases)),
		loadedAt:    time.Now().UTC(),
	}

	byID := make(map[uint]*models.Skill, len(skills))
	for i := range skills {
		s := &skills[i]
		byID[s.ID] = s
		snap.byCanonical[strings.ToLower(s.CanonicalName)] = s
		if s.HasEmbedding() {
			snap.embedded = append(snap.embedded, s)
		}
	}
	for i := range aliases {
		a := &aliases[i]
		skill, ok := byID[a.SkillID]
		if !ok {
			continue // alias of an inactive skill
		}
		snap.byAlias[strings.ToLower(a.AliasName)] = aliasEntry{
			skill:      skill,
			confidence: float64(a.Confidence) / 10.0,
		}
	}

	m.snap.Store(snap)
	m.log.WithFields(logrus.Fields{
		"skills":   len(snap.byCanonical),
		"aliases":  len(snap.byAlias),
		"embedded": len(snap.embedded),
	}).Info("skill taxonomy cache rebuilt")
	return nil
}

func (m *Matcher) current(ctx context.Context) (*snapshot, error) {
	if s := m.snap.Load(); s != nil {
		return s, nil
	}
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m.snap.Load(), nil
}

// Stats reports the size of the loaded snapshot.
func (m *Matcher) Stats() (skills, aliases int, loadedAt time.Time) {
	s := m.snap.Load()
	if s == nil {
		return 0, 0, time.Time{}
	}
	return len(s.byCanonical), len(s.byAlias), s.loadedAt
}

// ExtractSkills resolves candidate terms from text against the taxonomy.
// Per term the lookup order is exact, alias, then semantic (when an
// embedder is configured and threshold > 0). Each skill is reported at
// most once; terms that resolve to nothing come back as unmatched.
func (m *Matcher) ExtractSkills(ctx context.Context, text string, semanticThreshold float64) (*ExtractionResult, error) {
	const op = "Matcher.ExtractSkills"

	if semanticThreshold < 0 || semanticThreshold > 1 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "semantic threshold must be in [0, 1]", nil)
	}

	snap, err := m.current(ctx)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{Matches: make(map[models.SkillCategory][]Match)}
	seenSkills := make(map[uint]bool)

	for _, term := range CandidateTerms(text) {
		match, ok := m.resolve(ctx, snap, term, semanticThreshold)
		if !ok {
			result.UnmatchedTerms = append(result.UnmatchedTerms, term)
			continue
		}
		if seenSkills[match.SkillID] {
			continue
		}
		seenSkills[match.SkillID] = true
		result.Matches[match.Category] = append(result.Matches[match.Category], match)
	}
	return result, nil
}

func (m *Matcher) resolve(ctx context.Context, snap *snapshot, term string, threshold float64) (Match, bool) {
	if skill, ok := snap.byCanonical[term]; ok {
		return Match{
			SkillID:       skill.ID,
			CanonicalName: skill.CanonicalName,
			Category:      skill.Category,
			MatchedTerm:   term,
			Confidence:    1.0,
			Method:        "exact",
		}, true
	}

	if entry, ok := snap.byAlias[term]; ok {
		return Match{
			SkillID:       entry.skill.ID,
			CanonicalName: entry.skill.CanonicalName,
			Category:      entry.skill.Category,
			MatchedTerm:   term,
			Confidence:    entry.confidence,
			Method:        "alias",
		}, true
	}

	if m.embedder == nil || threshold == 0 || len(snap.embedded) == 0 {
		return Match{}, false
	}

	vec, err := m.embedder.Embed(ctx, term)
	if err != nil {
		// Semantic matching is best-effort; a provider outage must not
		// sink the whole extraction.
		m.log.WithError(err).WithField("term", term).Warn("semantic skill match skipped")
		return Match{}, false
	}

	var best *models.Skill
	bestSim := 0.0
	for _, skill := range snap.embedded {
		sim := scoring.CosineSimilarity(vec, skill.Embedding.Slice())
		if sim > bestSim {
			bestSim = sim
			best = skill
		}
	}
	if best == nil || bestSim < threshold {
		return Match{}, false
	}
	return Match{
		SkillID:       best.ID,
		CanonicalName: best.CanonicalName,
		Category:      best.Category,
		MatchedTerm:   term,
		Confidence:    bestSim,
		Method:        "semantic",
	}, true
}

// NormalizeJobSkills maps free-text skill names to canonical names using
// exact and alias lookups only. Results are unique by skill; inputs that
// match nothing pass through unchanged.
func (m *Matcher) NormalizeJobSkills(ctx context.Context, skills []string) ([]string, error) {
	snap, err := m.current(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(skills))
	seenIDs := make(map[uint]bool)
	seenRaw := make(map[string]bool)

	for _, raw := range skills {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			continue
		}
		if skill, ok := snap.byCanonical[term]; ok {
			if !seenIDs[skill.ID] {
				seenIDs[skill.ID] = true
				out = append(out, skill.CanonicalName)
			}
			continue
		}
		if entry, ok := snap.byAlias[term]; ok {
			if !seenIDs[entry.skill.ID] {
				seenIDs[entry.skill.ID] = true
				out = append(out, entry.skill.CanonicalName)
			}
			continue
		}
		if !seenRaw[term] {
			seenRaw[term] = true
			out = append(out, raw)
		}
	}
	return out, nil
}

const (
	minTermLen = 2
	maxTermLen = 50
)

// termKept are punctuation runes that stay inside a token ("c++", "c#",
// "node.js", "scikit-learn").
func termKept(r rune) bool {
	return r == '+' || r == '#' || r == '.' || r == '-'
}

// CandidateTerms tokenizes text into unique lowercase 1-, 2- and 3-word
// windows between 2 and 50 characters, preserving first-seen order.
func CandidateTerms(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case termKept(r):
			return r
		case r > 127: // keep non-ASCII letters as-is
			return r
		default:
			return ' '
		}
	}, strings.ToLower(text))

	words := strings.Fields(cleaned)

	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.Trim(t, ".-")
		if len(t) < minTermLen || len(t) > maxTermLen || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	for i := range words {
		add(words[i])
		if i+1 < len(words) {
			add(words[i] + " " + words[i+1])
		}
		if i+2 < len(words) {
			add(words[i] + " " + words[i+1] + " " + words[i+2])
		}
	}
	return terms
}
