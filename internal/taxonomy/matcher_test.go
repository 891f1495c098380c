package taxonomy

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelens/hirelens/internal/models"
	"github.com/hirelens/hirelens/internal/utils"
)

type fakeSkillStore struct {
	skills  []models.Skill
	aliases []models.SkillAlias
	loads   int
}

func (f *fakeSkillStore) ListActiveSkills(context.Context) ([]models.Skill, error) {
	f.loads++
	return f.skills, nil
}

func (f *fakeSkillStore) ListActiveAliases(context.Context) ([]models.SkillAlias, error) {
	return f.aliases, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func testStore() *fakeSkillStore {
	return &fakeSkillStore{
		skills: []models.Skill{
			{ID: 1, CanonicalName: "Go", Category: models.CategoryProgrammingLanguage, IsActive: true},
			{ID: 2, CanonicalName: "PostgreSQL", Category: models.CategoryDatabase, IsActive: true},
			{ID: 3, CanonicalName: "Kubernetes", Category: models.CategoryTool, IsActive: true,
				Embedding: pgvector.NewVector([]float32{1, 0, 0})},
		},
		aliases: []models.SkillAlias{
			{ID: 10, AliasName: "golang", SkillID: 1, Confidence: 9, IsActive: true},
			{ID: 11, AliasName: "postgres", SkillID: 2, Confidence: 8, IsActive: true},
		},
	}
}

func newTestMatcher(t *testing.T, embedder Embedder) (*Matcher, *fakeSkillStore) {
	t.Helper()
	store := testStore()
	m := NewMatcher(store, embedder, logrus.New())
	require.NoError(t, m.Refresh(context.Background()))
	return m, store
}

func TestExtractSkillsExactMatch(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	res, err := m.ExtractSkills(context.Background(), "Built services in Go", 0)
	require.NoError(t, err)

	langs := res.Matches[models.CategoryProgrammingLanguage]
	require.Len(t, langs, 1)
	assert.Equal(t, "Go", langs[0].CanonicalName)
	assert.Equal(t, 1.0, langs[0].Confidence)
	assert.Equal(t, "exact", langs[0].Method)
}

func TestExtractSkillsAliasMatchCaseInsensitive(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	res, err := m.ExtractSkills(context.Background(), "Experienced GOLANG engineer", 0)
	require.NoError(t, err)

	langs := res.Matches[models.CategoryProgrammingLanguage]
	require.Len(t, langs, 1)
	assert.Equal(t, "Go", langs[0].CanonicalName)
	assert.InDelta(t, 0.9, langs[0].Confidence, 1e-9)
	assert.Equal(t, "alias", langs[0].Method)
}

func TestExtractSkillsUnknownTermUnmatched(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	res, err := m.ExtractSkills(context.Background(), "loves quokkas", 0)
	require.NoError(t, err)
	assert.Empty(t, res.AllMatches())
	assert.Contains(t, res.UnmatchedTerms, "quokkas")
}

func TestExtractSkillsReportsSkillOnce(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	// "go" matches exact and "golang" matches the alias of the same skill.
	res, err := m.ExtractSkills(context.Background(), "go golang Go", 0)
	require.NoError(t, err)
	assert.Len(t, res.Matches[models.CategoryProgrammingLanguage], 1)
}

func TestExtractSkillsSemanticMatch(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"k8s": {0.95, 0.05, 0},
	}}
	m, _ := newTestMatcher(t, embedder)

	res, err := m.ExtractSkills(context.Background(), "manages k8s clusters", 0.8)
	require.NoError(t, err)

	tools := res.Matches[models.CategoryTool]
	require.Len(t, tools, 1)
	assert.Equal(t, "Kubernetes", tools[0].CanonicalName)
	assert.Equal(t, "semantic", tools[0].Method)
	assert.GreaterOrEqual(t, tools[0].Confidence, 0.8)
}

func TestExtractSkillsSemanticBelowThresholdUnmatched(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	m, _ := newTestMatcher(t, embedder)

	res, err := m.ExtractSkills(context.Background(), "quokkas", 0.8)
	require.NoError(t, err)
	assert.Empty(t, res.AllMatches())
	assert.Contains(t, res.UnmatchedTerms, "quokkas")
}

func TestExtractSkillsInvalidThreshold(t *testing.T) {
	m, _ := newTestMatcher(t, nil)
	_, err := m.ExtractSkills(context.Background(), "go", 1.5)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestNormalizeJobSkills(t *testing.T) {
	m, _ := newTestMatcher(t, nil)

	out, err := m.NormalizeJobSkills(context.Background(), []string{
		"golang", "Postgres", "PostgreSQL", "Terraform", "  ", "terraform",
	})
	require.NoError(t, err)
	// golang → Go; Postgres and PostgreSQL dedupe to one canonical entry;
	// Terraform is unknown and passes through once.
	assert.Equal(t, []string{"Go", "PostgreSQL", "Terraform"}, out)
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	m, store := newTestMatcher(t, nil)

	skills, aliases, loadedAt := m.Stats()
	assert.Equal(t, 3, skills)
	assert.Equal(t, 2, aliases)
	assert.False(t, loadedAt.IsZero())

	store.skills = append(store.skills, models.Skill{
		ID: 4, CanonicalName: "Terraform", Category: models.CategoryTool, IsActive: true,
	})
	require.NoError(t, m.Refresh(context.Background()))

	res, err := m.ExtractSkills(context.Background(), "terraform modules", 0)
	require.NoError(t, err)
	assert.Len(t, res.Matches[models.CategoryTool], 1)
}

func TestCandidateTerms(t *testing.T) {
	terms := CandidateTerms("Senior C++ / C# dev, node.js & Go!")

	assert.Contains(t, terms, "c++")
	assert.Contains(t, terms, "c#")
	assert.Contains(t, terms, "node.js")
	assert.Contains(t, terms, "go")
	assert.Contains(t, terms, "senior c++")
	// Single letters and >50 char windows are dropped.
	for _, term := range terms {
		assert.GreaterOrEqual(t, len(term), 2)
		assert.LessOrEqual(t, len(term), 50)
	}
}

func TestCandidateTermsDeduplicates(t *testing.T) {
	terms := CandidateTerms("go go go")
	count := 0
	for _, term := range terms {
		if term == "go" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
