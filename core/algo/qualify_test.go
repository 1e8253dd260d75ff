package algo

import (
	"testing"
	"time"

	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return testNow.AddDate(0, 0, -d)
}

// goodFacts returns a repository that passes every filter.
func goodFacts() *schema.RepositoryFacts {
	return &schema.RepositoryFacts{
		Owner: "octocat",
		Metadata: schema.RepositoryMetadata{
			Name:         "widget",
			Description:  "A CLI for widgets",
			Stars:        120,
			Forks:        25,
			ReleaseCount: 4,
			PushedAt:     daysAgo(10),
		},
		Languages: map[string]int64{"Go": 200000, "Markdown": 5000},
		Signals: schema.RepoSignals{
			HasManifest:     true,
			HasTests:        true,
			HasCI:           true,
			HasContainer:    true,
			HasReadme:       true,
			SourceFileCount: 40,
			StructureDirs:   []string{"cmd", "internal"},
		},
		ReadmeLength:     2000,
		ReadmeHasSection: true,
		ReadmeHasCode:    true,
	}
}

func TestQualifyFilters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*schema.RepositoryFacts)
		reason schema.ExclusionReason
	}{
		{"docs only", func(f *schema.RepositoryFacts) {
			f.Languages = map[string]int64{"Markdown": 10000, "Go": 500}
		}, schema.ReasonDocsOnly},
		{"no build signal", func(f *schema.RepositoryFacts) {
			f.Signals = schema.RepoSignals{HasReadme: true}
		}, schema.ReasonNoBuildSignal},
		{"stale", func(f *schema.RepositoryFacts) {
			f.Metadata.PushedAt = daysAgo(400)
		}, schema.ReasonStale},
		{"archived", func(f *schema.RepositoryFacts) {
			f.Metadata.Archived = true
		}, schema.ReasonArchived},
		{"tutorial", func(f *schema.RepositoryFacts) {
			f.Metadata.Name = "react-tutorial"
			f.Languages = map[string]int64{"JavaScript": 10000}
		}, schema.ReasonTutorial},
		{"fetch failed", func(f *schema.RepositoryFacts) {
			f.Failures = []schema.FetchFailure{{Field: schema.FieldLanguages}, {Field: schema.FieldTree}}
		}, schema.ReasonFetchFailed},
	}

	q := NewQualifier(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := goodFacts()
			tt.mutate(facts)
			v := q.Qualify(facts, testNow)
			assert.False(t, v.Qualified)
			require.NotNil(t, v.ExclusionReason)
			assert.Equal(t, tt.reason, *v.ExclusionReason)
			assert.Nil(t, v.Score)
		})
	}
}

func TestQualifyGoodRepository(t *testing.T) {
	v := NewQualifier(DefaultPolicy()).Qualify(goodFacts(), testNow)
	assert.True(t, v.Qualified)
	assert.Nil(t, v.ExclusionReason)
	require.NotNil(t, v.Score)
	assert.Greater(t, v.Score.Total(), 70.0)
}

func TestQualifyArchivedRepository(t *testing.T) {
	facts := goodFacts()
	facts.Metadata.Archived = true
	facts.Metadata.Stars = 5000

	v := NewQualifier(DefaultPolicy()).Qualify(facts, testNow)
	require.NotNil(t, v.ExclusionReason)
	assert.Equal(t, schema.ReasonArchived, *v.ExclusionReason)
	assert.Nil(t, v.Score)
}

func TestQualifySourceAndReadmeFallback(t *testing.T) {
	facts := goodFacts()
	facts.Metadata.Name = "scraper"
	facts.Metadata.Description = ""
	facts.Languages = map[string]int64{"Python": 3000}
	facts.Signals = schema.RepoSignals{HasReadme: true, SourceFileCount: 2}

	v := NewQualifier(DefaultPolicy()).Qualify(facts, testNow)
	assert.True(t, v.Qualified)
	require.NotNil(t, v.Score)

	facts.Signals.HasReadme = false
	v = NewQualifier(DefaultPolicy()).Qualify(facts, testNow)
	require.NotNil(t, v.ExclusionReason)
	assert.Equal(t, schema.ReasonNoBuildSignal, *v.ExclusionReason)
}

func TestQualifyShortCircuits(t *testing.T) {
	q := NewQualifier(DefaultPolicy())
	calls := make([]int, len(q.Filters))
	for i, f := range q.Filters {
		reject := f.Reject
		q.Filters[i].Reject = func(facts *schema.RepositoryFacts, p Policy, now time.Time) bool {
			calls[i]++
			return reject(facts, p, now)
		}
	}

	facts := goodFacts()
	facts.Metadata.PushedAt = daysAgo(500) // fails the third filter
	facts.Metadata.Archived = true

	v := q.Qualify(facts, testNow)
	require.NotNil(t, v.ExclusionReason)
	assert.Equal(t, schema.ReasonStale, *v.ExclusionReason)
	assert.Equal(t, []int{1, 1, 1, 0, 0, 0}, calls)
}

func TestQualifyMeaninglessFork(t *testing.T) {
	q := NewQualifier(Policy{StaleDays: 500, ForkStaleDays: 365})

	facts := goodFacts()
	facts.Metadata.IsFork = true
	facts.Metadata.Stars = 0
	facts.Metadata.Forks = 0
	facts.Metadata.PushedAt = daysAgo(400)

	v := q.Qualify(facts, testNow)
	require.NotNil(t, v.ExclusionReason)
	assert.Equal(t, schema.ReasonMeaninglessFork, *v.ExclusionReason)

	facts.Metadata.Stars = 1
	assert.True(t, q.Qualify(facts, testNow).Qualified)
}

func TestForkWindowDefaultsToStaleWindow(t *testing.T) {
	q := NewQualifier(Policy{StaleDays: 200})
	assert.Equal(t, 200, q.Policy.ForkStaleDays)
}

func TestQualifyLargeTutorialPasses(t *testing.T) {
	facts := goodFacts()
	facts.Metadata.Name = "go-examples"
	facts.Languages = map[string]int64{"Go": 100000}

	assert.True(t, NewQualifier(DefaultPolicy()).Qualify(facts, testNow).Qualified)
}

func TestIsTutorial(t *testing.T) {
	assert.True(t, IsTutorial("hello-world", ""))
	assert.True(t, IsTutorial("kit", "Starter template for APIs"))
	assert.True(t, IsTutorial("Demo_App", ""))
	assert.False(t, IsTutorial("examplar", "A sampler of things"))
	assert.False(t, IsTutorial("widget", "Production service"))
}

func TestCodeStats(t *testing.T) {
	ratio, loc := CodeStats(&schema.RepositoryFacts{
		Languages: map[string]int64{"Go": 3072, "Markdown": 1024},
	})
	assert.InDelta(t, 0.75, ratio, 1e-9)
	assert.InDelta(t, 150.0, loc, 1e-9)

	ratio, loc = CodeStats(&schema.RepositoryFacts{
		Signals: schema.RepoSignals{SourceBytes: 2048, TotalBytes: 4096},
	})
	assert.InDelta(t, 0.5, ratio, 1e-9)
	assert.InDelta(t, 100.0, loc, 1e-9)

	ratio, loc = CodeStats(&schema.RepositoryFacts{})
	assert.Zero(t, ratio)
	assert.Zero(t, loc)
}
