package algo

import (
	"testing"
	"time"

	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qualified(name string, total float64, pushed time.Time, releases, stars int) Candidate {
	score := schema.ScoreBreakdown{Maturity: total}
	return Candidate{
		Facts: &schema.RepositoryFacts{Metadata: schema.RepositoryMetadata{
			Name:         name,
			PushedAt:     pushed,
			ReleaseCount: releases,
			Stars:        stars,
		}},
		Verdict: schema.QualificationVerdict{Qualified: true, Score: &score},
	}
}

func rejected(name string, reason schema.ExclusionReason) Candidate {
	return Candidate{
		Facts:   &schema.RepositoryFacts{Metadata: schema.RepositoryMetadata{Name: name}},
		Verdict: schema.Rejected(reason),
	}
}

func names(repos []schema.RankedRepository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Metadata.Name)
	}
	return out
}

func TestSelectTieBreaks(t *testing.T) {
	pushed := daysAgo(5)
	candidates := []Candidate{
		qualified("zeta", 50, pushed, 1, 1),
		qualified("alpha", 50, pushed, 1, 1),
		qualified("more-stars", 50, pushed, 1, 9),
		qualified("more-releases", 50, pushed, 3, 0),
		qualified("newer", 50, daysAgo(1), 0, 0),
		qualified("top", 60, daysAgo(300), 0, 0),
	}

	result := Select(candidates, 35, 10, testNow)
	assert.Equal(t, []string{"top", "newer", "more-releases", "more-stars", "alpha", "zeta"}, names(result.Selected))
	assert.Empty(t, result.RunnersUp)
}

func TestSelectIsOrderIndependent(t *testing.T) {
	pushed := daysAgo(5)
	a := qualified("a", 40, pushed, 0, 0)
	b := qualified("b", 40, pushed, 0, 0)
	c := qualified("c", 45, pushed, 0, 0)

	first := Select([]Candidate{a, b, c}, 35, 5, testNow)
	second := Select([]Candidate{c, b, a}, 35, 5, testNow)
	assert.Equal(t, names(first.Selected), names(second.Selected))
}

func TestSelectThresholdAndLimit(t *testing.T) {
	pushed := daysAgo(5)
	candidates := []Candidate{
		qualified("one", 90, pushed, 0, 0),
		qualified("two", 80, pushed, 0, 0),
		qualified("three", 70, pushed, 0, 0),
		qualified("weak", 34.9, pushed, 0, 0),
		qualified("edge", 35, pushed, 0, 0),
		rejected("old", schema.ReasonStale),
		rejected("notes", schema.ReasonDocsOnly),
	}

	result := Select(candidates, 35, 2, testNow)
	assert.Equal(t, []string{"one", "two"}, names(result.Selected))
	assert.Equal(t, []string{"three", "edge"}, names(result.RunnersUp))

	require.Len(t, result.Excluded, 3)
	assert.Equal(t, "notes", result.Excluded[0].Metadata.Name)
	assert.Equal(t, schema.ReasonDocsOnly, result.Excluded[0].Reason)
	assert.Equal(t, "old", result.Excluded[1].Metadata.Name)
	assert.Equal(t, "weak", result.Excluded[2].Metadata.Name)
	assert.Equal(t, schema.ReasonBelowThreshold, result.Excluded[2].Reason)
	assert.InDelta(t, 34.9, result.Excluded[2].Total, 1e-9)
	assert.Equal(t, testNow, result.RankedAt)
}

func TestSelectEmpty(t *testing.T) {
	result := Select(nil, 35, 4, testNow)
	assert.NotNil(t, result.Selected)
	assert.Empty(t, result.Selected)
	assert.Empty(t, result.Excluded)
}

func TestRecut(t *testing.T) {
	pushed := daysAgo(5)
	candidates := []Candidate{
		qualified("one", 90, pushed, 0, 0),
		qualified("two", 80, pushed, 0, 0),
		qualified("three", 70, pushed, 0, 0),
		rejected("old", schema.ReasonStale),
	}
	stored := Select(candidates, 35, 2, testNow)

	same, changed := Recut(stored, 2)
	assert.False(t, changed)
	assert.Equal(t, stored, same)

	wider, changed := Recut(stored, 5)
	assert.True(t, changed)
	assert.Equal(t, []string{"one", "two", "three"}, names(wider.Selected))
	assert.Empty(t, wider.RunnersUp)
	assert.Equal(t, stored.Excluded, wider.Excluded)

	narrower, changed := Recut(wider, 1)
	assert.True(t, changed)
	assert.Equal(t, []string{"one"}, names(narrower.Selected))
	assert.Equal(t, []string{"two", "three"}, names(narrower.RunnersUp))
	assert.Equal(t, []string{"one", "two", "three"}, names(wider.Selected))

	_, changed = Recut(wider, 4)
	assert.False(t, changed)
}

func TestRecencyTier(t *testing.T) {
	assert.Equal(t, RecencyActive, RecencyTier(daysAgo(30), testNow))
	assert.Equal(t, RecencyRecent, RecencyTier(daysAgo(31), testNow))
	assert.Equal(t, RecencyMaintained, RecencyTier(daysAgo(180), testNow))
	assert.Equal(t, RecencyDormant, RecencyTier(daysAgo(181), testNow))
}

func TestBadges(t *testing.T) {
	meta := schema.RepositoryMetadata{Stars: 42, ReleaseCount: 1, PushedAt: daysAgo(2)}
	badges := Badges(meta, schema.RepoSignals{HasCI: true, HasContainer: true}, testNow)

	kinds := make([]schema.BadgeKind, 0, len(badges))
	for _, b := range badges {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []schema.BadgeKind{
		schema.BadgeStars, schema.BadgeRecency, schema.BadgeReleases, schema.BadgeCI, schema.BadgeDocker,
	}, kinds)
	assert.Equal(t, "★ 42, active, 1 release, CI, Docker", BadgeLabels(badges))

	bare := Badges(schema.RepositoryMetadata{PushedAt: daysAgo(400)}, schema.RepoSignals{}, testNow)
	assert.Equal(t, "dormant", BadgeLabels(bare))
}
