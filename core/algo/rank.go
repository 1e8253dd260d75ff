package algo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/reposcout/schema"
)

// Recency badge tiers.
const (
	RecencyActive     = "active"
	RecencyRecent     = "recent"
	RecencyMaintained = "maintained"
	RecencyDormant    = "dormant"
)

// Candidate is one analyzed repository offered for selection.
type Candidate struct {
	Facts   *schema.RepositoryFacts
	Verdict schema.QualificationVerdict
}

// less orders ranked repositories by score, push time, releases and stars, all descending,
// then by name ascending.
func less(a, b schema.RankedRepository) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if !a.Metadata.PushedAt.Equal(b.Metadata.PushedAt) {
		return a.Metadata.PushedAt.After(b.Metadata.PushedAt)
	}
	if a.Metadata.ReleaseCount != b.Metadata.ReleaseCount {
		return a.Metadata.ReleaseCount > b.Metadata.ReleaseCount
	}
	if a.Metadata.Stars != b.Metadata.Stars {
		return a.Metadata.Stars > b.Metadata.Stars
	}
	return strings.ToLower(a.Metadata.Name) < strings.ToLower(b.Metadata.Name)
}

// RankRepositories sorts repositories deterministically, best first.
func RankRepositories(repos []schema.RankedRepository) []schema.RankedRepository {
	sort.SliceStable(repos, func(i, j int) bool {
		return less(repos[i], repos[j])
	})
	return repos
}

// Select keeps qualified candidates scoring at least minScore, ranks them and returns
// the top limit as Selected and the remainder as RunnersUp. Everything else is excluded
// with its reason.
func Select(candidates []Candidate, minScore float64, limit int, now time.Time) schema.SelectionResult {
	result := schema.SelectionResult{
		Selected: []schema.RankedRepository{},
		Excluded: []schema.ExcludedRepository{},
		RankedAt: now,
	}

	var ranked []schema.RankedRepository
	for _, c := range candidates {
		v := c.Verdict
		if !v.Qualified || v.Score == nil {
			reason := schema.ReasonFetchFailed
			if v.ExclusionReason != nil {
				reason = *v.ExclusionReason
			}
			result.Excluded = append(result.Excluded, schema.ExcludedRepository{Metadata: c.Facts.Metadata, Reason: reason})
			continue
		}

		total := v.Score.Total()
		if total < minScore {
			result.Excluded = append(result.Excluded, schema.ExcludedRepository{
				Metadata: c.Facts.Metadata,
				Reason:   schema.ReasonBelowThreshold,
				Total:    total,
			})
			continue
		}

		ranked = append(ranked, schema.RankedRepository{
			Metadata: c.Facts.Metadata,
			Score:    *v.Score,
			Total:    total,
			Signals:  c.Facts.Signals,
			Badges:   Badges(c.Facts.Metadata, c.Facts.Signals, now),
		})
	}

	ranked = RankRepositories(ranked)
	if limit < 0 {
		limit = 0
	}
	if len(ranked) > limit {
		result.Selected = append(result.Selected, ranked[:limit]...)
		result.RunnersUp = ranked[limit:]
	} else {
		result.Selected = append(result.Selected, ranked...)
	}

	sort.SliceStable(result.Excluded, func(i, j int) bool {
		return strings.ToLower(result.Excluded[i].Metadata.Name) < strings.ToLower(result.Excluded[j].Metadata.Name)
	})
	return result
}

// RecencyTier labels how recently a repository was pushed.
func RecencyTier(pushedAt, now time.Time) string {
	days := DaysSince(pushedAt, now)
	switch {
	case days <= 30:
		return RecencyActive
	case days <= 90:
		return RecencyRecent
	case days <= 180:
		return RecencyMaintained
	default:
		return RecencyDormant
	}
}

// Badges derives display badges from computed repository fields.
func Badges(meta schema.RepositoryMetadata, signals schema.RepoSignals, now time.Time) []schema.Badge {
	var badges []schema.Badge
	if meta.Stars > 0 {
		badges = append(badges, schema.Badge{Kind: schema.BadgeStars, Label: fmt.Sprintf("★ %d", meta.Stars)})
	}
	badges = append(badges, schema.Badge{Kind: schema.BadgeRecency, Label: RecencyTier(meta.PushedAt, now)})
	if meta.ReleaseCount > 0 {
		label := fmt.Sprintf("%d releases", meta.ReleaseCount)
		if meta.ReleaseCount == 1 {
			label = "1 release"
		}
		badges = append(badges, schema.Badge{Kind: schema.BadgeReleases, Label: label})
	}
	if signals.HasCI {
		badges = append(badges, schema.Badge{Kind: schema.BadgeCI, Label: "CI"})
	}
	if signals.HasContainer {
		badges = append(badges, schema.Badge{Kind: schema.BadgeDocker, Label: "Docker"})
	}
	return badges
}

// BadgeLabels joins badge labels for compact display.
func BadgeLabels(badges []schema.Badge) string {
	labels := make([]string, 0, len(badges))
	for _, b := range badges {
		labels = append(labels, b.Label)
	}
	return strings.Join(labels, ", ")
}

// Recut re-splits a ranked selection at a new limit. Selected and RunnersUp together hold
// every repository above the threshold in rank order, so no rescoring is needed.
// It reports whether the selected set changed.
func Recut(sel schema.SelectionResult, limit int) (schema.SelectionResult, bool) {
	pool := make([]schema.RankedRepository, 0, len(sel.Selected)+len(sel.RunnersUp))
	pool = append(pool, sel.Selected...)
	pool = append(pool, sel.RunnersUp...)
	limit = max(min(limit, len(pool)), 0)
	if limit == len(sel.Selected) {
		return sel, false
	}
	sel.Selected = append([]schema.RankedRepository{}, pool[:limit]...)
	sel.RunnersUp = nil
	if limit < len(pool) {
		sel.RunnersUp = append([]schema.RankedRepository{}, pool[limit:]...)
	}
	return sel, true
}
