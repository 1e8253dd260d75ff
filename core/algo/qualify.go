// Package algo holds the pure qualification, scoring and ranking rules.
package algo

import (
	"strings"
	"time"
	"unicode"

	"github.com/huangsam/reposcout/schema"
)

// Qualification thresholds.
const (
	DocsOnlyRatio    = 0.20
	DocsOnlyMaxLOC   = 200.0
	TutorialMaxLOC   = 1000.0
	LinesPerKilobyte = 50.0
	DefaultStaleDays = 365
	hoursPerDay      = 24
)

// documentationLanguages are not counted as code in the language breakdown.
var documentationLanguages = map[string]struct{}{
	"Markdown":         {},
	"TeX":              {},
	"reStructuredText": {},
	"Text":             {},
	"AsciiDoc":         {},
	"Roff":             {},
	"MDX":              {},
}

// tutorialKeywords mark learning material rather than a project.
var tutorialKeywords = map[string]struct{}{
	"tutorial": {}, "tutorials": {}, "sample": {}, "samples": {}, "demo": {}, "demos": {},
	"example": {}, "examples": {}, "exercise": {}, "exercises": {}, "practice": {},
	"course": {}, "homework": {}, "playground": {}, "boilerplate": {}, "starter": {},
	"hello": {}, "learn": {}, "learning": {},
}

// Policy holds the configurable qualification windows.
type Policy struct {
	StaleDays     int
	ForkStaleDays int
}

// DefaultPolicy returns a policy with the documented defaults.
func DefaultPolicy() Policy {
	return Policy{StaleDays: DefaultStaleDays, ForkStaleDays: DefaultStaleDays}
}

// Filter is one hard qualification rule. Reject returns true when the repository fails it.
type Filter struct {
	Reason schema.ExclusionReason
	Reject func(facts *schema.RepositoryFacts, policy Policy, now time.Time) bool
}

// DefaultFilters returns the qualification filters in evaluation order.
func DefaultFilters() []Filter {
	return []Filter{
		{Reason: schema.ReasonDocsOnly, Reject: rejectDocsOnly},
		{Reason: schema.ReasonNoBuildSignal, Reject: rejectNoBuildSignal},
		{Reason: schema.ReasonStale, Reject: rejectStale},
		{Reason: schema.ReasonArchived, Reject: rejectArchived},
		{Reason: schema.ReasonMeaninglessFork, Reject: rejectMeaninglessFork},
		{Reason: schema.ReasonTutorial, Reject: rejectTutorial},
	}
}

// Qualifier runs the filter chain and scores repositories that pass it.
type Qualifier struct {
	Filters []Filter
	Policy  Policy
}

// NewQualifier returns a qualifier using the default filters.
func NewQualifier(policy Policy) *Qualifier {
	if policy.StaleDays <= 0 {
		policy.StaleDays = DefaultStaleDays
	}
	if policy.ForkStaleDays <= 0 {
		policy.ForkStaleDays = policy.StaleDays
	}
	return &Qualifier{Filters: DefaultFilters(), Policy: policy}
}

// Qualify applies the filters in order and stops at the first failure.
// A rejected repository is never scored.
func (q *Qualifier) Qualify(facts *schema.RepositoryFacts, now time.Time) schema.QualificationVerdict {
	if facts.EssentialFetchFailed() {
		return schema.Rejected(schema.ReasonFetchFailed)
	}
	for _, f := range q.Filters {
		if f.Reject(facts, q.Policy, now) {
			return schema.Rejected(f.Reason)
		}
	}
	score := ComputeScore(NewScoreInput(facts), now)
	return schema.QualificationVerdict{Qualified: true, Score: &score}
}

// CodeStats returns the code ratio and the estimated lines of code.
// The language breakdown is preferred; the tree byte totals are the fallback.
func CodeStats(facts *schema.RepositoryFacts) (ratio float64, loc float64) {
	var codeBytes, totalBytes int64
	if len(facts.Languages) > 0 {
		for lang, n := range facts.Languages {
			totalBytes += n
			if _, doc := documentationLanguages[lang]; !doc {
				codeBytes += n
			}
		}
	} else {
		codeBytes = facts.Signals.SourceBytes
		totalBytes = facts.Signals.TotalBytes
	}
	if totalBytes <= 0 || codeBytes <= 0 {
		return 0, 0
	}
	return float64(codeBytes) / float64(totalBytes), EstimateLOC(codeBytes)
}

// EstimateLOC converts code bytes to an approximate line count.
func EstimateLOC(codeBytes int64) float64 {
	return float64(codeBytes) / 1024 * LinesPerKilobyte
}

// DaysSince returns the whole and fractional days between t and now.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / hoursPerDay
}

// IsTutorial reports whether a tutorial keyword appears as a token of the name or description.
func IsTutorial(name, description string) bool {
	text := strings.ToLower(name + " " + description)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if _, ok := tutorialKeywords[tok]; ok {
			return true
		}
	}
	return false
}

func rejectDocsOnly(facts *schema.RepositoryFacts, _ Policy, _ time.Time) bool {
	ratio, loc := CodeStats(facts)
	return ratio < DocsOnlyRatio && loc < DocsOnlyMaxLOC
}

func rejectNoBuildSignal(facts *schema.RepositoryFacts, _ Policy, _ time.Time) bool {
	s := facts.Signals
	if s.HasBuildSignal() {
		return false
	}
	return !(s.SourceFileCount > 0 && s.HasReadme)
}

func rejectStale(facts *schema.RepositoryFacts, policy Policy, now time.Time) bool {
	return DaysSince(facts.Metadata.PushedAt, now) > float64(policy.StaleDays)
}

func rejectArchived(facts *schema.RepositoryFacts, _ Policy, _ time.Time) bool {
	return facts.Metadata.Archived
}

func rejectMeaninglessFork(facts *schema.RepositoryFacts, policy Policy, now time.Time) bool {
	m := facts.Metadata
	if !m.IsFork || m.Stars != 0 || m.Forks != 0 {
		return false
	}
	return DaysSince(m.PushedAt, now) > float64(policy.ForkStaleDays)
}

func rejectTutorial(facts *schema.RepositoryFacts, _ Policy, _ time.Time) bool {
	if !IsTutorial(facts.Metadata.Name, facts.Metadata.Description) {
		return false
	}
	_, loc := CodeStats(facts)
	return loc < TutorialMaxLOC
}
