package schema

import "time"

// Category caps for ScoreBreakdown.
const (
	MaturityCap   = 30.0
	ActivityCap   = 25.0
	CodeScaleCap  = 20.0
	DeploymentCap = 15.0
	ImpactCap     = 10.0
	MaxTotalScore = MaturityCap + ActivityCap + CodeScaleCap + DeploymentCap + ImpactCap
)

// ScoreBreakdown is the five-category score of a qualified repository.
type ScoreBreakdown struct {
	Maturity   float64 `json:"maturity"`
	Activity   float64 `json:"activity"`
	CodeScale  float64 `json:"code_scale"`
	Deployment float64 `json:"deployment"`
	Impact     float64 `json:"impact"`
}

// Total returns the sum of all categories.
func (b ScoreBreakdown) Total() float64 {
	return b.Maturity + b.Activity + b.CodeScale + b.Deployment + b.Impact
}

// QualificationVerdict is the outcome of the qualification filters and, when qualified, scoring.
type QualificationVerdict struct {
	Qualified       bool             `json:"qualified"`
	ExclusionReason *ExclusionReason `json:"exclusion_reason"`
	Score           *ScoreBreakdown  `json:"score_breakdown"`
}

// Rejected builds a verdict for a repository that failed a filter.
func Rejected(reason ExclusionReason) QualificationVerdict {
	return QualificationVerdict{Qualified: false, ExclusionReason: &reason}
}

// Badge is a short human-readable fact about a selected repository.
type Badge struct {
	Kind  BadgeKind `json:"kind"`
	Label string    `json:"label"`
}

// RankedRepository is a qualified repository with its score.
type RankedRepository struct {
	Metadata RepositoryMetadata `json:"metadata"`
	Score    ScoreBreakdown     `json:"score"`
	Total    float64            `json:"total"`
	Signals  RepoSignals        `json:"signals"`
	Badges   []Badge            `json:"badges,omitempty"`
}

// ExcludedRepository is a repository left out of the ranking, with the reason.
type ExcludedRepository struct {
	Metadata RepositoryMetadata `json:"metadata"`
	Reason   ExclusionReason    `json:"reason"`
	Total    float64            `json:"total,omitempty"`
}

// SelectionResult is the outcome of qualification and ranking over a repository list.
type SelectionResult struct {
	Selected  []RankedRepository   `json:"selected"`
	RunnersUp []RankedRepository   `json:"runners_up,omitempty"`
	Excluded  []ExcludedRepository `json:"excluded"`
	Failures  []FetchFailure       `json:"failures,omitempty"`
	RankedAt  time.Time            `json:"ranked_at"`
}
