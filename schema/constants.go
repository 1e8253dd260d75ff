package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the backend for the snapshot store.
	DatabaseBackend string

	// ImpactLevel is a coarse severity classification of a change set.
	ImpactLevel string

	// GateDecision is the outcome of the re-analysis gate.
	GateDecision string

	// ExclusionReason explains why a repository did not make the ranking.
	ExclusionReason string

	// BadgeKind identifies the fact a badge was derived from.
	BadgeKind string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	MongoDBBackend    DatabaseBackend = "mongodb"
	NoneBackend       DatabaseBackend = "none"
)

// Impact levels in ascending order of severity.
const (
	ImpactNone   ImpactLevel = "none"
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Re-analysis gate decisions.
const (
	ServeCached GateDecision = "SERVE_CACHED"
	Reanalyze   GateDecision = "REANALYZE"
)

// Exclusion reasons, in the order the qualification filters run.
const (
	ReasonDocsOnly        ExclusionReason = "docs-only"
	ReasonNoBuildSignal   ExclusionReason = "no-build-signal"
	ReasonStale           ExclusionReason = "stale(>12m)"
	ReasonArchived        ExclusionReason = "archived"
	ReasonMeaninglessFork ExclusionReason = "meaningless-fork"
	ReasonTutorial        ExclusionReason = "tutorial"
	ReasonBelowThreshold  ExclusionReason = "below-threshold"
	ReasonFetchFailed     ExclusionReason = "fetch-failed"
)

// Badge kinds attached to selected repositories.
const (
	BadgeStars    BadgeKind = "stars"
	BadgeRecency  BadgeKind = "recency"
	BadgeReleases BadgeKind = "releases"
	BadgeCI       BadgeKind = "ci"
	BadgeDocker   BadgeKind = "docker"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	MongoDBBackend:    {},
	NoneBackend:       {},
}

// impactRank orders impact levels for comparisons.
var impactRank = map[ImpactLevel]int{
	ImpactNone:   0,
	ImpactLow:    1,
	ImpactMedium: 2,
	ImpactHigh:   3,
}

// Rank returns the ordinal severity of the level. Unknown levels rank as none.
func (l ImpactLevel) Rank() int {
	return impactRank[l]
}

// AtMost reports whether l is no more severe than other.
func (l ImpactLevel) AtMost(other ImpactLevel) bool {
	return l.Rank() <= other.Rank()
}
