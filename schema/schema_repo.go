package schema

import "time"

// TreeEntry types returned by the source tree listing.
const (
	TreeBlob = "blob"
	TreeDir  = "tree"
)

// TreeEntry is one node of a remote file tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha,omitempty"`
}

// IsBlob reports whether the entry is a file.
func (e TreeEntry) IsBlob() bool {
	return e.Type == TreeBlob
}

// RepositoryMetadata holds the repository-level facts reported by the source.
type RepositoryMetadata struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language"`
	Topics        []string  `json:"topics,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"open_issues"`
	SizeKB        int64     `json:"size_kb"`
	Archived      bool      `json:"archived"`
	IsFork        bool      `json:"is_fork"`
	PushedAt      time.Time `json:"pushed_at"`
	ReleaseCount  int       `json:"release_count"`
}

// CommitInfo is a lightweight view of a recent commit.
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// FetchFailure records one degraded fetch. The analysis continues without the field.
type FetchFailure struct {
	Field     string `json:"field"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// RepoSignals are the file-presence facts derived from a repository tree.
type RepoSignals struct {
	HasManifest      bool     `json:"has_manifest"`
	HasTests         bool     `json:"has_tests"`
	HasCI            bool     `json:"has_ci"`
	HasContainer     bool     `json:"has_container"`
	HasOrchestration bool     `json:"has_orchestration"`
	HasInfraAsCode   bool     `json:"has_infra_as_code"`
	HasMakefile      bool     `json:"has_makefile"`
	HasReadme        bool     `json:"has_readme"`
	SourceFileCount  int      `json:"source_file_count"`
	SourceBytes      int64    `json:"source_bytes"`
	TotalBytes       int64    `json:"total_bytes"`
	StructureDirs    []string `json:"structure_dirs,omitempty"`
	FileCount        int      `json:"file_count"`
}

// HasBuildSignal reports whether any signal file (manifest, container, CI, Makefile) is present.
func (s RepoSignals) HasBuildSignal() bool {
	return s.HasManifest || s.HasContainer || s.HasCI || s.HasMakefile
}

// RepositoryFacts is everything collected for one repository before qualification.
type RepositoryFacts struct {
	Owner            string             `json:"owner"`
	Metadata         RepositoryMetadata `json:"metadata"`
	Languages        map[string]int64   `json:"languages"`
	Signals          RepoSignals        `json:"signals"`
	ReadmeLength     int                `json:"readme_length"`
	ReadmeHasSection bool               `json:"readme_has_sections"`
	ReadmeHasCode    bool               `json:"readme_has_code_block"`
	RecentCommits    []CommitInfo       `json:"recent_commits,omitempty"`
	OpenPulls        int                `json:"open_pulls"`
	Failures         []FetchFailure     `json:"failures,omitempty"`
}

// EssentialFetchFailed reports whether both the language breakdown and the tree are missing,
// which leaves nothing meaningful to qualify.
func (f *RepositoryFacts) EssentialFetchFailed() bool {
	var langs, tree bool
	for _, fail := range f.Failures {
		switch fail.Field {
		case FieldLanguages:
			langs = true
		case FieldTree:
			tree = true
		}
	}
	return langs && tree
}

// DegradedByRetryable reports whether a transient failure left a scored field at its zero
// value. Per-file content misses do not count, since they only affect fingerprints.
func DegradedByRetryable(failures []FetchFailure) bool {
	for _, f := range failures {
		if f.Retryable && f.Field != FieldContent {
			return true
		}
	}
	return false
}

// Field names used in FetchFailure records.
const (
	FieldMetadata  = "metadata"
	FieldLanguages = "languages"
	FieldTree      = "tree"
	FieldReadme    = "readme"
	FieldCommits   = "commits"
	FieldPulls     = "pulls"
	FieldReleases  = "releases"
	FieldContent   = "content"
)

// RepositoryAnalysis is the payload stored for a single-repository key.
type RepositoryAnalysis struct {
	Facts      RepositoryFacts      `json:"facts"`
	Verdict    QualificationVerdict `json:"verdict"`
	Badges     []Badge              `json:"badges,omitempty"`
	AnalyzedAt time.Time            `json:"analyzed_at"`
}

// ProfileAnalysis is the payload stored for a whole-profile key.
type ProfileAnalysis struct {
	Owner      string          `json:"owner"`
	MinScore   float64         `json:"min_score"`
	Selection  SelectionResult `json:"selection"`
	Summary    string          `json:"summary,omitempty"`
	AnalyzedAt time.Time       `json:"analyzed_at"`
}
