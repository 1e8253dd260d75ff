package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ProfileRepo is the repository placeholder used in the canonical string of a profile key.
const ProfileRepo = "*"

// RepositoryKey identifies a stored analysis. An empty Repo denotes a whole-profile analysis.
type RepositoryKey struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo,omitempty"`
}

// NewRepositoryKey builds a normalized key. Owner and repo names are case-insensitive upstream.
func NewRepositoryKey(owner, repo string) RepositoryKey {
	repo = strings.ToLower(strings.TrimSpace(repo))
	if repo == ProfileRepo {
		repo = ""
	}
	return RepositoryKey{
		Owner: strings.ToLower(strings.TrimSpace(owner)),
		Repo:  repo,
	}
}

// ParseRepositoryKey parses "owner", "owner/*" or "owner/repo".
func ParseRepositoryKey(s string) (RepositoryKey, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return RepositoryKey{}, fmt.Errorf("repository key is empty")
	}
	owner, repo, _ := strings.Cut(s, "/")
	if owner == "" || strings.Contains(repo, "/") {
		return RepositoryKey{}, fmt.Errorf("invalid repository key %q. Expected owner or owner/repo", s)
	}
	return NewRepositoryKey(owner, repo), nil
}

// IsProfile reports whether the key covers the whole profile of the owner.
func (k RepositoryKey) IsProfile() bool {
	return k.Repo == ""
}

// String returns the canonical storage form of the key.
func (k RepositoryKey) String() string {
	if k.IsProfile() {
		return k.Owner + "/" + ProfileRepo
	}
	return k.Owner + "/" + k.Repo
}

// FileFingerprint is the content hash of one tracked file.
type FileFingerprint struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// FingerprintMap maps a path to its fingerprint.
type FingerprintMap map[string]FileFingerprint

// Add inserts a fingerprint keyed by its path.
func (m FingerprintMap) Add(fp FileFingerprint) {
	m[fp.Path] = fp
}

// AnalysisSnapshot pairs an analysis payload with the fingerprint map that produced it.
type AnalysisSnapshot struct {
	Key           RepositoryKey   `json:"key"`
	Payload       json.RawMessage `json:"payload"`
	Fingerprints  FingerprintMap  `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
}

// Age returns how long ago the snapshot was created.
func (s *AnalysisSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
