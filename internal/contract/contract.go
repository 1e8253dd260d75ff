// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/huangsam/reposcout/schema"
)

// SourceClient defines the remote source operations the pipeline depends on.
// This allows the core analysis logic to be tested without reaching the network.
// Implementations return ErrNotFound for absent resources and ErrRateLimited when throttled.
type SourceClient interface {
	// --- Repository listing / metadata ---

	// GetRepositoryMetadata returns stars, forks, flags and push time for one repository.
	GetRepositoryMetadata(ctx context.Context, owner, repo string) (*schema.RepositoryMetadata, error)

	// ListUserRepositories returns the metadata of every repository owned by owner.
	ListUserRepositories(ctx context.Context, owner string) ([]schema.RepositoryMetadata, error)

	// --- Tree / content ---

	// GetTree returns the recursive file tree at the default branch.
	GetTree(ctx context.Context, owner, repo string) ([]schema.TreeEntry, error)

	// GetFileContent returns the raw bytes of a file.
	GetFileContent(ctx context.Context, owner, repo, path string) ([]byte, error)

	// GetReadme returns the raw bytes of the preferred readme.
	GetReadme(ctx context.Context, owner, repo string) ([]byte, error)

	// GetLanguageBytes returns bytes of code per language.
	GetLanguageBytes(ctx context.Context, owner, repo string) (map[string]int64, error)

	// --- Activity ---

	// CountReleases returns the number of published releases.
	CountReleases(ctx context.Context, owner, repo string) (int, error)

	// ListRecentCommits returns up to limit commits on the default branch, newest first.
	ListRecentCommits(ctx context.Context, owner, repo string, limit int) ([]schema.CommitInfo, error)

	// CountOpenPulls returns the number of open pull requests.
	CountOpenPulls(ctx context.Context, owner, repo string) (int, error)
}

// SnapshotStore defines the interface for durable snapshot storage.
// Save must replace payload and fingerprints together or not at all.
type SnapshotStore interface {
	// Get returns the snapshot for key, or nil when none is stored.
	Get(key schema.RepositoryKey) (*schema.AnalysisSnapshot, error)

	// Save atomically replaces the payload and fingerprints for key.
	Save(key schema.RepositoryKey, payload json.RawMessage, fingerprints schema.FingerprintMap, createdAt time.Time) error

	// TouchLastChecked updates only the last-checked timestamp.
	TouchLastChecked(key schema.RepositoryKey, checkedAt time.Time) error

	// Delete removes the snapshot and its fingerprints.
	Delete(key schema.RepositoryKey) error

	// Cleanup deletes snapshots created before cutoff and returns how many were removed.
	Cleanup(cutoff time.Time) (int64, error)

	// ListSnapshots returns all stored snapshots with their fingerprints.
	ListSnapshots() ([]schema.AnalysisSnapshot, error)

	// GetStatus returns status information about the store.
	GetStatus() (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// Summarizer turns a ranked selection into narrative prose.
type Summarizer interface {
	Summarize(ctx context.Context, owner string, selected []schema.RankedRepository) (string, error)
}
