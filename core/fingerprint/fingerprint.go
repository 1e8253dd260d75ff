// Package fingerprint builds per-file content fingerprints from a remote file tree.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/logger"
	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxFileSize is the largest blob that is fingerprinted.
const MaxFileSize = 1 << 20

// Hash prefixes.
const (
	GitPrefix = "git:"
	XXPrefix  = "xxh64:"
)

// binaryExtensions are skipped regardless of size.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {}, ".tiff": {},
	".psd": {}, ".mp3": {}, ".mp4": {}, ".mov": {}, ".avi": {}, ".wav": {}, ".flac": {}, ".ogg": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".7z": {}, ".rar": {},
	".jar": {}, ".war": {}, ".class": {}, ".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {},
	".o": {}, ".bin": {}, ".dat": {}, ".pdf": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {},
	".eot": {}, ".pyc": {}, ".wasm": {}, ".sqlite": {}, ".db": {},
}

// ShouldFingerprint reports whether a tree entry is tracked.
// Oversized blobs and known binary formats are excluded.
func ShouldFingerprint(entry schema.TreeEntry) bool {
	if !entry.IsBlob() || entry.Size > MaxFileSize {
		return false
	}
	_, binary := binaryExtensions[strings.ToLower(path.Ext(entry.Path))]
	return !binary
}

// HashContent returns the xxHash64 fingerprint of data.
func HashContent(data []byte) string {
	return fmt.Sprintf("%s%016x", XXPrefix, xxhash.Sum64(data))
}

// Result is the outcome of a fingerprint build.
type Result struct {
	Fingerprints schema.FingerprintMap
	Tree         []schema.TreeEntry
	Repositories []schema.RepositoryMetadata
	Failures     []schema.FetchFailure
}

// CarryForward keeps the previous fingerprint of every file whose content could not be read,
// so a transient miss is not reported as a removal. It returns the number of paths kept.
func (r *Result) CarryForward(previous schema.FingerprintMap) int {
	kept := 0
	for _, f := range r.Failures {
		if f.Field != schema.FieldContent {
			continue
		}
		if _, ok := r.Fingerprints[f.Path]; ok {
			continue
		}
		if prev, ok := previous[f.Path]; ok {
			r.Fingerprints.Add(prev)
			kept++
		}
	}
	return kept
}

// Builder builds fingerprint maps through a source client.
type Builder struct {
	client       contract.SourceClient
	maxFileReads int
	logger       *zap.Logger
}

// NewBuilder returns a builder whose content fallback runs at most maxFileReads fetches at once.
func NewBuilder(client contract.SourceClient, maxFileReads int, log *zap.Logger) *Builder {
	if maxFileReads <= 0 {
		maxFileReads = contract.DefaultMaxFileReads
	}
	return &Builder{client: client, maxFileReads: maxFileReads, logger: logger.OrNop(log)}
}

// Build fingerprints every tracked blob of the repository, or every repository of the
// owner for a profile key. A missing tree fails the build. Rate limiting and cancellation
// abort it, since an incomplete map would read as spurious removals.
func (b *Builder) Build(ctx context.Context, key schema.RepositoryKey) (*Result, error) {
	if key.IsProfile() {
		repos, err := b.client.ListUserRepositories(ctx, key.Owner)
		if err != nil {
			return nil, contract.NewFetchError("list repositories", key.Owner, err)
		}
		return &Result{Fingerprints: FromRepositories(repos), Repositories: repos}, nil
	}

	tree, err := b.client.GetTree(ctx, key.Owner, key.Repo)
	if err != nil {
		return nil, contract.NewFetchError("get tree", key.String(), err)
	}
	fps, failures, err := b.FromTree(ctx, key, tree)
	if err != nil {
		return nil, err
	}
	return &Result{Fingerprints: fps, Tree: tree, Failures: failures}, nil
}

// FromTree fingerprints the tracked blobs of a tree that was already listed.
// Blobs with a git SHA use it directly; the rest are fetched and hashed.
func (b *Builder) FromTree(ctx context.Context, key schema.RepositoryKey, tree []schema.TreeEntry) (schema.FingerprintMap, []schema.FetchFailure, error) {
	log := logger.WithRepo(b.logger, key)
	fps := schema.FingerprintMap{}
	var pending []schema.TreeEntry

	for _, entry := range tree {
		if !ShouldFingerprint(entry) {
			continue
		}
		if entry.SHA != "" {
			fps.Add(schema.FileFingerprint{Path: entry.Path, Hash: GitPrefix + entry.SHA, Size: entry.Size})
			continue
		}
		pending = append(pending, entry)
	}

	if len(pending) == 0 {
		return fps, nil, nil
	}
	log.Debug("fetching content for unhashed blobs", zap.Int("count", len(pending)))

	var (
		mu       sync.Mutex
		failures []schema.FetchFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxFileReads)

	for _, entry := range pending {
		g.Go(func() error {
			data, err := b.client.GetFileContent(gctx, key.Owner, key.Repo, entry.Path)
			if err != nil {
				if abortsBuild(err) || ctx.Err() != nil {
					return contract.NewFetchError("get content", entry.Path, err)
				}
				if contract.IsNotFound(err) {
					log.Debug("file vanished during fingerprinting", zap.String("path", entry.Path))
					return nil
				}
				fe := contract.NewFetchError("get content", entry.Path, err)
				mu.Lock()
				failures = append(failures, schema.FetchFailure{
					Field:     schema.FieldContent,
					Path:      entry.Path,
					Error:     fe.Error(),
					Retryable: fe.Retryable(),
				})
				mu.Unlock()
				return nil
			}

			fp := schema.FileFingerprint{Path: entry.Path, Hash: HashContent(data), Size: int64(len(data))}
			mu.Lock()
			fps.Add(fp)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	if len(failures) > 0 {
		log.Warn("some files could not be fingerprinted", zap.Int("failures", len(failures)))
	}
	return fps, failures, nil
}

// abortsBuild reports whether a per-file error must stop the whole build.
func abortsBuild(err error) bool {
	return errors.Is(err, contract.ErrRateLimited) ||
		errors.Is(err, context.Canceled)
}

// FromRepositories builds a profile fingerprint map with one entry per repository.
// The hash covers the fields that change when a repository is pushed, archived or rebased.
func FromRepositories(repos []schema.RepositoryMetadata) schema.FingerprintMap {
	fps := make(schema.FingerprintMap, len(repos))
	for _, r := range repos {
		name := strings.ToLower(r.Name)
		raw := fmt.Sprintf("%d|%t|%s", r.PushedAt.UTC().Unix(), r.Archived, r.DefaultBranch)
		fps.Add(schema.FileFingerprint{Path: name, Hash: HashContent([]byte(raw)), Size: r.SizeKB})
	}
	return fps
}
