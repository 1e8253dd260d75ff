package core

import (
	"context"
	"sync"

	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/logger"
	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FactsBuilder collects the facts of one repository for qualification.
type FactsBuilder struct {
	client      contract.SourceClient
	commitLimit int
	logger      *zap.Logger
	facts       *schema.RepositoryFacts

	// Internal data collected during the build process
	tree      []schema.TreeEntry
	treeKnown bool
	readme    []byte
	mu        sync.Mutex
	failures  map[string]schema.FetchFailure
}

// fanOutFields fixes the order in which fetch failures are reported.
var fanOutFields = []string{
	schema.FieldLanguages,
	schema.FieldTree,
	schema.FieldReadme,
	schema.FieldCommits,
	schema.FieldPulls,
	schema.FieldReleases,
}

// NewFactsBuilder is the starting point for building repository facts.
func NewFactsBuilder(client contract.SourceClient, owner string, meta schema.RepositoryMetadata, commitLimit int, log *zap.Logger) *FactsBuilder {
	if commitLimit <= 0 {
		commitLimit = contract.DefaultCommitLimit
	}
	return &FactsBuilder{
		client:      client,
		commitLimit: commitLimit,
		logger:      logger.OrNop(log).With(zap.String(logger.FieldOwner, owner), zap.String(logger.FieldRepo, meta.Name)),
		facts: &schema.RepositoryFacts{
			Owner:     owner,
			Metadata:  meta,
			Languages: map[string]int64{},
		},
		failures: make(map[string]schema.FetchFailure),
	}
}

// WithTree supplies a tree that was already listed, so the fan-out skips it.
func (b *FactsBuilder) WithTree(tree []schema.TreeEntry) *FactsBuilder {
	b.tree = tree
	b.treeKnown = true
	return b
}

// WithFailures carries failures recorded before the fan-out, such as per-file fingerprint misses.
func (b *FactsBuilder) WithFailures(failures []schema.FetchFailure) *FactsBuilder {
	b.facts.Failures = append(b.facts.Failures, failures...)
	return b
}

// record stores a degraded field.
func (b *FactsBuilder) record(field string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[field] = schema.FetchFailure{
		Field:     field,
		Path:      b.facts.Metadata.Name,
		Error:     err.Error(),
		Retryable: contract.IsRetryable(err),
	}
	b.logger.Debug("Fetch degraded", zap.String("field", field), zap.Error(err))
}

// FetchAll fetches languages, tree, readme, commits, pulls and releases in parallel.
// A failed fetch leaves its field at the zero value and is recorded as a FetchFailure.
func (b *FactsBuilder) FetchAll(ctx context.Context) *FactsBuilder {
	owner, repo := b.facts.Owner, b.facts.Metadata.Name
	var g errgroup.Group

	g.Go(func() error {
		langs, err := b.client.GetLanguageBytes(ctx, owner, repo)
		if err != nil {
			b.record(schema.FieldLanguages, err)
			return nil
		}
		if langs != nil {
			b.facts.Languages = langs
		}
		return nil
	})

	if !b.treeKnown {
		g.Go(func() error {
			tree, err := b.client.GetTree(ctx, owner, repo)
			if err != nil {
				b.record(schema.FieldTree, err)
				return nil
			}
			b.tree = tree
			return nil
		})
	}

	g.Go(func() error {
		readme, err := b.client.GetReadme(ctx, owner, repo)
		switch {
		case contract.IsNotFound(err):
			// No readme is a fact, not a failure
		case err != nil:
			b.record(schema.FieldReadme, err)
		default:
			b.readme = readme
		}
		return nil
	})

	g.Go(func() error {
		commits, err := b.client.ListRecentCommits(ctx, owner, repo, b.commitLimit)
		if err != nil {
			b.record(schema.FieldCommits, err)
			return nil
		}
		b.facts.RecentCommits = commits
		return nil
	})

	g.Go(func() error {
		pulls, err := b.client.CountOpenPulls(ctx, owner, repo)
		if err != nil {
			b.record(schema.FieldPulls, err)
			return nil
		}
		b.facts.OpenPulls = pulls
		return nil
	})

	g.Go(func() error {
		releases, err := b.client.CountReleases(ctx, owner, repo)
		if err != nil {
			b.record(schema.FieldReleases, err)
			return nil
		}
		b.facts.Metadata.ReleaseCount = releases
		return nil
	})

	_ = g.Wait()

	for _, field := range fanOutFields {
		if f, ok := b.failures[field]; ok {
			b.facts.Failures = append(b.facts.Failures, f)
		}
	}
	return b
}

// DeriveSignals computes the file-presence signals from the tree.
func (b *FactsBuilder) DeriveSignals() *FactsBuilder {
	b.facts.Signals = algo.DeriveSignals(b.tree)
	return b
}

// AnalyzeReadme measures the readme. A fetched readme counts even when the tree is missing.
func (b *FactsBuilder) AnalyzeReadme() *FactsBuilder {
	stats := algo.AnalyzeReadme(b.readme)
	b.facts.ReadmeLength = stats.Length
	b.facts.ReadmeHasSection = stats.HasSection
	b.facts.ReadmeHasCode = stats.HasCode
	if len(b.readme) > 0 {
		b.facts.Signals.HasReadme = true
	}
	return b
}

// Build finalizes the construction and returns the completed facts.
func (b *FactsBuilder) Build() *schema.RepositoryFacts {
	return b.facts
}

// collectFacts runs the full builder chain.
func collectFacts(ctx context.Context, client contract.SourceClient, owner string, meta schema.RepositoryMetadata, commitLimit int, log *zap.Logger) *schema.RepositoryFacts {
	return NewFactsBuilder(client, owner, meta, commitLimit, log).
		FetchAll(ctx).
		DeriveSignals().
		AnalyzeReadme().
		Build()
}
