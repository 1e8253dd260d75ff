package core

import (
	"context"
	"fmt"

	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/logger"
	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QualifyAndRank collects facts for every repository with at most cfg.Workers in flight,
// qualifies and scores them, and selects the top maxResults. A non-positive maxResults
// uses the configured limit. Per-repository fetch failures are reported, not fatal,
// unless every repository lost its essential fetches.
func (s *Service) QualifyAndRank(ctx context.Context, owner string, repos []schema.RepositoryMetadata, maxResults int) (*schema.SelectionResult, error) {
	limit := s.resultLimit(maxResults)
	now := s.clock()

	if len(repos) == 0 {
		sel := algo.Select(nil, s.cfg.MinScore, limit, now)
		return &sel, nil
	}

	log := s.logger.With(zap.String(logger.FieldOwner, owner))
	candidates := make([]algo.Candidate, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Workers, 1))
	for i, meta := range repos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			facts := collectFacts(gctx, s.client, owner, meta, s.cfg.CommitLimit, log)
			candidates[i] = algo.Candidate{Facts: facts, Verdict: s.qualifier.Qualify(facts, now)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unavailable := true
	var failures []schema.FetchFailure
	for _, c := range candidates {
		if !c.Facts.EssentialFetchFailed() {
			unavailable = false
		}
		failures = append(failures, c.Facts.Failures...)
	}
	if unavailable {
		return nil, fmt.Errorf("%w: no repository of %s could be fetched", contract.ErrAnalysisUnavailable, owner)
	}

	sel := algo.Select(candidates, s.cfg.MinScore, limit, now)
	sel.Failures = failures
	log.Info("Ranked repositories",
		zap.Int("candidates", len(repos)),
		zap.Int("selected", len(sel.Selected)),
		zap.Int("excluded", len(sel.Excluded)),
		zap.Int("failures", len(failures)))
	return &sel, nil
}

// resultLimit clamps a requested selection size. A non-positive request uses the configured limit.
func (s *Service) resultLimit(maxResults int) int {
	if maxResults <= 0 {
		maxResults = s.cfg.ResultLimit
	}
	return min(maxResults, contract.MaxResultLimit)
}

// RankOwner lists the repositories of owner and ranks them.
func (s *Service) RankOwner(ctx context.Context, owner string, maxResults int) (*schema.SelectionResult, error) {
	key := schema.NewRepositoryKey(owner, "")
	repos, err := s.client.ListUserRepositories(ctx, key.Owner)
	if err != nil {
		return nil, sourceError(key, err)
	}
	return s.QualifyAndRank(ctx, key.Owner, repos, maxResults)
}
