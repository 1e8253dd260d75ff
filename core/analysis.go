package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/core/change"
	"github.com/huangsam/reposcout/core/fingerprint"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/logger"
	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
)

// target is the current remote state of a key.
type target struct {
	meta *schema.RepositoryMetadata
	fp   *fingerprint.Result
}

// GetOrAnalyze returns the stored analysis for key when it is fresh or when the repository
// changed too little to matter. Otherwise it re-analyzes and replaces the snapshot.
func (s *Service) GetOrAnalyze(ctx context.Context, key schema.RepositoryKey, force bool) (*schema.AnalysisSnapshot, error) {
	if force {
		return s.ForceReanalysis(ctx, key)
	}
	log := logger.WithRepo(s.logger, key)
	now := s.clock()

	snap, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", key, err)
	}
	if snap != nil && key.IsProfile() && !s.profileReusable(snap, log) {
		snap = nil
	}
	if IsFresh(snap, now, s.cfg.FreshnessWindow) {
		log.Debug("Serving fresh snapshot", zap.Duration("age", snap.Age(now)))
		return s.serve(ctx, key, snap, now, log), nil
	}

	t, err := s.fetchTarget(ctx, key)
	if err != nil {
		return nil, err
	}

	if snap != nil {
		t.fp.CarryForward(snap.Fingerprints)
		report := change.Compare(key, snap.Fingerprints, t.fp.Fingerprints)
		if Decide(snap, &report.Impact) == schema.ServeCached {
			log.Info("Serving cached snapshot",
				zap.Int("changed", report.Changes.Len()),
				zap.String("impact", string(report.Impact.Level)))
			return s.serve(ctx, key, snap, now, log), nil
		}
		log.Info("Re-analyzing changed repository",
			zap.Int("changed", report.Changes.Len()),
			zap.String("impact", string(report.Impact.Level)),
			zap.Strings("critical", report.Impact.CriticalFiles))
	}

	return s.analyzeAndSave(ctx, key, t)
}

// ForceReanalysis drops the stored snapshot and runs a full analysis.
func (s *Service) ForceReanalysis(ctx context.Context, key schema.RepositoryKey) (*schema.AnalysisSnapshot, error) {
	logger.WithRepo(s.logger, key).Info("Forcing re-analysis")
	if err := s.store.Delete(key); err != nil {
		return nil, fmt.Errorf("%w: failed to delete snapshot for %s: %v", contract.ErrStoreWrite, key, err)
	}
	t, err := s.fetchTarget(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.analyzeAndSave(ctx, key, t)
}

// GetFileChanges diffs the stored fingerprints of key against the current remote state.
// Nothing is saved.
func (s *Service) GetFileChanges(ctx context.Context, key schema.RepositoryKey) (*schema.ChangeReport, error) {
	snap, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", key, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w for %s", contract.ErrNoStoredSnapshot, key)
	}
	fp, err := s.builder.Build(ctx, key)
	if err != nil {
		return nil, sourceError(key, err)
	}
	fp.CarryForward(snap.Fingerprints)
	report := change.Compare(key, snap.Fingerprints, fp.Fingerprints)
	return &report, nil
}

// CleanupOldAnalyses removes snapshots created more than olderThanDays ago.
// A non-positive value uses the configured retention.
func (s *Service) CleanupOldAnalyses(olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = s.cfg.RetentionDays
	}
	cutoff := s.clock().AddDate(0, 0, -olderThanDays)
	removed, err := s.store.Cleanup(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up snapshots: %w", err)
	}
	s.logger.Info("Cleaned up old snapshots", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	return removed, nil
}

// fetchTarget reads the metadata and fingerprints of key. For a repository, metadata comes
// first so a missing target ends the run before any fan-out.
func (s *Service) fetchTarget(ctx context.Context, key schema.RepositoryKey) (*target, error) {
	t := &target{}
	if !key.IsProfile() {
		meta, err := s.client.GetRepositoryMetadata(ctx, key.Owner, key.Repo)
		if err != nil {
			return nil, sourceError(key, err)
		}
		t.meta = meta
	}

	fp, err := s.builder.Build(ctx, key)
	switch {
	case err == nil:
	case !key.IsProfile() && contract.IsNotFound(err):
		// Empty repository: the metadata exists but there is no tree yet
		fp = &fingerprint.Result{
			Fingerprints: schema.FingerprintMap{},
			Failures: []schema.FetchFailure{{
				Field: schema.FieldTree,
				Path:  t.meta.Name,
				Error: err.Error(),
			}},
		}
	default:
		return nil, sourceError(key, err)
	}
	t.fp = fp
	return t, nil
}

// analyzeAndSave builds the payload for key and persists it with the fingerprints it was built from.
func (s *Service) analyzeAndSave(ctx context.Context, key schema.RepositoryKey, t *target) (*schema.AnalysisSnapshot, error) {
	now := s.clock()
	var payload any
	if key.IsProfile() {
		profile, err := s.analyzeProfile(ctx, key, t.fp.Repositories, now)
		if err != nil {
			return nil, err
		}
		payload = profile
	} else {
		analysis, err := s.analyzeRepository(ctx, key, t, now)
		if err != nil {
			return nil, err
		}
		payload = analysis
	}
	return s.persist(ctx, key, payload, t.fp.Fingerprints, now)
}

// analyzeRepository collects the facts of one repository and qualifies it.
func (s *Service) analyzeRepository(ctx context.Context, key schema.RepositoryKey, t *target, now time.Time) (*schema.RepositoryAnalysis, error) {
	facts := NewFactsBuilder(s.client, key.Owner, *t.meta, s.cfg.CommitLimit, s.logger).
		WithTree(t.fp.Tree).
		WithFailures(t.fp.Failures).
		FetchAll(ctx).
		DeriveSignals().
		AnalyzeReadme().
		Build()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if facts.EssentialFetchFailed() && anyRetryable(facts.Failures) {
		return nil, fmt.Errorf("%w: essential fetches failed for %s", contract.ErrAnalysisUnavailable, key)
	}
	if schema.DegradedByRetryable(facts.Failures) {
		return nil, fmt.Errorf("%w: transient fetch failures degraded %s", contract.ErrAnalysisUnavailable, key)
	}

	verdict := s.qualifier.Qualify(facts, now)
	analysis := &schema.RepositoryAnalysis{Facts: *facts, Verdict: verdict, AnalyzedAt: now}
	if verdict.Qualified {
		analysis.Badges = algo.Badges(facts.Metadata, facts.Signals, now)
	}
	logger.WithRepo(s.logger, key).Info("Analyzed repository",
		zap.Bool("qualified", verdict.Qualified),
		zap.Int("failures", len(facts.Failures)))
	return analysis, nil
}

// analyzeProfile ranks every repository of the owner and attaches a summary when a
// summarizer is configured. A failed summary is logged and left out. A ranking that a
// transient failure degraded is not returned, since the profile fingerprint would keep
// serving it until the affected repository is pushed again.
func (s *Service) analyzeProfile(ctx context.Context, key schema.RepositoryKey, repos []schema.RepositoryMetadata, now time.Time) (*schema.ProfileAnalysis, error) {
	sel, err := s.QualifyAndRank(ctx, key.Owner, repos, s.cfg.ResultLimit)
	if err != nil {
		return nil, err
	}
	if schema.DegradedByRetryable(sel.Failures) {
		return nil, fmt.Errorf("%w: transient fetch failures degraded the ranking of %s", contract.ErrAnalysisUnavailable, key.Owner)
	}
	return &schema.ProfileAnalysis{
		Owner:      key.Owner,
		MinScore:   s.cfg.MinScore,
		Selection:  *sel,
		Summary:    s.Summarize(ctx, key.Owner, sel),
		AnalyzedAt: now,
	}, nil
}

// Summarize returns a narrative summary of the selected repositories, or "" when no
// summarizer is configured, nothing was selected, or the summarizer failed.
func (s *Service) Summarize(ctx context.Context, owner string, sel *schema.SelectionResult) string {
	if s.summarizer == nil || sel == nil || len(sel.Selected) == 0 {
		return ""
	}
	summary, err := s.summarizer.Summarize(ctx, owner, sel.Selected)
	if err != nil {
		logger.WithRepo(s.logger, schema.NewRepositoryKey(owner, "")).Warn("Summary unavailable", zap.Error(err))
		return ""
	}
	return summary
}

// persist encodes payload and saves it. A canceled context never reaches the store.
func (s *Service) persist(ctx context.Context, key schema.RepositoryKey, payload any, fps schema.FingerprintMap, now time.Time) (*schema.AnalysisSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis for %s: %w", key, err)
	}
	if fps == nil {
		fps = schema.FingerprintMap{}
	}
	if err := s.store.Save(key, raw, fps, now); err != nil {
		if !errors.Is(err, contract.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", contract.ErrStoreWrite, err)
		}
		return nil, err
	}
	return &schema.AnalysisSnapshot{
		Key:           key,
		Payload:       raw,
		Fingerprints:  fps,
		CreatedAt:     now,
		LastCheckedAt: now,
	}, nil
}

// serve touches a stored snapshot and returns it. A profile selection is re-cut to the
// configured limit; the stored payload is left as it was saved.
func (s *Service) serve(ctx context.Context, key schema.RepositoryKey, snap *schema.AnalysisSnapshot, now time.Time, log *zap.Logger) *schema.AnalysisSnapshot {
	s.touch(key, snap, now, log)
	if !key.IsProfile() {
		return snap
	}

	var profile schema.ProfileAnalysis
	if err := json.Unmarshal(snap.Payload, &profile); err != nil {
		log.Warn("Stored profile is unreadable, serving as stored", zap.Error(err))
		return snap
	}
	sel, changed := algo.Recut(profile.Selection, s.resultLimit(0))
	if !changed {
		return snap
	}
	profile.Selection = sel
	profile.Summary = s.Summarize(ctx, key.Owner, &sel)
	raw, err := json.Marshal(profile)
	if err != nil {
		log.Warn("Failed to re-encode profile, serving as stored", zap.Error(err))
		return snap
	}
	log.Debug("Re-cut stored profile", zap.Int("selected", len(sel.Selected)))
	out := *snap
	out.Payload = raw
	return &out
}

// profileReusable reports whether a stored profile was ranked with the configured score
// threshold. Excluded repositories keep no score breakdown, so they cannot be re-ranked.
func (s *Service) profileReusable(snap *schema.AnalysisSnapshot, log *zap.Logger) bool {
	var profile schema.ProfileAnalysis
	if err := json.Unmarshal(snap.Payload, &profile); err != nil {
		log.Warn("Stored profile is unreadable, re-analyzing", zap.Error(err))
		return false
	}
	if profile.MinScore != s.cfg.MinScore {
		log.Info("Stored profile used another score threshold, re-analyzing",
			zap.Float64("stored", profile.MinScore),
			zap.Float64("configured", s.cfg.MinScore))
		return false
	}
	return true
}

// touch records that the snapshot was checked. A failure only costs the timestamp.
func (s *Service) touch(key schema.RepositoryKey, snap *schema.AnalysisSnapshot, now time.Time, log *zap.Logger) {
	if err := s.store.TouchLastChecked(key, now); err != nil {
		log.Warn("Failed to update last-checked time", zap.Error(err))
	}
	snap.LastCheckedAt = now
}

// sourceError maps a source failure to the pipeline's terminal errors.
func sourceError(key schema.RepositoryKey, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case contract.IsNotFound(err):
		return fmt.Errorf("%w: %s", contract.ErrRepositoryNotFound, key)
	case contract.IsRetryable(err) || key.IsProfile():
		return fmt.Errorf("%w: %w", contract.ErrAnalysisUnavailable, err)
	default:
		return fmt.Errorf("failed to analyze %s: %w", key, err)
	}
}

func anyRetryable(failures []schema.FetchFailure) bool {
	for _, f := range failures {
		if f.Retryable {
			return true
		}
	}
	return false
}
