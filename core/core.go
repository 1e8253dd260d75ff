// Package core runs the analysis pipeline: freshness, change detection, re-analysis
// gating, fact collection, qualification and ranking over a snapshot store.
package core

import (
	"time"

	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/core/fingerprint"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/logger"
	"go.uber.org/zap"
)

// Clock returns the current time.
type Clock func() time.Time

// Service is the analysis pipeline over an injected store and source client.
// It holds no global state; Close releases the store.
type Service struct {
	cfg        *contract.Config
	store      contract.SnapshotStore
	client     contract.SourceClient
	builder    *fingerprint.Builder
	qualifier  *algo.Qualifier
	summarizer contract.Summarizer
	logger     *zap.Logger
	now        Clock
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.now = clock }
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.logger = logger.OrNop(log) }
}

// WithSummarizer enables narrative summaries for profile analyses.
func WithSummarizer(sum contract.Summarizer) Option {
	return func(s *Service) { s.summarizer = sum }
}

// NewService wires the pipeline from the validated configuration.
func NewService(cfg *contract.Config, store contract.SnapshotStore, client contract.SourceClient, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = fingerprint.NewBuilder(client, cfg.MaxFileReads, s.logger)
	s.qualifier = algo.NewQualifier(algo.Policy{StaleDays: cfg.StaleDays, ForkStaleDays: cfg.ForkStaleDays})
	return s
}

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// clock returns the current time in UTC.
func (s *Service) clock() time.Time {
	return s.now().UTC()
}
