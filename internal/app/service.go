// Package service provides the recommendation service behind the HTTP API:
// cached reads, single-flight recomputation and candidate evaluation.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	workerpool "github.com/okian/staffmatch/internal/adapters/mq/worker"
	"github.com/okian/staffmatch/internal/adapters/repository"
	"github.com/okian/staffmatch/internal/adapters/source"
	"github.com/okian/staffmatch/internal/domain/eligibility"
	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/ranking"
	"github.com/okian/staffmatch/internal/domain/scoring"
	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
	"github.com/okian/staffmatch/pkg/metrics"
)

var (
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrNoSource is returned by Start when no data source is configured.
	ErrNoSource = errors.New("no data source configured")
)

// Service implements the recommendation use cases.
type Service struct {
	mu sync.RWMutex

	// Core components
	source     source.DataSource
	cache      repository.Cache
	scorers    *scoring.Set
	evaluator  *eligibility.Evaluator
	aggregator *ranking.Aggregator
	pool       *workerpool.Pool
	flight     singleflight.Group

	// Configuration
	workerCount int
	shardCount  int
	emrFamilies map[string]string
	now         func() time.Time

	// State
	started      bool
	computations atomic.Int64
	cacheHits    atomic.Int64
	excluded     atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the collaborator data source.
func WithSource(src source.DataSource) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithCache sets the recommendation cache. Without it an in-memory cache is
// created on Start.
func WithCache(c repository.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWorkerCount sets the evaluation pool size.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithShardCount sets the shard count of the default in-memory cache.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithEMRFamilies adds EMR system aliases used by the EMR factor.
func WithEMRFamilies(families map[string]string) Option {
	return func(s *Service) {
		s.emrFamilies = families
	}
}

// WithClock overrides the clock used for calculatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		shardCount:  32,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the evaluation pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.source == nil {
		return ErrNoSource
	}

	s.logger.Info(ctx, "starting recommendation service...")

	if s.cache == nil {
		s.cache = repository.NewMemoryStore(ctx, repository.WithShardCount(s.shardCount))
		s.logger.Info(ctx, "using in-memory cache", logger.Int("shards", s.shardCount))
	}

	s.scorers = scoring.New(scoring.WithEMRFamilies(s.emrFamilies))
	s.evaluator = eligibility.New()
	s.aggregator = ranking.NewAggregator(s.scorers)
	s.pool = workerpool.NewPool(s.workerCount, s.evaluator, s.scorers, s.aggregator,
		workerpool.WithLogger(s.logger.Named("pool")),
	)

	s.started = true
	s.logger.Info(ctx, "recommendation service started", logger.Int("workers", s.workerCount))
	return nil
}

// Stop releases the cache.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping recommendation service...")
	if err := s.cache.Close(); err != nil {
		s.logger.Warn(context.Background(), "cache close failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "recommendation service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetOrCompute returns the ranking for requirementID. Unless forceRecalculate
// is set, a cached envelope is returned with Cached=true. Otherwise the
// ranking is computed, written to the cache and returned with Cached=false.
// Concurrent computations for the same requirement are collapsed into one,
// so a forced call may share a computation that was already in flight.
func (s *Service) GetOrCompute(ctx context.Context, requirementID string, forceRecalculate bool) (types.RecommendationEnvelope, error) {
	if !s.running() {
		return types.RecommendationEnvelope{}, ErrNotStarted
	}

	if !forceRecalculate {
		entry, found, err := s.cacheGet(ctx, requirementID)
		switch {
		case errors.Is(err, ErrNotStarted):
			return types.RecommendationEnvelope{}, err
		case err != nil:
			metrics.RecordCacheReadFailure()
			s.logger.Warn(ctx, "cache read failed, recomputing",
				logger.String("requirement_id", requirementID), logger.Error(err))
		case found:
			metrics.RecordCacheHit()
			metrics.RecordRecommendationRequest(metrics.OutcomeCacheHit)
			s.cacheHits.Add(1)
			env := entry.Envelope
			env.Cached = true
			return env, nil
		default:
			metrics.RecordCacheMiss()
		}
	}

	// The computation must outlive any single caller: others may be waiting on it.
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(requirementID, func() (any, error) {
		return s.compute(detached, requirementID)
	})

	select {
	case <-ctx.Done():
		metrics.RecordRecommendationRequest(metrics.OutcomeError)
		return types.RecommendationEnvelope{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordComputeShared()
		}
		if res.Err != nil {
			metrics.RecordRecommendationRequest(metrics.OutcomeError)
			return types.RecommendationEnvelope{}, res.Err
		}
		metrics.RecordRecommendationRequest(metrics.OutcomeComputed)
		env, _ := res.Val.(types.RecommendationEnvelope)
		return env, nil
	}
}

// compute runs one full ranking and writes it through to the cache.
func (s *Service) compute(ctx context.Context, requirementID string) (types.RecommendationEnvelope, error) {
	start := time.Now()
	defer func() {
		metrics.RecordComputeLatency(float64(time.Since(start).Milliseconds()))
	}()
	s.computations.Add(1)

	req, candidates, err := s.load(ctx, requirementID)
	if err != nil {
		s.logger.Warn(ctx, "failed to load ranking inputs",
			logger.String("requirement_id", requirementID), logger.Error(err))
		return types.RecommendationEnvelope{}, err
	}

	out, err := s.pool.Evaluate(ctx, req, candidates)
	if err != nil {
		return types.RecommendationEnvelope{}, fmt.Errorf("%w: %w", types.ErrComputation, err)
	}

	ranking.Sort(out.Results)
	env := ranking.Envelope(requirementID, out.Results, s.now())

	metrics.RecordCandidates(env.TotalEvaluated, env.TotalEligible, len(out.Excluded))
	s.excluded.Add(int64(len(out.Excluded)))
	s.logger.Info(ctx, "ranking computed",
		logger.String("requirement_id", requirementID),
		logger.Int("evaluated", env.TotalEvaluated),
		logger.Int("eligible", env.TotalEligible),
		logger.Int("excluded", len(out.Excluded)),
		logger.Duration("took", time.Since(start)),
	)

	if err := s.cachePut(ctx, requirementID, env); err != nil {
		metrics.RecordCacheWriteFailure()
		metrics.RecordErrorByComponent("cache", "write_failed")
		s.logger.Warn(ctx, "cache write failed; freshness will be lost on next read",
			logger.String("requirement_id", requirementID), logger.Error(err))
	}
	return env, nil
}

// cacheGet reads under the read lock so Stop cannot close the cache mid-read.
func (s *Service) cacheGet(ctx context.Context, requirementID string) (types.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.CacheEntry{}, false, ErrNotStarted
	}
	return s.cache.Get(ctx, requirementID)
}

// cachePut writes under the read lock. After Stop the write is dropped.
func (s *Service) cachePut(ctx context.Context, requirementID string, env types.RecommendationEnvelope) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return s.cache.Put(ctx, requirementID, env)
}

// load fetches the requirement and the candidate pool concurrently.
func (s *Service) load(ctx context.Context, requirementID string) (model.Requirement, []model.Consultant, error) {
	var (
		req  model.Requirement
		pool []model.Consultant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.source.Requirement(gctx, requirementID)
		req = r
		return err
	})
	g.Go(func() error {
		cs, err := s.source.Consultants(gctx)
		pool = cs
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrUpstreamUnavailable) {
			return model.Requirement{}, nil, err
		}
		return model.Requirement{}, nil, fmt.Errorf("%w: %w", types.ErrUpstreamUnavailable, err)
	}

	if req.ID == "" {
		req.ID = requirementID
	}
	if err := req.Validate(); err != nil {
		return model.Requirement{}, nil, fmt.Errorf("%w: %w", types.ErrComputation, err)
	}
	return req, dedupe(pool), nil
}

// dedupe drops repeated consultant ids, keeping the first occurrence.
func dedupe(pool []model.Consultant) []model.Consultant {
	seen := make(map[string]struct{}, len(pool))
	out := pool[:0:0]
	for _, c := range pool {
		if _, dup := seen[c.ID]; dup && c.ID != "" {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"workerCount":        s.workerCount,
		"computations":       s.computations.Load(),
		"cacheHits":          s.cacheHits.Load(),
		"excludedCandidates": s.excluded.Load(),
	}

	if s.started {
		n, err := s.cache.Count(context.Background())
		if err == nil {
			stats["cacheEntries"] = n
			metrics.UpdateCacheEntries(n)
		}
	}

	return stats
}
