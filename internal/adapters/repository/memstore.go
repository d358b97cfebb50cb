package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/metrics"
)

const (
	defaultShardCount            = 32
	defaultMetricsUpdateInterval = 5 * time.Second
)

type shard struct {
	mu      sync.RWMutex
	entries map[string]types.CacheEntry
}

// MemoryStore is a sharded in-memory Cache. Each requirement id hashes to one
// shard, so operations on ids in different shards never contend.
type MemoryStore struct {
	shards     []*shard
	shardCount int

	metricsUpdateInterval time.Duration
	now                   func() time.Time

	closeOnce sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewMemoryStore creates a sharded in-memory cache and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]types.CacheEntry)}
	}

	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

func (s *MemoryStore) closed() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// Get implements Cache.Get.
func (s *MemoryStore) Get(_ context.Context, requirementID string) (types.CacheEntry, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheOperation(BackendMemory, "get", float64(time.Since(start).Microseconds())/1000)
	}()

	if s.closed() {
		return types.CacheEntry{}, false, ErrClosed
	}

	sh := s.shardFor(requirementID)
	sh.mu.RLock()
	e, ok := sh.entries[requirementID]
	sh.mu.RUnlock()
	if !ok {
		return types.CacheEntry{}, false, nil
	}
	e.Envelope = cloneEnvelope(e.Envelope)
	return e, true, nil
}

// Put implements Cache.Put.
func (s *MemoryStore) Put(_ context.Context, requirementID string, env types.RecommendationEnvelope) error {
	start := time.Now()
	defer func() {
		metrics.RecordCacheOperation(BackendMemory, "put", float64(time.Since(start).Microseconds())/1000)
	}()

	if s.closed() {
		return ErrClosed
	}
	if requirementID == "" {
		return ErrEmptyKey
	}
	if env.RequirementID != requirementID {
		return fmt.Errorf("%w: %q != %q", ErrKeyMismatch, env.RequirementID, requirementID)
	}

	entry := types.CacheEntry{
		RequirementID: requirementID,
		Envelope:      cloneEnvelope(env),
		ComputedAt:    s.now().UTC(),
	}

	sh := s.shardFor(requirementID)
	sh.mu.Lock()
	sh.entries[requirementID] = entry
	sh.mu.Unlock()
	return nil
}

// Count implements Cache.Count.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n, nil
}

// Close stops the metrics updater. Further reads and writes fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateCacheEntries(n)
			}
		}
	}()
}
