// Package repository stores the latest recommendation envelope per requirement.
package repository

import (
	"context"

	"github.com/okian/staffmatch/internal/domain/types"
)

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Cache holds the most recent envelope for each requirement. Entries never
// expire; a Put replaces the whole entry atomically.
type Cache interface {
	// Get returns the entry for requirementID. found is false on a miss.
	Get(ctx context.Context, requirementID string) (entry types.CacheEntry, found bool, err error)
	// Put stores env as the current entry for requirementID.
	Put(ctx context.Context, requirementID string, env types.RecommendationEnvelope) error
	// Count returns the number of cached requirements.
	Count(ctx context.Context) (int, error)
	// Close releases background resources.
	Close() error
}

// cloneEnvelope copies the slices of env so stored entries never alias
// caller memory.
func cloneEnvelope(env types.RecommendationEnvelope) types.RecommendationEnvelope {
	out := env
	if env.Recommendations == nil {
		return out
	}
	out.Recommendations = make([]types.ConsultantScoreResult, len(env.Recommendations))
	for i, r := range env.Recommendations {
		if r.HardConstraintsFailed != nil {
			r.HardConstraintsFailed = append(make([]string, 0, len(r.HardConstraintsFailed)), r.HardConstraintsFailed...)
		}
		out.Recommendations[i] = r
	}
	return out
}
