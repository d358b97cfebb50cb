// Package worker evaluates candidate consultants in a bounded parallel pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/staffmatch/internal/domain/eligibility"
	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
	"github.com/okian/staffmatch/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
)

// Evaluator checks the hard constraints for a candidate.
type Evaluator interface {
	Evaluate(c model.Consultant, r model.Requirement) (eligibility.Result, error)
}

// Scorer computes the factor breakdown for a candidate.
type Scorer interface {
	Score(c model.Consultant, r model.Requirement) (types.ScoreBreakdown, error)
}

// Aggregator combines a breakdown and an eligibility result into a ranked entry.
type Aggregator interface {
	Aggregate(c model.Consultant, r model.Requirement, b types.ScoreBreakdown, e eligibility.Result) types.ConsultantScoreResult
}

// Exclusion is a candidate dropped from the ranking. Err wraps types.ErrComputation.
type Exclusion struct {
	ConsultantID string
	Err          error
}

// Outcome is the result of evaluating a candidate pool. Results keep the
// input order; callers sort them.
type Outcome struct {
	Results  []types.ConsultantScoreResult
	Excluded []Exclusion
}

// Pool evaluates candidates with at most size evaluations in flight.
// Evaluations share nothing mutable, so a Pool is safe for concurrent use.
type Pool struct {
	size       int
	evaluator  Evaluator
	scorer     Scorer
	aggregator Aggregator
	name       string
	logger     logger.Logger
}

// NewPool creates a new evaluation pool.
func NewPool(workerCount int, evaluator Evaluator, scorer Scorer, aggregator Aggregator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		size:       workerCount,
		evaluator:  evaluator,
		scorer:     scorer,
		aggregator: aggregator,
		name:       "worker-pool",
		logger:     logger.Get().Named("worker-pool"),
	}

	for _, opt := range opts {
		opt(p)
	}

	metrics.UpdateWorkerCount(workerCount)

	return p
}

// Size returns the maximum number of concurrent evaluations.
func (p *Pool) Size() int { return p.size }

type slot struct {
	result types.ConsultantScoreResult
	err    error
}

// Evaluate scores every candidate against the requirement. A candidate whose
// data cannot be processed is reported in Outcome.Excluded and never aborts
// the others. The only error returned is ctx cancellation.
func (p *Pool) Evaluate(ctx context.Context, r model.Requirement, candidates []model.Consultant) (Outcome, error) {
	slots := make([]slot, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics.AddPoolInFlight(1)
			start := time.Now()
			res, err := p.evaluateOne(candidates[i], r)
			metrics.RecordCandidateLatency(float64(time.Since(start).Microseconds()))
			metrics.AddPoolInFlight(-1)
			slots[i] = slot{result: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, fmt.Errorf("%s: evaluation interrupted: %w", p.name, err)
	}

	out := Outcome{Results: make([]types.ConsultantScoreResult, 0, len(candidates))}
	for i, s := range slots {
		if s.err != nil {
			out.Excluded = append(out.Excluded, Exclusion{ConsultantID: candidates[i].ID, Err: s.err})
			p.logger.Warn(ctx, "candidate excluded from ranking",
				logger.String("requirement_id", r.ID),
				logger.String("consultant_id", candidates[i].ID),
				logger.Error(s.err),
			)
			metrics.RecordErrorByComponent("worker", "computation_error")
			continue
		}
		out.Results = append(out.Results, s.result)
	}
	return out, nil
}

// evaluateOne runs validation, constraints, scoring and aggregation for one
// candidate. Any failure, including a panic, becomes an ErrComputation.
func (p *Pool) evaluateOne(c model.Consultant, r model.Requirement) (res types.ConsultantScoreResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: consultant %q: panic: %v", types.ErrComputation, c.ID, rec)
		}
	}()

	if err := c.Validate(); err != nil {
		return res, fmt.Errorf("%w: %w", types.ErrComputation, err)
	}
	e, err := p.evaluator.Evaluate(c, r)
	if err != nil {
		return res, fmt.Errorf("%w: consultant %q: eligibility: %w", types.ErrComputation, c.ID, err)
	}
	b, err := p.scorer.Score(c, r)
	if err != nil {
		return res, fmt.Errorf("%w: consultant %q: scoring: %w", types.ErrComputation, c.ID, err)
	}
	return p.aggregator.Aggregate(c, r, b, e), nil
}
