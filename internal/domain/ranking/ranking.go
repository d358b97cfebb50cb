// Package ranking turns per-candidate breakdowns into ordered recommendations.
package ranking

import (
	"sort"
	"time"

	"github.com/okian/staffmatch/internal/domain/eligibility"
	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/scoring"
	"github.com/okian/staffmatch/internal/domain/types"
)

type weighted struct {
	factor scoring.Factor
	weight float64
}

// Aggregator combines factor sub-scores with their weights.
type Aggregator struct {
	weights []weighted
}

// NewAggregator creates an Aggregator using the weights of the given set.
func NewAggregator(set *scoring.Set) *Aggregator {
	a := &Aggregator{}
	for _, sc := range set.Scorers() {
		a.weights = append(a.weights, weighted{sc.Factor(), sc.Weight()})
	}
	return a
}

// Total returns the weighted sum of the breakdown, summed in factor order so
// the result is bit-for-bit reproducible.
func (a *Aggregator) Total(b types.ScoreBreakdown) float64 {
	var total float64
	for _, w := range a.weights {
		total += w.weight * scoring.Value(b, w.factor)
	}
	return total
}

// Aggregate assembles the result for one candidate. Ineligible candidates keep
// their computed score; eligibility only affects ordering.
func (a *Aggregator) Aggregate(c model.Consultant, _ model.Requirement, b types.ScoreBreakdown, e eligibility.Result) types.ConsultantScoreResult {
	failed := make([]string, len(e.FailedConstraints))
	copy(failed, e.FailedConstraints)
	return types.ConsultantScoreResult{
		ConsultantID:          c.ID,
		TotalScore:            a.Total(b),
		IsEligible:            e.Eligible,
		HardConstraintsFailed: failed,
		Scores:                b,
	}
}

// Sort orders results eligible first, then by score descending, then by
// consultant id ascending. The order is total, so equal inputs always sort
// identically regardless of evaluation order.
func Sort(results []types.ConsultantScoreResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.IsEligible != b.IsEligible {
			return a.IsEligible
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.ConsultantID < b.ConsultantID
	})
}

// Envelope builds the summary for sorted results.
func Envelope(requirementID string, results []types.ConsultantScoreResult, at time.Time) types.RecommendationEnvelope {
	if results == nil {
		results = []types.ConsultantScoreResult{}
	}
	eligible := 0
	for _, r := range results {
		if r.IsEligible {
			eligible++
		}
	}
	return types.RecommendationEnvelope{
		RequirementID:   requirementID,
		TotalEvaluated:  len(results),
		TotalEligible:   eligible,
		Recommendations: results,
		CalculatedAt:    at.UTC().Truncate(time.Millisecond),
	}
}
