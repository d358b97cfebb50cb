package probe

import (
	"fmt"
	"math"

	"github.com/okian/staffmatch/internal/domain/ranking"
	"github.com/okian/staffmatch/internal/domain/scoring"
	"github.com/okian/staffmatch/internal/domain/types"
)

// Check names reported in violations.
const (
	CheckRequirementID = "requirement_id"
	CheckEvaluated     = "total_evaluated"
	CheckEligible      = "total_eligible"
	CheckConstraints   = "hard_constraints"
	CheckOrdering      = "ordering"
	CheckScoreRange    = "score_range"
	CheckWeightedSum   = "weighted_sum"
	CheckCalculatedAt  = "calculated_at"
	CheckCachedRead    = "cached_read"
	CheckRecalculate   = "recalculate"
)

const scoreTolerance = 1e-6

var totals = ranking.NewAggregator(scoring.New())

// Verify checks a single envelope returned for requirementID.
func Verify(requirementID string, env types.RecommendationEnvelope) []Violation {
	var out []Violation
	add := func(check, format string, args ...any) {
		out = append(out, Violation{RequirementID: requirementID, Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	if env.RequirementID != requirementID {
		add(CheckRequirementID, "envelope is for %q", env.RequirementID)
	}
	if env.TotalEvaluated != len(env.Recommendations) {
		add(CheckEvaluated, "totalEvaluated %d, %d recommendations", env.TotalEvaluated, len(env.Recommendations))
	}
	if env.CalculatedAt.IsZero() {
		add(CheckCalculatedAt, "calculatedAt is missing")
	}

	eligible := 0
	for i, r := range env.Recommendations {
		if r.IsEligible {
			eligible++
			if len(r.HardConstraintsFailed) > 0 {
				add(CheckConstraints, "%s is eligible but failed %v", r.ConsultantID, r.HardConstraintsFailed)
			}
		} else if len(r.HardConstraintsFailed) == 0 {
			add(CheckConstraints, "%s is ineligible without a failed constraint", r.ConsultantID)
		}

		for _, f := range []scoring.Factor{
			scoring.FactorEMR, scoring.FactorModule, scoring.FactorProficiency, scoring.FactorAvailability,
			scoring.FactorPerformance, scoring.FactorShift, scoring.FactorColleague, scoring.FactorLocation,
		} {
			if v := scoring.Value(r.Scores, f); v < 0 || v > 100 {
				add(CheckScoreRange, "%s %s score %.2f outside [0,100]", r.ConsultantID, f, v)
			}
		}
		if want := totals.Total(r.Scores); math.Abs(want-r.TotalScore) > scoreTolerance {
			add(CheckWeightedSum, "%s totalScore %.4f, weighted sum %.4f", r.ConsultantID, r.TotalScore, want)
		}

		if i > 0 && !ordered(env.Recommendations[i-1], r) {
			add(CheckOrdering, "%s ranked before %s", env.Recommendations[i-1].ConsultantID, r.ConsultantID)
		}
	}
	if env.TotalEligible != eligible {
		add(CheckEligible, "totalEligible %d, %d eligible recommendations", env.TotalEligible, eligible)
	}
	return out
}

// VerifyCachedRead checks that a second read served the first from cache.
func VerifyCachedRead(requirementID string, first, second types.RecommendationEnvelope) []Violation {
	var out []Violation
	if !second.Cached {
		out = append(out, Violation{requirementID, CheckCachedRead, "second read was not served from cache"})
	}
	if !second.CalculatedAt.Equal(first.CalculatedAt) {
		out = append(out, Violation{requirementID, CheckCachedRead,
			fmt.Sprintf("calculatedAt moved from %s to %s", first.CalculatedAt, second.CalculatedAt)})
	}
	return out
}

// VerifyRecalculate checks a forced recompute. Rankings may legitimately
// change when upstream data changed, so only freshness is enforced.
func VerifyRecalculate(requirementID string, before, after types.RecommendationEnvelope) []Violation {
	var out []Violation
	if after.Cached {
		out = append(out, Violation{requirementID, CheckRecalculate, "recalculate returned a cached envelope"})
	}
	if after.CalculatedAt.Before(before.CalculatedAt) {
		out = append(out, Violation{requirementID, CheckRecalculate, "recalculate returned an older calculatedAt"})
	}
	return out
}

func ordered(a, b types.ConsultantScoreResult) bool {
	if a.IsEligible != b.IsEligible {
		return a.IsEligible
	}
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	return a.ConsultantID < b.ConsultantID
}

// sameOrder reports whether two rankings list the same consultants in the same order.
func sameOrder(a, b []types.ConsultantScoreResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ConsultantID != b[i].ConsultantID {
			return false
		}
	}
	return true
}
