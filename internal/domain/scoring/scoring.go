// Package scoring defines the soft factors used to rank eligible consultants.
// Every factor produces a score in [0,100], rounded to two decimals.
package scoring

import (
	"fmt"
	"maps"
	"math"

	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/types"
)

// Factor names a scoring dimension.
type Factor string

// Factors in breakdown order.
const (
	FactorEMR          Factor = "emr"
	FactorModule       Factor = "module"
	FactorProficiency  Factor = "proficiency"
	FactorAvailability Factor = "availability"
	FactorPerformance  Factor = "performance"
	FactorShift        Factor = "shift"
	FactorColleague    Factor = "colleague"
	FactorLocation     Factor = "location"
)

// Default factor weights. They sum to 1.
const (
	weightEMR          = 0.25
	weightModule       = 0.20
	weightProficiency  = 0.15
	weightAvailability = 0.15
	weightPerformance  = 0.10
	weightShift        = 0.08
	weightColleague    = 0.05
	weightLocation     = 0.02

	maxScore = 100
)

// FactorScorer scores one factor for a consultant against a requirement.
// Implementations are pure and safe for concurrent use.
type FactorScorer interface {
	Factor() Factor
	Weight() float64
	// Score returns a value in [0,100]. An error means the consultant data is malformed.
	Score(c model.Consultant, r model.Requirement) (float64, error)
}

// Option applies a configuration option to a Set.
type Option func(*Set)

// WithEMRFamilies adds EMR aliases. Keys are system names, values a system
// or family they belong with; both are matched case-insensitively. A value
// that is already known resolves to its family, so {"millennium": "cerner"}
// joins the Oracle Health family rather than starting a new one.
func WithEMRFamilies(families map[string]string) Option {
	return func(s *Set) {
		configured := make(map[string]string, len(families))
		for alias, family := range families {
			configured[normalize(alias)] = normalize(family)
		}
		known := maps.Clone(s.families)
		for alias, family := range configured {
			s.families[alias] = canonical(known, configured, family)
		}
	}
}

// canonical follows configured aliases until it reaches a known family or a
// name with no alias. A cycle resolves to its smallest name.
func canonical(known, configured map[string]string, family string) string {
	seen := make(map[string]bool)
	for {
		if f, ok := known[family]; ok {
			return f
		}
		next, ok := configured[family]
		if !ok {
			return family
		}
		if seen[family] {
			least := family
			for name := next; name != family; name = configured[name] {
				least = min(least, name)
			}
			return least
		}
		seen[family] = true
		family = next
	}
}

// Set is the fixed, ordered list of factor scorers.
type Set struct {
	families map[string]string
	scorers  []FactorScorer
}

// New creates the standard scorer set.
func New(opts ...Option) *Set {
	s := &Set{families: defaultFamilies()}
	for _, opt := range opts {
		opt(s)
	}

	s.scorers = []FactorScorer{
		emrScorer{families: s.families},
		moduleScorer{},
		proficiencyScorer{},
		availabilityScorer{},
		performanceScorer{},
		shiftScorer{},
		colleagueScorer{},
		locationScorer{},
	}
	return s
}

// Scorers returns the scorers in breakdown order.
func (s *Set) Scorers() []FactorScorer {
	out := make([]FactorScorer, len(s.scorers))
	copy(out, s.scorers)
	return out
}

// Score runs every factor and returns the rounded breakdown.
func (s *Set) Score(c model.Consultant, r model.Requirement) (types.ScoreBreakdown, error) {
	var b types.ScoreBreakdown
	for _, sc := range s.scorers {
		v, err := sc.Score(c, r)
		if err != nil {
			return types.ScoreBreakdown{}, fmt.Errorf("%s: %w", sc.Factor(), err)
		}
		set(&b, sc.Factor(), Round(v))
	}
	return b, nil
}

// Weights returns each factor's weight.
func (s *Set) Weights() map[Factor]float64 {
	w := make(map[Factor]float64, len(s.scorers))
	for _, sc := range s.scorers {
		w[sc.Factor()] = sc.Weight()
	}
	return w
}

// Value reads a factor's sub-score from a breakdown.
func Value(b types.ScoreBreakdown, f Factor) float64 {
	switch f {
	case FactorEMR:
		return b.EMR
	case FactorModule:
		return b.Module
	case FactorProficiency:
		return b.Proficiency
	case FactorAvailability:
		return b.Availability
	case FactorPerformance:
		return b.Performance
	case FactorShift:
		return b.Shift
	case FactorColleague:
		return b.Colleague
	case FactorLocation:
		return b.Location
	}
	return 0
}

func set(b *types.ScoreBreakdown, f Factor, v float64) {
	switch f {
	case FactorEMR:
		b.EMR = v
	case FactorModule:
		b.Module = v
	case FactorProficiency:
		b.Proficiency = v
	case FactorAvailability:
		b.Availability = v
	case FactorPerformance:
		b.Performance = v
	case FactorShift:
		b.Shift = v
	case FactorColleague:
		b.Colleague = v
	case FactorLocation:
		b.Location = v
	}
}

// Round clamps v to [0,100] and rounds it to two decimals.
func Round(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(maxScore, v))
	return math.Round(v*100) / 100
}
