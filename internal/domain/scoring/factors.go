package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/okian/staffmatch/internal/domain/availability"
	"github.com/okian/staffmatch/internal/domain/model"
)

// ErrUnknownLevel is returned for a proficiency level outside the known scale.
var ErrUnknownLevel = errors.New("unknown proficiency level")

// ErrRatingOutOfRange is returned for a performance rating outside 1-5.
var ErrRatingOutOfRange = errors.New("rating out of range")

const (
	emrExact           = 100
	emrExactUnverified = 90
	emrSameFamily      = 70
	emrOther           = 25

	// moduleSaturation controls how fast module experience approaches 100.
	moduleSaturation = 2.0

	unverifiedFactor = 0.9

	neutralScore = 50

	// performancePrior is the number of phantom neutral ratings blended in.
	performancePrior = 2.0
	minRating        = 1.0
	maxRating        = 5.0

	shiftMatch    = 100
	shiftFlexible = 75
	shiftConflict = 10

	locationNearKM     = 50.0
	locationFarKM      = 1500.0
	locationSameState  = 70
	locationOtherState = 30
	earthRadiusKM      = 6371.0
)

var levelScores = map[string]float64{
	model.LevelBeginner:     25,
	model.LevelIntermediate: 50,
	model.LevelAdvanced:     75,
	model.LevelExpert:       100,
}

func defaultFamilies() map[string]string {
	return map[string]string{
		"cerner":             "oracle health",
		"oracle cerner":      "oracle health",
		"oracle health":      "oracle health",
		"allscripts":         "veradigm",
		"veradigm":           "veradigm",
		"meditech":           "meditech",
		"meditech expanse":   "meditech",
		"meditech magic":     "meditech",
		"meditech 6.x":       "meditech",
		"epic":               "epic",
		"epic systems":       "epic",
		"athenahealth":       "athena",
		"athenaone":          "athena",
		"eclinicalworks":     "eclinicalworks",
		"ecw":                "eclinicalworks",
		"nextgen":            "nextgen",
		"nextgen healthcare": "nextgen",
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type emrScorer struct {
	families map[string]string
}

func (emrScorer) Factor() Factor  { return FactorEMR }
func (emrScorer) Weight() float64 { return weightEMR }

func (s emrScorer) family(system string) string {
	n := normalize(system)
	if f, ok := s.families[n]; ok {
		return f
	}
	return n
}

func (s emrScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	want := normalize(r.EMRSystem)
	best := 0.0
	for _, p := range c.EMRProficiencies {
		got := normalize(p.System)
		var v float64
		switch {
		case got == want && p.Verified:
			v = emrExact
		case got == want:
			v = emrExactUnverified
		case s.family(got) == s.family(want):
			v = emrSameFamily
		default:
			v = emrOther
		}
		best = math.Max(best, v)
	}
	return best, nil
}

type moduleScorer struct{}

func (moduleScorer) Factor() Factor  { return FactorModule }
func (moduleScorer) Weight() float64 { return weightModule }

func (moduleScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	var n float64
	for _, m := range c.ModuleExperience {
		if normalize(m.Module) != normalize(r.Module) || m.Engagements <= 0 {
			continue
		}
		if normalize(m.EMRSystem) == normalize(r.EMRSystem) {
			n += float64(m.Engagements)
		} else {
			n += float64(m.Engagements) / 2
		}
	}
	return maxScore * (1 - math.Exp(-n/moduleSaturation)), nil
}

type proficiencyScorer struct{}

func (proficiencyScorer) Factor() Factor  { return FactorProficiency }
func (proficiencyScorer) Weight() float64 { return weightProficiency }

func (proficiencyScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	best := 0.0
	for _, p := range c.EMRProficiencies {
		v, ok := levelScores[normalize(p.Level)]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, p.Level)
		}
		if normalize(p.System) != normalize(r.EMRSystem) {
			continue
		}
		if !p.Verified {
			v *= unverifiedFactor
		}
		best = math.Max(best, v)
	}
	return best, nil
}

type availabilityScorer struct{}

func (availabilityScorer) Factor() Factor  { return FactorAvailability }
func (availabilityScorer) Weight() float64 { return weightAvailability }

func (availabilityScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	cov, err := availability.Coverage(c.Availability, r.StartDate, r.EndDate)
	if err != nil {
		return 0, err
	}
	return cov * maxScore, nil
}

type performanceScorer struct{}

func (performanceScorer) Factor() Factor  { return FactorPerformance }
func (performanceScorer) Weight() float64 { return weightPerformance }

func (performanceScorer) Score(c model.Consultant, _ model.Requirement) (float64, error) {
	ratings := c.Performance.Ratings
	if len(ratings) == 0 {
		return neutralScore, nil
	}
	var sum float64
	for _, v := range ratings {
		if v < minRating || v > maxRating || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: %v", ErrRatingOutOfRange, v)
		}
		sum += v
	}
	n := float64(len(ratings))
	observed := (sum/n - minRating) / (maxRating - minRating) * maxScore
	return (n*observed + performancePrior*neutralScore) / (n + performancePrior), nil
}

type shiftScorer struct{}

func (shiftScorer) Factor() Factor  { return FactorShift }
func (shiftScorer) Weight() float64 { return weightShift }

func (shiftScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	want, pref := normalize(r.ShiftType), normalize(c.ShiftPreference)
	switch {
	case want != "" && want != model.ShiftAny && want == pref:
		return shiftMatch, nil
	case want == "" || want == model.ShiftAny || pref == model.ShiftFlexible || pref == model.ShiftAny:
		return shiftFlexible, nil
	case pref == "":
		return neutralScore, nil
	default:
		return shiftConflict, nil
	}
}

type colleagueScorer struct{}

func (colleagueScorer) Factor() Factor  { return FactorColleague }
func (colleagueScorer) Weight() float64 { return weightColleague }

func (colleagueScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	assigned := make(map[string]struct{}, len(r.AssignedConsultantIDs))
	for _, id := range r.AssignedConsultantIDs {
		if id != "" && id != c.ID {
			assigned[id] = struct{}{}
		}
	}
	if len(assigned) == 0 {
		return neutralScore, nil
	}

	paired := 0
	seen := make(map[string]struct{}, len(c.Colleagues))
	for _, h := range c.Colleagues {
		if h.SuccessfulEngagements <= 0 {
			continue
		}
		if _, ok := assigned[h.ConsultantID]; !ok {
			continue
		}
		if _, dup := seen[h.ConsultantID]; dup {
			continue
		}
		seen[h.ConsultantID] = struct{}{}
		paired++
	}
	return neutralScore + neutralScore*float64(paired)/float64(len(assigned)), nil
}

type locationScorer struct{}

func (locationScorer) Factor() Factor  { return FactorLocation }
func (locationScorer) Weight() float64 { return weightLocation }

func (locationScorer) Score(c model.Consultant, r model.Requirement) (float64, error) {
	from, to := c.Location, r.HospitalLocation
	if from.HasCoordinates() && to.HasCoordinates() {
		d := haversineKM(*from.Latitude, *from.Longitude, *to.Latitude, *to.Longitude)
		switch {
		case d <= locationNearKM:
			return maxScore, nil
		case d >= locationFarKM:
			return 0, nil
		default:
			return maxScore * (locationFarKM - d) / (locationFarKM - locationNearKM), nil
		}
	}

	fromState, toState := normalize(from.State), normalize(to.State)
	switch {
	case fromState == "" || toState == "":
		return neutralScore, nil
	case fromState != toState:
		return locationOtherState, nil
	case normalize(from.City) != "" && normalize(from.City) == normalize(to.City):
		return maxScore, nil
	default:
		return locationSameState, nil
	}
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat, dLon := rad(lat2-lat1), rad(lon2-lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}
