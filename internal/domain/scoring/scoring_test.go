package scoring_test

import (
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/staffmatch/internal/domain/model"
	scoring "github.com/okian/staffmatch/internal/domain/scoring"
)

var start = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func requirement() model.Requirement {
	return model.Requirement{
		ID:        "req-1",
		EMRSystem: "Epic",
		Module:    "Ambulatory",
		ShiftType: model.ShiftDay,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 10),
	}
}

func f64(v float64) *float64 { return &v }

func scorerFor(s *scoring.Set, f scoring.Factor) scoring.FactorScorer {
	for _, sc := range s.Scorers() {
		if sc.Factor() == f {
			return sc
		}
	}
	return nil
}

func TestSetLayout(t *testing.T) {
	Convey("Given the default scorer set", t, func() {
		s := scoring.New()

		Convey("Then the factors come in breakdown order", func() {
			var got []scoring.Factor
			for _, sc := range s.Scorers() {
				got = append(got, sc.Factor())
			}
			So(got, ShouldResemble, []scoring.Factor{
				scoring.FactorEMR, scoring.FactorModule, scoring.FactorProficiency, scoring.FactorAvailability,
				scoring.FactorPerformance, scoring.FactorShift, scoring.FactorColleague, scoring.FactorLocation,
			})
		})

		Convey("Then the weights sum to one", func() {
			var sum float64
			for _, w := range s.Weights() {
				sum += w
			}
			So(sum, ShouldAlmostEqual, 1.0, 1e-9)
			So(s.Weights()[scoring.FactorEMR], ShouldEqual, 0.25)
			So(s.Weights()[scoring.FactorLocation], ShouldEqual, 0.02)
		})
	})
}

func TestEMRScorer(t *testing.T) {
	Convey("Given the EMR scorer", t, func() {
		sc := scorerFor(scoring.New(scoring.WithEMRFamilies(map[string]string{"Epic Hyperspace": "Epic"})), scoring.FactorEMR)
		r := requirement()

		cases := []struct {
			name string
			prof []model.EMRProficiency
			want float64
		}{
			{"no EMR experience", nil, 0},
			{"verified exact match", []model.EMRProficiency{{System: "epic", Level: "expert", Verified: true}}, 100},
			{"unverified exact match", []model.EMRProficiency{{System: "Epic", Level: "expert"}}, 90},
			{"configured alias in the same family", []model.EMRProficiency{{System: "Epic Hyperspace", Level: "advanced"}}, 70},
			{"unrelated EMR", []model.EMRProficiency{{System: "Cerner", Level: "expert", Verified: true}}, 25},
			{"best entry wins", []model.EMRProficiency{{System: "Cerner", Level: "expert"}, {System: "Epic", Level: "beginner", Verified: true}}, 100},
		}
		for _, tc := range cases {
			Convey("When the consultant has "+tc.name, func() {
				v, err := sc.Score(model.Consultant{ID: "c", EMRProficiencies: tc.prof}, r)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, tc.want)
			})
		}

		Convey("When the requirement is Oracle Health and the consultant knows Cerner", func() {
			r.EMRSystem = "Oracle Health"
			v, _ := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Cerner", Verified: true}}}, r)
			So(v, ShouldEqual, 70)
		})
	})
}

func TestEMRFamiliesConfigured(t *testing.T) {
	Convey("Given configured families that name known systems", t, func() {
		sc := scorerFor(scoring.New(scoring.WithEMRFamilies(map[string]string{
			"Oracle Health": "Cerner",
			"Millennium":    "cerner",
			"Hyperspace":    "Epic Systems",
		})), scoring.FactorEMR)
		r := requirement()
		cerner := model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Cerner", Verified: true}}}

		Convey("When the requirement is Oracle Health and the consultant knows Cerner", func() {
			r.EMRSystem = "Oracle Health"
			v, _ := sc.Score(cerner, r)

			Convey("Then both stay in one family", func() {
				So(v, ShouldEqual, 70)
			})
		})

		Convey("When a new alias points at Cerner", func() {
			r.EMRSystem = "Millennium"
			v, _ := sc.Score(cerner, r)
			So(v, ShouldEqual, 70)
		})

		Convey("When a new alias points at another alias of Epic", func() {
			v, _ := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Hyperspace", Verified: true}}}, r)
			So(v, ShouldEqual, 70)
		})
	})

	Convey("Given configured aliases that chain through each other", t, func() {
		sc := scorerFor(scoring.New(scoring.WithEMRFamilies(map[string]string{
			"Sunrise":            "Allscripts Sunrise",
			"Allscripts Sunrise": "Veradigm",
			"Loop A":             "Loop B",
			"Loop B":             "Loop A",
		})), scoring.FactorEMR)
		r := requirement()

		Convey("Then a chain ends in the known family", func() {
			r.EMRSystem = "Allscripts"
			v, _ := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Sunrise", Verified: true}}}, r)
			So(v, ShouldEqual, 70)
		})

		Convey("Then a cycle still forms one family", func() {
			r.EMRSystem = "Loop A"
			v, _ := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Loop B", Verified: true}}}, r)
			So(v, ShouldEqual, 70)
		})
	})
}

func TestModuleScorer(t *testing.T) {
	Convey("Given the module scorer", t, func() {
		sc := scorerFor(scoring.New(), scoring.FactorModule)
		r := requirement()

		Convey("When there is no module experience", func() {
			v, _ := sc.Score(model.Consultant{}, r)
			So(v, ShouldEqual, 0)
		})

		Convey("When experience grows the score saturates toward 100", func() {
			score := func(n int) float64 {
				v, _ := sc.Score(model.Consultant{ModuleExperience: []model.ModuleExperience{{EMRSystem: "Epic", Module: "Ambulatory", Engagements: n}}}, r)
				return v
			}
			So(score(2), ShouldAlmostEqual, 100*(1-math.Exp(-1)), 1e-9)
			So(score(4), ShouldBeGreaterThan, score(2))
			So(score(40), ShouldBeLessThanOrEqualTo, 100)
		})

		Convey("When the module was done on another EMR it counts half", func() {
			v, _ := sc.Score(model.Consultant{ModuleExperience: []model.ModuleExperience{{EMRSystem: "Cerner", Module: "ambulatory", Engagements: 4}}}, r)
			So(v, ShouldAlmostEqual, 100*(1-math.Exp(-1)), 1e-9)
		})
	})
}

func TestProficiencyScorer(t *testing.T) {
	Convey("Given the proficiency scorer", t, func() {
		sc := scorerFor(scoring.New(), scoring.FactorProficiency)
		r := requirement()

		Convey("When the level is verified advanced", func() {
			v, err := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Epic", Level: "Advanced", Verified: true}}}, r)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 75)
		})

		Convey("When the level is unverified expert", func() {
			v, _ := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Epic", Level: "expert"}}}, r)
			So(v, ShouldAlmostEqual, 90, 1e-9)
		})

		Convey("When the proficiency is for another EMR", func() {
			v, _ := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Cerner", Level: "expert", Verified: true}}}, r)
			So(v, ShouldEqual, 0)
		})

		Convey("When the level is unknown", func() {
			_, err := sc.Score(model.Consultant{EMRProficiencies: []model.EMRProficiency{{System: "Epic", Level: "guru"}}}, r)
			So(errors.Is(err, scoring.ErrUnknownLevel), ShouldBeTrue)
		})
	})
}

func TestPerformanceScorer(t *testing.T) {
	Convey("Given the performance scorer", t, func() {
		sc := scorerFor(scoring.New(), scoring.FactorPerformance)
		r := requirement()
		score := func(ratings ...float64) (float64, error) {
			return sc.Score(model.Consultant{Performance: model.Performance{Ratings: ratings}}, r)
		}

		Convey("When there is no history the score is neutral", func() {
			v, _ := score()
			So(v, ShouldEqual, 50)
		})

		Convey("When there are two perfect ratings they are shrunk toward neutral", func() {
			v, _ := score(5, 5)
			So(v, ShouldEqual, 75)
		})

		Convey("When many perfect ratings accumulate the score approaches 100", func() {
			few, _ := score(5, 5)
			many, _ := score(5, 5, 5, 5, 5, 5, 5, 5)
			So(many, ShouldBeGreaterThan, few)
			So(many, ShouldEqual, 90)
		})

		Convey("When a rating is outside the scale", func() {
			_, err := score(4, 0)
			So(errors.Is(err, scoring.ErrRatingOutOfRange), ShouldBeTrue)
		})
	})
}

func TestShiftScorer(t *testing.T) {
	Convey("Given the shift scorer", t, func() {
		sc := scorerFor(scoring.New(), scoring.FactorShift)
		cases := []struct {
			want, pref string
			score      float64
		}{
			{"day", "Day", 100},
			{"day", "flexible", 75},
			{"any", "night", 75},
			{"", "night", 75},
			{"night", "", 50},
			{"night", "day", 10},
		}
		for _, tc := range cases {
			Convey("When the requirement wants "+tc.want+" and the consultant prefers "+tc.pref, func() {
				r := requirement()
				r.ShiftType = tc.want
				v, _ := sc.Score(model.Consultant{ShiftPreference: tc.pref}, r)
				So(v, ShouldEqual, tc.score)
			})
		}
	})
}

func TestColleagueScorer(t *testing.T) {
	Convey("Given the colleague scorer", t, func() {
		sc := scorerFor(scoring.New(), scoring.FactorColleague)
		r := requirement()
		c := model.Consultant{ID: "c-1", Colleagues: []model.ColleagueHistory{
			{ConsultantID: "c-2", SuccessfulEngagements: 3},
			{ConsultantID: "c-9", SuccessfulEngagements: 1},
			{ConsultantID: "c-3", SuccessfulEngagements: 0},
		}}

		Convey("When nobody is assigned yet", func() {
			v, _ := sc.Score(c, r)
			So(v, ShouldEqual, 50)
		})

		Convey("When one of two assigned consultants is a past colleague", func() {
			r.AssignedConsultantIDs = []string{"c-2", "c-3"}
			v, _ := sc.Score(c, r)
			So(v, ShouldEqual, 75)
		})

		Convey("When the consultant is the only one assigned", func() {
			r.AssignedConsultantIDs = []string{"c-1"}
			v, _ := sc.Score(c, r)
			So(v, ShouldEqual, 50)
		})
	})
}

func TestLocationScorer(t *testing.T) {
	Convey("Given the location scorer", t, func() {
		sc := scorerFor(scoring.New(), scoring.FactorLocation)
		r := requirement()

		Convey("When both sides have coordinates in the same city", func() {
			r.HospitalLocation = model.Location{Latitude: f64(41.8781), Longitude: f64(-87.6298)}
			v, _ := sc.Score(model.Consultant{Location: model.Location{Latitude: f64(41.90), Longitude: f64(-87.65)}}, r)
			So(v, ShouldEqual, 100)
		})

		Convey("When the consultant is across the country", func() {
			r.HospitalLocation = model.Location{Latitude: f64(41.8781), Longitude: f64(-87.6298)}
			v, _ := sc.Score(model.Consultant{Location: model.Location{Latitude: f64(34.05), Longitude: f64(-118.24)}}, r)
			So(v, ShouldEqual, 0)
		})

		Convey("When the consultant is a few hundred kilometers away", func() {
			r.HospitalLocation = model.Location{Latitude: f64(41.8781), Longitude: f64(-87.6298)}
			v, _ := sc.Score(model.Consultant{Location: model.Location{Latitude: f64(39.7684), Longitude: f64(-86.1581)}}, r)
			So(v, ShouldBeBetween, 50, 100)
		})

		Convey("When only postal data is known", func() {
			r.HospitalLocation = model.Location{City: "Chicago", State: "IL"}
			same, _ := sc.Score(model.Consultant{Location: model.Location{City: "chicago", State: "il"}}, r)
			state, _ := sc.Score(model.Consultant{Location: model.Location{City: "Peoria", State: "IL"}}, r)
			other, _ := sc.Score(model.Consultant{Location: model.Location{City: "Austin", State: "TX"}}, r)
			unknown, _ := sc.Score(model.Consultant{}, r)
			So(same, ShouldEqual, 100)
			So(state, ShouldEqual, 70)
			So(other, ShouldEqual, 30)
			So(unknown, ShouldEqual, 50)
		})
	})
}

func TestSetScore(t *testing.T) {
	Convey("Given a fully described consultant", t, func() {
		s := scoring.New()
		r := requirement()
		c := model.Consultant{
			ID:               "c-1",
			EMRProficiencies: []model.EMRProficiency{{System: "Epic", Level: "expert", Verified: true}},
			ModuleExperience: []model.ModuleExperience{{EMRSystem: "Epic", Module: "Ambulatory", Engagements: 1}},
			Availability:     []model.AvailabilityWindow{{Start: start, End: start.AddDate(0, 0, 5)}},
			ShiftPreference:  "day",
		}

		Convey("When scored", func() {
			b, err := s.Score(c, r)

			Convey("Then every factor is filled and rounded", func() {
				So(err, ShouldBeNil)
				So(b.EMR, ShouldEqual, 100)
				So(b.Module, ShouldEqual, 39.35)
				So(b.Proficiency, ShouldEqual, 100)
				So(b.Availability, ShouldEqual, 50)
				So(b.Performance, ShouldEqual, 50)
				So(b.Shift, ShouldEqual, 100)
				So(b.Colleague, ShouldEqual, 50)
				So(b.Location, ShouldEqual, 50)
				So(scoring.Value(b, scoring.FactorModule), ShouldEqual, b.Module)
			})
		})

		Convey("When one factor cannot be computed", func() {
			c.EMRProficiencies[0].Level = "wizard"
			_, err := s.Score(c, r)
			So(errors.Is(err, scoring.ErrUnknownLevel), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "proficiency:")
		})
	})
}

func TestRound(t *testing.T) {
	Convey("Given raw values", t, func() {
		So(scoring.Round(33.33333), ShouldEqual, 33.33)
		So(scoring.Round(-4), ShouldEqual, 0)
		So(scoring.Round(140), ShouldEqual, 100)
		So(scoring.Round(math.NaN()), ShouldEqual, 0)
	})
}
