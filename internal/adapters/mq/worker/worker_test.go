package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	worker "github.com/okian/staffmatch/internal/adapters/mq/worker"
	"github.com/okian/staffmatch/internal/domain/eligibility"
	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/types"
	logging "github.com/okian/staffmatch/pkg/logger"
)

func init() {
	_ = logging.Init()
}

type stubEvaluator struct {
	fail map[string]error
}

func (s stubEvaluator) Evaluate(c model.Consultant, _ model.Requirement) (eligibility.Result, error) {
	if err := s.fail[c.ID]; err != nil {
		return eligibility.Result{}, err
	}
	return eligibility.Result{Eligible: true}, nil
}

// trackingScorer records peak concurrency and can panic for chosen ids.
type trackingScorer struct {
	active, peak atomic.Int64
	panicFor     string
	delay        time.Duration
}

func (s *trackingScorer) Score(c model.Consultant, _ model.Requirement) (types.ScoreBreakdown, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if c.ID == s.panicFor {
		panic("corrupt profile")
	}
	time.Sleep(s.delay)
	return types.ScoreBreakdown{EMR: 100}, nil
}

type stubAggregator struct{}

func (stubAggregator) Aggregate(c model.Consultant, _ model.Requirement, b types.ScoreBreakdown, e eligibility.Result) types.ConsultantScoreResult {
	return types.ConsultantScoreResult{ConsultantID: c.ID, TotalScore: b.EMR, IsEligible: e.Eligible, Scores: b}
}

func candidates(n int) []model.Consultant {
	out := make([]model.Consultant, n)
	for i := range out {
		out[i] = model.Consultant{ID: fmt.Sprintf("c-%02d", i)}
	}
	return out
}

func TestPoolEvaluate(t *testing.T) {
	Convey("Given a pool of three workers", t, func() {
		sc := &trackingScorer{delay: 5 * time.Millisecond}
		pool := worker.NewPool(3, stubEvaluator{}, sc, stubAggregator{}, worker.WithName("test-pool"))
		r := model.Requirement{ID: "req-1"}

		Convey("When evaluating twenty candidates", func() {
			out, err := pool.Evaluate(context.Background(), r, candidates(20))

			Convey("Then every candidate is scored in input order", func() {
				So(err, ShouldBeNil)
				So(out.Excluded, ShouldBeEmpty)
				So(len(out.Results), ShouldEqual, 20)
				So(out.Results[0].ConsultantID, ShouldEqual, "c-00")
				So(out.Results[19].ConsultantID, ShouldEqual, "c-19")
			})

			Convey("Then no more than three evaluations ran at once", func() {
				So(sc.peak.Load(), ShouldBeLessThanOrEqualTo, 3)
				So(pool.Size(), ShouldEqual, 3)
			})
		})

		Convey("When the pool is empty", func() {
			out, err := pool.Evaluate(context.Background(), r, nil)
			So(err, ShouldBeNil)
			So(out.Results, ShouldBeEmpty)
			So(out.Excluded, ShouldBeEmpty)
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := pool.Evaluate(ctx, r, candidates(5))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestPoolExclusions(t *testing.T) {
	Convey("Given candidates with broken data", t, func() {
		sc := &trackingScorer{panicFor: "c-03"}
		ev := stubEvaluator{fail: map[string]error{"c-01": errors.New("bad recurrence rule")}}
		pool := worker.NewPool(2, ev, sc, stubAggregator{})
		cs := candidates(5)
		cs[4].Performance.Ratings = []float64{9}

		Convey("When evaluated", func() {
			out, err := pool.Evaluate(context.Background(), model.Requirement{ID: "req-2"}, cs)

			Convey("Then only the broken candidates are excluded", func() {
				So(err, ShouldBeNil)
				So(len(out.Results), ShouldEqual, 2)
				So(len(out.Excluded), ShouldEqual, 3)

				var ids []string
				for _, x := range out.Excluded {
					ids = append(ids, x.ConsultantID)
					So(errors.Is(x.Err, types.ErrComputation), ShouldBeTrue)
				}
				So(ids, ShouldResemble, []string{"c-01", "c-03", "c-04"})
			})
		})
	})
}

func TestPoolConcurrentUse(t *testing.T) {
	Convey("Given one pool shared by several requests", t, func() {
		pool := worker.NewPool(4, stubEvaluator{}, &trackingScorer{}, stubAggregator{})

		Convey("When evaluating from many goroutines", func() {
			var wg sync.WaitGroup
			counts := make([]int, 8)
			for i := range counts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					out, err := pool.Evaluate(context.Background(), model.Requirement{ID: fmt.Sprintf("req-%d", i)}, candidates(10))
					if err == nil {
						counts[i] = len(out.Results)
					}
				}()
			}
			wg.Wait()

			Convey("Then every request gets its full result", func() {
				for _, n := range counts {
					So(n, ShouldEqual, 10)
				}
			})
		})
	})
}
