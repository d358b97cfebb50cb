package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/staffmatch/internal/domain/types"
)

func envelope(id string, ids ...string) types.RecommendationEnvelope {
	recs := make([]types.ConsultantScoreResult, len(ids))
	for i, c := range ids {
		recs[i] = types.ConsultantScoreResult{ConsultantID: c, IsEligible: true, HardConstraintsFailed: []string{}}
	}
	return types.RecommendationEnvelope{
		RequirementID:   id,
		TotalEvaluated:  len(recs),
		TotalEligible:   len(recs),
		Recommendations: recs,
		CalculatedAt:    time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(ctx, WithShardCount(4), WithMetricsUpdateInterval(time.Hour))
		defer func() { _ = s.Close() }()

		Convey("When reading an unknown requirement", func() {
			_, found, err := s.Get(ctx, "req-x")

			Convey("Then it is a miss without error", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When an envelope is stored", func() {
			So(s.Put(ctx, "req-1", envelope("req-1", "a", "b")), ShouldBeNil)
			entry, found, err := s.Get(ctx, "req-1")

			Convey("Then it is returned whole", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(entry.RequirementID, ShouldEqual, "req-1")
				So(entry.Envelope, ShouldResemble, envelope("req-1", "a", "b"))
				So(entry.ComputedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then mutating the returned copy does not change the store", func() {
				entry.Envelope.Recommendations[0].ConsultantID = "zzz"
				again, _, _ := s.Get(ctx, "req-1")
				So(again.Envelope.Recommendations[0].ConsultantID, ShouldEqual, "a")
			})

			Convey("Then a second put replaces the whole entry", func() {
				So(s.Put(ctx, "req-1", envelope("req-1", "c")), ShouldBeNil)
				again, _, _ := s.Get(ctx, "req-1")
				So(again.Envelope.TotalEvaluated, ShouldEqual, 1)
				So(again.Envelope.Recommendations[0].ConsultantID, ShouldEqual, "c")
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the key does not match the envelope", func() {
			err := s.Put(ctx, "req-1", envelope("req-2"))
			So(errors.Is(err, ErrKeyMismatch), ShouldBeTrue)
		})

		Convey("When the key is empty", func() {
			So(errors.Is(s.Put(ctx, "", envelope("")), ErrEmptyKey), ShouldBeTrue)
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			Convey("Then reads and writes fail", func() {
				_, _, err := s.Get(ctx, "req-1")
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
				So(errors.Is(s.Put(ctx, "req-1", envelope("req-1")), ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	Convey("Given a memory store shared by many writers and readers", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(ctx)
		defer func() { _ = s.Close() }()

		Convey("When requirements are written and read concurrently", func() {
			var wg sync.WaitGroup
			for w := 0; w < 16; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						id := fmt.Sprintf("req-%d", i)
						_ = s.Put(ctx, id, envelope(id, fmt.Sprintf("c-%d", w)))
						_, _, _ = s.Get(ctx, id)
					}
				}()
			}
			wg.Wait()

			Convey("Then every requirement holds exactly one complete envelope", func() {
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 50)
				for i := 0; i < 50; i++ {
					e, found, _ := s.Get(ctx, fmt.Sprintf("req-%d", i))
					So(found, ShouldBeTrue)
					So(e.Envelope.TotalEvaluated, ShouldEqual, len(e.Envelope.Recommendations))
				}
			})
		})
	})
}
