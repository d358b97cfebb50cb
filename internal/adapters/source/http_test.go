package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
)

func init() {
	_ = logger.Init()
}

const requirementJSON = `{
	"id": "req-1",
	"projectId": "proj-1",
	"emrSystem": "Epic",
	"module": "Ambulatory",
	"shiftType": "day",
	"startDate": "2026-03-02T00:00:00Z",
	"endDate": "2026-03-16T00:00:00Z",
	"assignedConsultantIds": ["c-9"]
}`

func newServer(t *testing.T, handler http.HandlerFunc) *HTTPSource {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewHTTPSource(srv.URL+"/", WithRetries(2, time.Millisecond), WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHTTPSourceRequirement(t *testing.T) {
	Convey("Given a scheduling API", t, func() {
		var seenPath, seenRequestID atomic.Value
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			seenPath.Store(r.URL.Path)
			seenRequestID.Store(r.Header.Get("X-Request-ID"))
			switch r.URL.Path {
			case "/api/scheduling/requirements/req-1":
				_, _ = w.Write([]byte(requirementJSON))
			default:
				http.NotFound(w, r)
			}
		})

		Convey("When fetching an existing requirement", func() {
			ctx := logger.WithRequestID(context.Background(), "rid-1")
			r, err := s.Requirement(ctx, "req-1")

			Convey("Then it is decoded from camelCase JSON", func() {
				So(err, ShouldBeNil)
				So(r.ID, ShouldEqual, "req-1")
				So(r.EMRSystem, ShouldEqual, "Epic")
				So(r.EndDate.Sub(r.StartDate), ShouldEqual, 14*24*time.Hour)
				So(r.AssignedConsultantIDs, ShouldResemble, []string{"c-9"})
				So(seenPath.Load(), ShouldEqual, "/api/scheduling/requirements/req-1")
				So(seenRequestID.Load(), ShouldEqual, "rid-1")
			})
		})

		Convey("When the requirement does not exist", func() {
			_, err := s.Requirement(context.Background(), "nope")
			So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestHTTPSourceRetries(t *testing.T) {
	Convey("Given a flaky consultant API", t, func() {
		var calls atomic.Int32
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`[{"id":"c-1","status":"active"},{"id":"c-2","status":"inactive"}]`))
		})

		Convey("When the third attempt succeeds", func() {
			cs, err := s.Consultants(context.Background())

			Convey("Then the pool is returned", func() {
				So(err, ShouldBeNil)
				So(len(cs), ShouldEqual, 2)
				So(calls.Load(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a consultant API that is down", t, func() {
		var calls atomic.Int32
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		Convey("When retries are exhausted", func() {
			_, err := s.Consultants(context.Background())

			Convey("Then the error is upstream unavailable", func() {
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a consultant endpoint that answers 404", t, func() {
		var calls atomic.Int32
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.NotFound(w, r)
		})

		Convey("When listing consultants", func() {
			_, err := s.Consultants(context.Background())

			Convey("Then it is upstream unavailable, not a missing requirement", func() {
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
				So(errors.Is(err, types.ErrNotFound), ShouldBeFalse)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an API that rejects the request", t, func() {
		var calls atomic.Int32
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		})

		Convey("Then the failure is not retried", func() {
			_, err := s.Requirement(context.Background(), "req-1")
			So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
			So(calls.Load(), ShouldEqual, 1)
		})
	})
}

func TestHTTPSourceShapes(t *testing.T) {
	Convey("Given an API wrapping consultants in an object", t, func() {
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/consultants":
				_, _ = w.Write([]byte(`{"consultants":[{"id":"c-1"}]}`))
			case "/api/scheduling/projects/proj-1/requirements":
				_, _ = w.Write([]byte(`[` + requirementJSON + `]`))
			default:
				_, _ = w.Write([]byte(`not json`))
			}
		})

		Convey("When listing consultants", func() {
			cs, err := s.Consultants(context.Background())
			So(err, ShouldBeNil)
			So(cs[0].ID, ShouldEqual, "c-1")
		})

		Convey("When listing project requirements", func() {
			rs, err := s.ProjectRequirements(context.Background(), "proj-1")
			So(err, ShouldBeNil)
			So(len(rs), ShouldEqual, 1)
			So(rs[0].ProjectID, ShouldEqual, "proj-1")
		})

		Convey("When the body is not JSON", func() {
			_, err := s.Requirement(context.Background(), "garbled")
			So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given an API returning one undecodable consultant", t, func() {
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"id":"c-1","status":"active"},{"id":"bad","performance":{"ratings":["five"]}}]`))
		})

		Convey("When listing consultants", func() {
			cs, err := s.Consultants(context.Background())

			Convey("Then the good profile decodes and the bad one carries its error", func() {
				So(err, ShouldBeNil)
				So(len(cs), ShouldEqual, 2)
				So(cs[0].DecodeErr, ShouldBeNil)
				So(cs[0].Validate(), ShouldBeNil)
				So(cs[1].ID, ShouldEqual, "bad")
				So(cs[1].DecodeErr, ShouldNotBeNil)
				So(cs[1].Validate(), ShouldNotBeNil)
			})
		})
	})

	Convey("Given a pool element without a readable id", t, func() {
		s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"consultants":[7]}`))
		})

		Convey("Then it is still returned as undecodable", func() {
			cs, err := s.Consultants(context.Background())
			So(err, ShouldBeNil)
			So(len(cs), ShouldEqual, 1)
			So(cs[0].ID, ShouldBeEmpty)
			So(cs[0].DecodeErr, ShouldNotBeNil)
		})
	})

	Convey("Given an invalid base url", t, func() {
		_, err := NewHTTPSource("not a url")
		So(err, ShouldNotBeNil)
	})
}
