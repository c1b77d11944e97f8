package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/matchflow/internal/adapters/repository"
	service "github.com/okian/matchflow/internal/app"
	"github.com/okian/matchflow/internal/domain/types"
	"github.com/okian/matchflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newService() *service.Service {
	return service.New(
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithDedupeSize(64),
		service.WithJobTimeout(10*time.Second),
		service.WithClock(clock),
		service.WithBalancing(map[string]float64{}),
	)
}

func waitDone(ctx context.Context, svc *service.Service, id string) types.Run {
	deadline := time.Now().Add(5 * time.Second)
	for {
		run, err := svc.GetRun(ctx, id)
		So(err, ShouldBeNil)
		if run.Status.Done() || time.Now().After(deadline) {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func matchingRequest(requestID string) *service.MatchingRequest {
	var req service.MatchingRequest
	So(json.Unmarshal([]byte(matchingJSON), &req), ShouldBeNil)
	req.RequestID = requestID
	return &req
}

func TestService_New(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(3), service.WithQueueSize(10))

		Convey("Then it reports its configuration before start", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 10)
			So(stats["algorithm"], ShouldEqual, "successive-shortest-paths")
		})

		Convey("Then submissions are refused", func() {
			_, _, err := svc.SubmitMatching(context.Background(), matchingRequest(""))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.GetRun(context.Background(), "x")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then stopping it is a no-op", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})
}

func TestService_SubmitMatching(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { So(svc.Stop(ctx), ShouldBeNil) })

		Convey("When a matching is submitted", func() {
			run, dup, err := svc.SubmitMatching(ctx, matchingRequest("req-1"))
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(run.Status, ShouldEqual, types.StatusQueued)
			So(run.Kind, ShouldEqual, types.KindMatching)
			So(run.CreatedAt.Equal(now), ShouldBeTrue)

			Convey("Then it eventually succeeds with its result", func() {
				done := waitDone(ctx, svc, run.ID)
				So(done.Status, ShouldEqual, types.StatusSucceeded)
				So(done.Error, ShouldBeEmpty)
				So(done.StartedAt, ShouldNotBeNil)
				So(done.FinishedAt, ShouldNotBeNil)

				var res types.MatchingResult
				So(json.Unmarshal(done.Result, &res), ShouldBeNil)
				So(res.Algorithm, ShouldEqual, "successive-shortest-paths")
				So(res.Matches, ShouldResemble, []types.Match{{RequesterUUID: "pupil-1", ProviderUUID: "student-1"}})
			})

			Convey("Then resubmitting the request id returns the same run", func() {
				again, dup, err := svc.SubmitMatching(ctx, matchingRequest("req-1"))
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
				So(again.ID, ShouldEqual, run.ID)
			})

			Convey("Then it is listed", func() {
				waitDone(ctx, svc, run.ID)
				runs, err := svc.ListRuns(ctx, 10)
				So(err, ShouldBeNil)
				So(len(runs), ShouldEqual, 1)
				So(runs[0].ID, ShouldEqual, run.ID)
				So(svc.GetStats()["storedRuns"], ShouldEqual, 1)
			})
		})

		Convey("When a request is malformed", func() {
			req := matchingRequest("req-bad")
			req.Requesters[0].Grade = nil
			_, _, err := svc.SubmitMatching(ctx, req)

			Convey("Then it is rejected before queueing", func() {
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
				runs, err := svc.ListRuns(ctx, 10)
				So(err, ShouldBeNil)
				So(runs, ShouldBeEmpty)
			})

			Convey("Then its request id stays free", func() {
				run, dup, err := svc.SubmitMatching(ctx, matchingRequest("req-bad"))
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(run.ID, ShouldNotBeEmpty)
			})
		})

		Convey("When an unknown run is requested", func() {
			_, err := svc.GetRun(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_SubmitCourses(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { So(svc.Stop(ctx), ShouldBeNil) })

		Convey("When a course assignment is submitted", func() {
			var req service.CourseRequest
			So(json.Unmarshal([]byte(coursesJSON), &req), ShouldBeNil)
			run, _, err := svc.SubmitCourses(ctx, &req)
			So(err, ShouldBeNil)
			So(run.Kind, ShouldEqual, types.KindCourses)

			Convey("Then the assignment is stored as its result", func() {
				done := waitDone(ctx, svc, run.ID)
				So(done.Status, ShouldEqual, types.StatusSucceeded)

				var res types.CourseResult
				So(json.Unmarshal(done.Result, &res), ShouldBeNil)
				So(res.Assignments, ShouldHaveLength, 2)
				So(res.ConflictsRemoved, ShouldEqual, 1)
			})
		})
	})
}
