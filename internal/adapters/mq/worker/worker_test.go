package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/matchflow/internal/adapters/mq/queue"
	worker "github.com/okian/matchflow/internal/adapters/mq/worker"
	"github.com/okian/matchflow/internal/domain/types"
	logging "github.com/okian/matchflow/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type outcome struct {
	result json.RawMessage
	err    error
}

type mockRecorder struct {
	mu       sync.Mutex
	running  []string
	finished map[string]outcome
	done     chan string
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{finished: make(map[string]outcome), done: make(chan string, 64)}
}

func (r *mockRecorder) MarkRunning(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = append(r.running, runID)
	return nil
}

func (r *mockRecorder) MarkFinished(_ context.Context, runID string, result json.RawMessage, runErr error) error {
	r.mu.Lock()
	r.finished[runID] = outcome{result: result, err: runErr}
	r.mu.Unlock()
	r.done <- runID
	return nil
}

func (r *mockRecorder) outcome(runID string) outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished[runID]
}

// executorFunc adapts a function to worker.Executor.
type executorFunc func(ctx context.Context, j queue.Job) (json.RawMessage, error)

func (f executorFunc) Execute(ctx context.Context, j queue.Job) (json.RawMessage, error) {
	return f(ctx, j)
}

func waitFor(r *mockRecorder, n int) []string {
	var ids []string
	timeout := time.After(5 * time.Second)
	for len(ids) < n {
		select {
		case id := <-r.done:
			ids = append(ids, id)
		case <-timeout:
			return ids
		}
	}
	return ids
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		rec := newMockRecorder()
		exec := executorFunc(func(ctx context.Context, j queue.Job) (json.RawMessage, error) {
			switch j.Payload {
			case "fail":
				return nil, errors.New("solver exploded")
			case "slow":
				<-ctx.Done()
				return json.RawMessage(`{"late":true}`), nil
			}
			return json.RawMessage(fmt.Sprintf(`{"run":%q}`, j.RunID)), nil
		})
		w := worker.NewInMemoryWorker(q, exec, rec, worker.WithName("w-test"), worker.WithJobTimeout(50*time.Millisecond))
		go w.Run(ctx)

		convey.Convey("When a run succeeds", func() {
			convey.So(q.Enqueue(ctx, types.Job{RunID: "ok", Kind: types.KindMatching}), convey.ShouldBeNil)
			convey.So(waitFor(rec, 1), convey.ShouldResemble, []string{"ok"})

			convey.Convey("Then its result is recorded", func() {
				out := rec.outcome("ok")
				convey.So(out.err, convey.ShouldBeNil)
				convey.So(string(out.result), convey.ShouldEqual, `{"run":"ok"}`)
				convey.So(rec.running, convey.ShouldResemble, []string{"ok"})
			})
		})

		convey.Convey("When a run fails", func() {
			convey.So(q.Enqueue(ctx, types.Job{RunID: "bad", Payload: "fail"}), convey.ShouldBeNil)
			waitFor(rec, 1)

			convey.Convey("Then the error is recorded", func() {
				out := rec.outcome("bad")
				convey.So(out.err, convey.ShouldNotBeNil)
				convey.So(out.result, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a run overruns its deadline", func() {
			convey.So(q.Enqueue(ctx, types.Job{RunID: "slow", Payload: "slow"}), convey.ShouldBeNil)
			waitFor(rec, 1)

			convey.Convey("Then the late result is discarded", func() {
				out := rec.outcome("slow")
				convey.So(errors.Is(out.err, worker.ErrJobTimeout), convey.ShouldBeTrue)
				convey.So(out.result, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		rec := newMockRecorder()
		exec := executorFunc(func(_ context.Context, j queue.Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		})
		pool := worker.NewPool(3, q, exec, rec)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, types.Job{RunID: fmt.Sprintf("run-%d", i)}), convey.ShouldBeNil)
		}
		pool.Start(ctx)

		convey.Convey("When it shuts down", func() {
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued run was drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(waitFor(rec, 20)), convey.ShouldEqual, 20)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), nil, nil)

		convey.Convey("Then it sizes itself to the machine", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
