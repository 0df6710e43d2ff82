// Seed-test scenarios translated directly from the scheduler's own design
// scenarios: affinity saturation across the whole pool, and a deep inline
// continuation chain that must never touch a deque.

package pftask_internal

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// TestAffinitySaturation is Scenario E: 2048 tasks pinned round-robin across
// the worker pool, each bumping a shared atomic and a per-worker counter.
// Every task must land on the worker it was pinned to, the shared atomic
// must equal the task count, and each worker's counter must equal exactly
// the number of tasks pinned to it.
func TestAffinitySaturation(t *testing.T) {
	const numWorkers = 4
	const n = 2048
	sched := newTestScheduler(t, numWorkers)

	var shared atomic.Int32
	perWorker := make([]atomic.Int32, numWorkers)
	done := make(chan struct{}, n)

	tasks := make([]*Task, n)
	for i := 0; i < n; i++ {
		w := int32(i % numWorkers)
		tasks[i] = NewTask(fmt.Sprintf("aff-%d", i), func(ctx context.Context) *Task {
			if wid := WorkerID(ctx); wid != w {
				t.Errorf("task pinned to worker %d ran on worker %d", w, wid)
			}
			perWorker[w].Add(1)
			shared.Add(1)
			done <- struct{}{}
			return nil
		})
		tasks[i].SetAffinity(w)
	}

	for _, task := range tasks {
		task.Scheduled(context.Background(), sched)
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatalf("only %d/%d affinity-pinned tasks ran", i, n)
		}
	}

	if got := shared.Load(); got != n {
		t.Fatalf("shared atomic = %d, want %d", got, n)
	}
	for w := 0; w < numWorkers; w++ {
		want := int32(n / numWorkers)
		if got := perWorker[w].Load(); got != want {
			t.Errorf("worker %d: ran %d tasks, want %d", w, got, want)
		}
	}

	for _, task := range tasks {
		task.Release()
	}
}

// TestDeepInlineContinuationNoOverflow is Scenario F: a task that, on run,
// spawns a companion child wired to end it and returns another child as its
// inline continuation, recursing to depth 1,000,000. The companion children
// are scheduled with a context that carries no worker id, so they are
// spread round-robin across the whole pool; the only thing under test on
// the inline path itself is that it never enqueues and therefore never
// risks a deque overflow, however deep it runs.
func TestDeepInlineContinuationNoOverflow(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.NumWorkers = 4
	// Generous on purpose: this bounds the side channel of round-robin
	// companion dispatch, not the inline chain itself, which never
	// touches a deque at any depth.
	cfg.DequeCapacity = 200_000
	sched, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.Start()
	t.Cleanup(sched.Shutdown)

	const depth = 1_000_000
	var companionRuns atomic.Int64
	done := make(chan struct{})

	var build func(remaining int) *Task
	build = func(remaining int) *Task {
		if remaining == 0 {
			return NewTask("deep-leaf", func(ctx context.Context) *Task {
				close(done)
				return nil
			})
		}

		var self *Task
		self = NewTask("deep-step", func(ctx context.Context) *Task {
			companion := NewTask("deep-companion", func(ctx context.Context) *Task {
				companionRuns.Add(1)
				return nil
			})
			// Wired while self is still mid-run, i.e. strictly before
			// self's own postRun call: self cannot be Done until
			// companion also finishes.
			companion.Ends(self)
			companion.Scheduled(context.Background(), sched)
			companion.Release()
			return build(remaining - 1)
		})
		return self
	}

	root := build(depth)
	root.Scheduled(context.Background(), sched)

	select {
	case <-done:
	case <-time.After(120 * time.Second):
		t.Fatal("deep inline continuation did not complete")
	}
	if got := companionRuns.Load(); got != depth {
		t.Fatalf("companionRuns = %d, want %d", got, depth)
	}
	root.Release()
}
