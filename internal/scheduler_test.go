package pftask_internal

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerRoundRobinDispatchFromOutsidePool(t *testing.T) {
	sched := newTestScheduler(t, 3)

	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		task := NewTask("rr", func(ctx context.Context) *Task {
			done <- struct{}{}
			return nil
		})
		task.Scheduled(context.Background(), sched)
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d/10 tasks ran", i)
		}
	}
}

func TestSchedulerWorkStealingDrainsBusyWorker(t *testing.T) {
	sched := newTestScheduler(t, 4)

	const n = 200
	done := make(chan struct{}, n)
	root := NewTask("root", func(ctx context.Context) *Task {
		// Every child is affinity-free and dispatched from root's own
		// context, so they all land on this same worker's local deque;
		// the other workers must steal to drain it.
		for i := 0; i < n; i++ {
			t := NewTask("child", func(ctx context.Context) *Task {
				done <- struct{}{}
				return nil
			})
			t.Scheduled(ctx, sched)
		}
		return nil
	})
	root.Scheduled(context.Background(), sched)

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d/%d children ran, work-stealing may be stuck", i, n)
		}
	}
	root.Release()
}

func TestSchedulerShutdownIsIdempotent(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.NumWorkers = 1
	sched, err := NewScheduler(cfg)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.Start()
	sched.Shutdown()
	sched.Shutdown() // must not panic or block
}

func TestEnterAndInterruptMain(t *testing.T) {
	sched := newTestScheduler(t, 1)

	done := make(chan struct{})
	task := NewTask("main-task", func(ctx context.Context) *Task {
		close(done)
		return nil
	})
	task.Scheduled(context.Background(), sched)

	go func() {
		<-done
		sched.InterruptMain()
	}()

	finished := make(chan struct{})
	go func() {
		sched.Enter()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Enter did not return after InterruptMain")
	}
	task.Release()
}
