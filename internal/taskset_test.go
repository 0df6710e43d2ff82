package pftask_internal

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskSetVisitsEveryElementExactlyOnce(t *testing.T) {
	sched := newTestScheduler(t, 4)

	const n = 500
	var visits [n]atomic.Int32
	done := make(chan struct{})

	agg := NewTask("agg", func(ctx context.Context) *Task {
		close(done)
		return nil
	})

	fill := NewTaskSet("fill", n, func(ctx context.Context, elem int) {
		visits[elem].Add(1)
	})
	fill.Starts(agg)

	ctx := context.Background()
	agg.Scheduled(ctx, sched)
	fill.Scheduled(ctx, sched)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task-set did not complete")
	}

	for i, v := range visits {
		if got := v.Load(); got != 1 {
			t.Fatalf("element %d visited %d times, want 1", i, got)
		}
	}
	fill.Release()
	agg.Release()
}

func TestTaskSetSingleElement(t *testing.T) {
	sched := newTestScheduler(t, 2)

	var visited atomic.Bool
	done := make(chan struct{})

	agg := NewTask("agg", func(ctx context.Context) *Task {
		close(done)
		return nil
	})
	only := NewTaskSet("only", 1, func(ctx context.Context, elem int) {
		if elem != 0 {
			t.Errorf("unexpected elem %d", elem)
		}
		visited.Store(true)
	})
	only.Starts(agg)

	ctx := context.Background()
	agg.Scheduled(ctx, sched)
	only.Scheduled(ctx, sched)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("single-element task-set did not complete")
	}
	if !visited.Load() {
		t.Fatal("element was never visited")
	}
	only.Release()
	agg.Release()
}
