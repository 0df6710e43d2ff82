// Task-set fan-out: a single task object that executes N indexed elements.
// Once dispatched, it claims and runs one element per turn and, while
// elements remain, re-enqueues itself so that idle workers can steal
// further claims and run elements in parallel with each other -- the
// "self re-enqueueing task" the element loop is built from.

package pftask_internal

import (
	"context"
	"sync/atomic"
)

type taskSetState struct {
	elemFn ElementFunc
	// remaining counts down from numElems. Each claim performs an
	// old-value-returning decrement: old := remaining.Add(-1) + 1; if
	// old > 0 the claimed index is old-1, otherwise the range is already
	// exhausted and this turn does no work. This is the Go rendering of
	// the atomic fetch-and-subtract the original recommends, since Go's
	// atomic.Int32.Add only returns the new value.
	remaining atomic.Int32
}

// NewTaskSet creates a task-set task in state NEW. elemFn is invoked
// exactly once per index in [0, numElems), in no guaranteed order,
// potentially from several workers at once. to-end is initialized to
// numElems, one per element still owed before the task-set can be
// considered DONE; to-start behaves exactly as for a plain task.
func NewTaskSet(name string, numElems int, elemFn ElementFunc) *Task {
	t := NewTask(name, nil)
	t.taskSet = &taskSetState{elemFn: elemFn}
	t.taskSet.remaining.Store(int32(numElems))
	t.toEnd.Store(int32(numElems))
	return t
}

// runTaskSet claims at most one element index and executes it. If the
// range is not yet exhausted after the claim, the task re-retains itself
// and is handed back to the scheduler so that any idle or stealing worker
// -- including this one, on its next turn -- may claim the next element.
// It never returns an inline continuation: each claim is its own
// independent dispatch, which is what allows multiple workers to execute
// elements of the same task-set concurrently.
func (t *Task) runTaskSet(ctx context.Context) *Task {
	old := t.taskSet.remaining.Add(-1) + 1
	if old <= 0 {
		// Lost the race for the last element against another copy of this
		// same dispatch; nothing claimed, nothing to complete.
		return nil
	}
	elem := int(old - 1)
	t.taskSet.elemFn(ctx, elem)
	if old > 1 {
		t.refs.retain()
		t.state.Store(int32(StateReady))
		t.sched.dispatch(ctx, t)
	}
	t.postRun(ctx)
	return nil
}
