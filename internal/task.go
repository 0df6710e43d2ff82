// Task object, state machine and dependency-wiring protocol.
//
// Mirrors the shape of pf::Task (see _examples/original_source's
// src/sys/tasking.hpp): a run function, a to-start/to-end pair of
// dependency counters and, on completion, the resolution of at most one
// continuation target and at most one completion target. See package doc
// in scheduler.go for the overall architecture.

package pftask_internal

import (
	"context"
	"sync/atomic"
)

// AnyWorker is the affinity sentinel meaning "dispatchable on any worker".
const AnyWorker int32 = -1

type Priority int8

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
	numPriorities
)

var priorityNames = [numPriorities]string{"HIGH", "NORMAL", "LOW"}

func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNames) {
		return "UNKNOWN"
	}
	return priorityNames[p]
}

type State int32

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateDone
	StateZombie
)

var stateNames = [...]string{"NEW", "READY", "RUNNING", "DONE", "ZOMBIE"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// RunFunc is a task's unit of work. It receives the context the dispatching
// worker set up (see pftask.WorkerID) and may return a follow-up task to be
// executed inline, without re-queueing (spec's "tail-call optimization").
type RunFunc func(ctx context.Context) *Task

// ElementFunc is the per-element callback of a task-set (see taskset.go).
type ElementFunc func(ctx context.Context, elem int)

var taskLog = NewCompLogger("task")

// Task is the central scheduling unit. Zero value is not usable; construct
// via NewTask/NewTaskSet.
type Task struct {
	name string

	runFn RunFunc

	// Task-set fan-out, nil for a plain task (see taskset.go).
	taskSet *taskSetState

	toStart atomic.Int32
	toEnd   atomic.Int32

	// scheduledOnce guards against a second call to Scheduled(); spec's
	// sign-bit sentinel is replaced here by an explicit flag, since packing
	// a "scheduled at least once" bit into a signed counter is a C idiom,
	// not a Go one.
	scheduledOnce atomic.Bool

	// Fixed at wiring time (before scheduling), per spec's immutability
	// invariant. Not guarded by an atomic: wiring happens only before
	// Scheduled() is called on either side, i.e. single-threaded w.r.t.
	// this task by construction.
	continuation *Task
	completion   *Task

	affinity atomic.Int32
	priority Priority

	state atomic.Int32

	refs refCount

	sched *Scheduler
}

// NewTask creates a task in state NEW with to-start and to-end both
// initialized to 1, per spec: the caller holds the "not yet scheduled"
// start, and the run itself is the one completion dependency. The returned
// Task carries the caller's reference; release it with Release() once the
// caller no longer needs to hold it directly (e.g. right after Scheduled(),
// if the caller does not also need to wait on it).
func NewTask(name string, run RunFunc) *Task {
	t := acquireTask()
	t.name = name
	t.runFn = run
	t.taskSet = nil
	t.toStart.Store(1)
	t.toEnd.Store(1)
	t.scheduledOnce.Store(false)
	t.continuation = nil
	t.completion = nil
	t.affinity.Store(AnyWorker)
	t.priority = PriorityNormal
	t.state.Store(int32(StateNew))
	t.refs.reset(1)
	t.sched = nil
	return t
}

func (t *Task) Name() string { return t.name }

func (t *Task) State() State { return State(t.state.Load()) }

func (t *Task) Affinity() int32 { return t.affinity.Load() }

func (t *Task) Priority() Priority { return t.priority }

// SetAffinity pins the task to a specific worker index, or AnyWorker. Must
// be called before Scheduled().
func (t *Task) SetAffinity(worker int32) { t.affinity.Store(worker) }

// SetPriority sets the dispatch priority band. Must be called before
// Scheduled().
func (t *Task) SetPriority(p Priority) { t.priority = p }

// Retain adds a user-held reference.
func (t *Task) Retain() { t.refs.retain() }

// Release drops a user-held reference. When the count reaches zero the
// task transitions to ZOMBIE and is returned to the recycling pool; no
// code may run on the task thereafter.
func (t *Task) Release() {
	if t.refs.release() {
		t.zombify()
	}
}

func (t *Task) zombify() {
	t.state.Store(int32(StateZombie))
	releaseTask(t)
}

// Starts registers other as this task's continuation target: "other
// cannot begin until I have finished." At most one continuation target is
// allowed; must be called on both tasks before either is scheduled.
func (t *Task) Starts(other *Task) {
	if t.toEnd.Load() == 0 {
		panicFatal(taskLog, errUseAfterEnd(t.name))
	}
	t.continuation = other
	other.refs.retain()
	other.toStart.Add(1)
}

// Ends registers other as this task's completion target: "other cannot
// complete until I have finished." At most one completion target is
// allowed; must be called on both tasks before either is scheduled. The one
// exception is wiring against the currently-running task itself, e.g. a
// child created and ends(self)-wired from inside self's own RunFunc: self
// is mid-run at that point, so its postRun has not executed yet and cannot
// race with the wiring.
func (t *Task) Ends(other *Task) {
	if t.toEnd.Load() == 0 {
		panicFatal(taskLog, errUseAfterEnd(t.name))
	}
	t.completion = other
	other.refs.retain()
	other.toEnd.Add(1)
}

// Scheduled marks the task ready for dispatch under the given scheduler.
// ctx should be the context passed to the enclosing RunFunc/ElementFunc
// when scheduling from within another task (so the fast, contention-free
// local-deque path is taken); pass context.Background(), or any context
// not carrying a worker id, when scheduling from outside the pool (e.g.
// before Enter, or from an unrelated goroutine), which routes the task
// round-robin instead. Decrements to-start by one; if it reaches zero the
// task transitions NEW->READY and is handed off immediately. Must not be
// called more than once per task.
func (t *Task) Scheduled(ctx context.Context, sched *Scheduler) {
	if !t.scheduledOnce.CompareAndSwap(false, true) {
		panicFatal(taskLog, errDoubleSchedule(t.name))
	}
	t.sched = sched
	if t.toStart.Add(-1) == 0 {
		t.enqueue(ctx)
	}
}

// enqueue transitions NEW->READY and routes the task to its affinity
// queue or a worker's deque. A task-set is fanned out onto up to
// NumWorkers queue entries right away (each an independent claim stream
// that keeps re-dispatching itself in runTaskSet as long as elements
// remain, see taskset.go), so that its elements can genuinely execute on
// more than one worker concurrently instead of serializing through a
// single self-repost.
func (t *Task) enqueue(ctx context.Context) {
	t.state.Store(int32(StateReady))

	if t.taskSet != nil {
		fanout := t.sched.NumWorkers()
		if remaining := int(t.taskSet.remaining.Load()); remaining < fanout {
			fanout = remaining
		}
		if fanout < 1 {
			fanout = 1
		}
		for i := 0; i < fanout; i++ {
			t.refs.retain()
			t.sched.dispatch(ctx, t)
		}
		return
	}

	t.refs.retain() // scheduler-held reference while queued/running
	t.sched.dispatch(ctx, t)
}

// run executes the task body once, transitioning READY->RUNNING(->DONE),
// and returns the inline follow-up task, if any, for the dispatch loop to
// execute next without a queue round-trip. The returned task, like the
// receiver itself, always carries its own scheduler-held reference:
//
//	for t != nil {
//	    next := t.run(ctx)
//	    t.Release()
//	    t = next
//	}
//
// Task-set fan-out tasks manage their own completion bookkeeping and
// re-dispatch (see runTaskSet in taskset.go) since more than one worker may
// be executing claims against the same task concurrently; postRun is called
// unconditionally for plain tasks but only once per claimed element for
// task-sets.
func (t *Task) run(ctx context.Context) *Task {
	t.state.Store(int32(StateRunning))
	if t.taskSet != nil {
		return t.runTaskSet(ctx)
	}
	var next *Task
	if t.runFn != nil {
		next = t.runFn(ctx)
	}
	t.postRun(ctx)
	return next
}

// postRun implements spec's run-completion protocol (§4.1): decrement
// to-end; if zero, release the continuation first (sequencing), then walk
// the completion chain (aggregation) iteratively. The scheduler-held
// reference taken at enqueue time is not released here: it belongs to
// whichever dispatch loop iteration actually ran cur (see worker.execute),
// and is released there exactly once, regardless of whether that run
// happened to be the one driving to-end to zero.
func (t *Task) postRun(ctx context.Context) {
	cur := t
	for {
		var next *Task
		if cur.toEnd.Add(-1) == 0 {
			cur.state.Store(int32(StateDone))

			cont := cur.continuation
			cur.continuation = nil
			if cont != nil {
				if cont.toStart.Add(-1) == 0 {
					cont.enqueue(ctx)
				}
				cont.Release() // release the back-pointer reference
			}

			next = cur.completion
			cur.completion = nil
		}
		if cur != t {
			// Release the back-pointer reference taken by Ends, only once
			// cur is no longer touched.
			cur.Release()
		}
		if next == nil {
			break
		}
		cur = next
	}
}
