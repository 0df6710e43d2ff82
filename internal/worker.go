// Per-worker dispatch loop: affinity queue first, then the worker's own
// priority deques (HIGH, NORMAL, LOW), then stealing from other workers'
// deques round-robin, backing off briefly when nothing is found anywhere.
// Mirrors the pseudocode from the scheduling loop this package's tests are
// built against, rendered as goroutines instead of OS threads pinned via
// thread-local storage.

package pftask_internal

import (
	"context"
	"math/rand"
	"time"
)

var workerLog = NewCompLogger("worker")

type workerIdCtxKey struct{}

// WorkerID extracts the id of the worker whose dispatch loop is running
// the current task, for use by RunFunc/ElementFunc bodies that want to
// shard per-worker state (e.g. a scratch buffer per worker). Returns
// AnyWorker if ctx was not produced by this scheduler (e.g. a caller-
// supplied context.Background() used to schedule from outside the pool).
func WorkerID(ctx context.Context) int32 {
	id, ok := ctx.Value(workerIdCtxKey{}).(int32)
	if !ok {
		return AnyWorker
	}
	return id
}

func withWorkerID(parent context.Context, id int32) context.Context {
	return context.WithValue(parent, workerIdCtxKey{}, id)
}

type worker struct {
	id       int32
	sched    *Scheduler
	deques   [numPriorities]*taskDeque
	affinity *affinityQueue
	ctx      context.Context
	rnd      *rand.Rand
}

func newWorker(sched *Scheduler, id int32, dequeCapacity, affinityCapacity int) *worker {
	w := &worker{
		id:       id,
		sched:    sched,
		affinity: newAffinityQueue(id, affinityCapacity),
		ctx:      withWorkerID(sched.ctx, id),
		rnd:      rand.New(rand.NewSource(int64(id) + 1)),
	}
	for band := Priority(0); band < numPriorities; band++ {
		w.deques[band] = newTaskDeque(id, band, dequeCapacity)
	}
	return w
}

// pushLocal places t on this worker's own deque for its priority band.
// Called both for tasks dispatched from within this worker's own running
// task, and round-robin for tasks dispatched from outside the pool.
func (w *worker) pushLocal(t *Task) {
	w.deques[t.Priority()].pushLocal(t)
}

// nextReady returns the next task this worker should run, or nil if the
// scheduler has nothing ready anywhere at the moment.
func (w *worker) nextReady() *Task {
	if t := w.affinity.pop(); t != nil {
		return t
	}
	for band := Priority(0); band < numPriorities; band++ {
		if t := w.deques[band].popLocal(); t != nil {
			return t
		}
	}
	return w.sched.stealFor(w)
}

func (w *worker) loop() {
	defer w.sched.wg.Done()

	workerLog.Infof("worker %d: started", w.id)
	defer workerLog.Infof("worker %d: stopped", w.id)

	backoff := w.sched.cfg.StealBackoffMin
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		t := w.nextReady()
		if t == nil {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > w.sched.cfg.StealBackoffMax {
				backoff = w.sched.cfg.StealBackoffMax
			}
			continue
		}
		backoff = w.sched.cfg.StealBackoffMin

		w.execute(t)
	}
}

// execute runs t and its chain of inline continuations, recovering from
// any *SchedulerError panic raised during the chain: it is logged once
// more at the point of capture (with the worker id attached) and
// re-panicked so the process aborts, per the fatal-error taxonomy in
// errors.go. A plain (non-SchedulerError) panic from user task code is
// left to propagate and crash the goroutine, since the scheduler itself
// makes no attempt to sandbox user errors.
func (w *worker) execute(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			if schedErr, ok := r.(*SchedulerError); ok {
				workerLog.Errorf("worker %d: fatal: %s", w.id, schedErr.Error())
			}
			panic(r)
		}
	}()

	for t != nil {
		next := t.run(w.ctx)
		t.Release()
		t = next
	}
}
