// Fatal error taxonomy for the scheduler.
//
// Per spec these are programming errors, not runtime conditions: they are
// raised as panics from the goroutine that detected them, caught once at
// the top of the owning dispatch loop, logged with the component logger,
// and re-panicked so the process aborts. There is no per-task recovery.

package pftask_internal

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type SchedulerError struct {
	Kind string
	Msg  string
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newSchedulerError(kind, format string, args ...any) *SchedulerError {
	return &SchedulerError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// panicFatal logs via the given component logger, then panics with err so
// that the caller's recover-and-abort wrapper can unwind the goroutine.
func panicFatal(log *logrus.Entry, err *SchedulerError) {
	log.Errorf("%s", err.Error())
	panic(err)
}

func errQueueOverflow(worker int32, band Priority, capacity int) *SchedulerError {
	return newSchedulerError(
		"QueueOverflow",
		"worker %d: priority band %s: deque at capacity %d", worker, band, capacity,
	)
}

func errDoubleSchedule(name string) *SchedulerError {
	return newSchedulerError("DoubleSchedule", "task %q: scheduled() called more than once", name)
}

func errUseAfterEnd(name string) *SchedulerError {
	return newSchedulerError("UseAfterEnd", "task %q: starts/ends wired after to-end reached zero", name)
}

func errAffinityOutOfRange(worker int32, numWorkers int) *SchedulerError {
	return newSchedulerError(
		"AffinityOutOfRange", "worker %d: out of range, scheduler has %d workers", worker, numWorkers,
	)
}

