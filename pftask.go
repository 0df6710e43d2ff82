// The public face of the scheduler for the users of this package.

package pftask

import (
	"context"

	"github.com/sirupsen/logrus"

	pftask_internal "github.com/pointfrag/pftask/internal"
)

const (
	AnyWorker = pftask_internal.AnyWorker

	PriorityHigh   = pftask_internal.PriorityHigh
	PriorityNormal = pftask_internal.PriorityNormal
	PriorityLow    = pftask_internal.PriorityLow

	StateNew     = pftask_internal.StateNew
	StateReady   = pftask_internal.StateReady
	StateRunning = pftask_internal.StateRunning
	StateDone    = pftask_internal.StateDone
	StateZombie  = pftask_internal.StateZombie
)

type Task = pftask_internal.Task
type Priority = pftask_internal.Priority
type State = pftask_internal.State
type RunFunc = pftask_internal.RunFunc
type ElementFunc = pftask_internal.ElementFunc
type Scheduler = pftask_internal.Scheduler
type SchedulerConfig = pftask_internal.SchedulerConfig
type SchedulerError = pftask_internal.SchedulerError

// NewTask creates a task in state NEW. run is invoked at most once, when
// the task's to-start count reaches zero (immediately, if it is never
// wired as anyone's continuation target and Scheduled is called right
// away; being a completion target does not delay the start).
func NewTask(name string, run RunFunc) *Task {
	return pftask_internal.NewTask(name, run)
}

// NewTaskSet creates a task that fans out into numElems independent
// element executions, load-balanced across the pool via work-stealing.
func NewTaskSet(name string, numElems int, elemFn ElementFunc) *Task {
	return pftask_internal.NewTaskSet(name, numElems, elemFn)
}

// NewScheduler builds a scheduler and its worker pool from cfg (nil for
// defaults).
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	return pftask_internal.NewScheduler(cfg)
}

func DefaultSchedulerConfig() *SchedulerConfig {
	return pftask_internal.DefaultSchedulerConfig()
}

// LoadConfig loads a SchedulerConfig from a YAML file's "scheduler_config"
// section.
func LoadConfig(cfgFile string) (*SchedulerConfig, error) {
	return pftask_internal.LoadConfig(cfgFile, nil)
}

// WorkerID extracts the id of the worker dispatching the current task from
// its RunFunc/ElementFunc context, for sharding worker-local state. It is
// the idiomatic-Go stand-in for thread-local storage: every context handed
// to task bodies by this scheduler carries it. Returns AnyWorker if ctx
// was not produced by a scheduler dispatch (e.g. a bare context.Background()
// used to schedule from outside the pool).
func WorkerID(ctx context.Context) int32 {
	return pftask_internal.WorkerID(ctx)
}

// The root logger. Needed only for tests where the logger is captured (see
// pftask/testutils/log_collector.go), its actual type is obscured. Typical
// use:
//
//	tlc := pftask_testutils.NewTestLogCollect(t, pftask.GetRootLogger(), nil)
//	defer tlc.RestoreLog()
func GetRootLogger() any { return pftask_internal.RootLogger }

// NewCompLogger creates a component logger with a comp=compName field,
// consistent with the rest of the scheduler's own logging.
func NewCompLogger(comp string) *logrus.Entry {
	return pftask_internal.NewCompLogger(comp)
}

// AddCallerSrcPathPrefixToLogger registers the directory of the caller's
// own source file, moved up upNDirs levels, as a prefix stripped from
// logged source file paths. Typically called from main.init() with
// upNDirs=0 when main.go lives at the module root.
func AddCallerSrcPathPrefixToLogger(upNDirs int) {
	pftask_internal.AddCallerSrcPathPrefixToLogger(upNDirs, 1)
}
