// Scheduler: owns the worker pool, the round-robin entry point for tasks
// submitted from outside any running task, and the work-stealing victim
// selection. Lifecycle and logging follow the periodic-task scheduler this
// package's config and state machine are adapted from; the dispatch model
// itself -- per-worker priority deques fed by affinity queues, with
// stealing as the load-balancing fallback -- is this package's own.

package pftask_internal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type SchedulerState int32

const (
	SchedulerStateCreated SchedulerState = iota
	SchedulerStateRunning
	SchedulerStateStopped
)

var schedulerStateNames = [...]string{"Created", "Running", "Stopped"}

func (s SchedulerState) String() string {
	if s < 0 || int(s) >= len(schedulerStateNames) {
		return "Unknown"
	}
	return schedulerStateNames[s]
}

var schedulerLog = NewCompLogger("scheduler")

// Scheduler dispatches Task objects submitted via Task.Scheduled across a
// fixed pool of worker goroutines, one priority-banded deque set per
// worker plus a per-worker affinity queue, with idle workers stealing from
// busy ones.
type Scheduler struct {
	cfg *SchedulerConfig

	workers []*worker // indices [0, NumWorkers)
	main    *worker   // the goroutine that calls Enter, index NumWorkers

	state    SchedulerState
	mu       sync.Mutex
	ctx      context.Context
	cancelFn context.CancelFunc
	wg       sync.WaitGroup

	mainInterrupt chan struct{}
	rrCounter     uint64
	rrMu          sync.Mutex
}

// NewScheduler builds a scheduler and its worker pool from cfg, logging a
// one-time host diagnostics line (CPU count, clock tick, uptime, process
// footprint) so an operator can sanity-check the pool size against the
// host it landed on. cfg may be nil, in which case DefaultSchedulerConfig
// applies.
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	cfg = CompliantSchedulerConfig(cfg)

	ctx, cancelFn := context.WithCancel(context.Background())
	sched := &Scheduler{
		cfg:           cfg,
		state:         SchedulerStateCreated,
		ctx:           ctx,
		cancelFn:      cancelFn,
		mainInterrupt: make(chan struct{}),
	}

	sched.workers = make([]*worker, cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		sched.workers[i] = newWorker(sched, int32(i), cfg.DequeCapacity, cfg.AffinityQueueCapacity)
	}
	sched.main = newWorker(sched, int32(cfg.NumWorkers), cfg.DequeCapacity, cfg.AffinityQueueCapacity)

	schedulerLog.Infof(
		"num_workers=%d deque_capacity=%d affinity_capacity=%d: %s",
		cfg.NumWorkers, cfg.DequeCapacity, cfg.AffinityQueueCapacity, HostDiagnosticsSummary(),
	)

	return sched, nil
}

func (s *Scheduler) NumWorkers() int { return len(s.workers) }

// Schedule is the entry point for code running outside of any task body
// (e.g. the goroutine that builds the initial task graph): it is
// equivalent to t.Scheduled(ctx, s), exported on the scheduler for callers
// that would rather not import the task's own method in isolation.
func (s *Scheduler) Schedule(ctx context.Context, t *Task) {
	t.Scheduled(ctx, s)
}

// dispatch routes a freshly-readied task to its destination queue:
// affinity-pinned tasks go straight to that worker's affinity queue;
// otherwise, if ctx identifies the calling worker, the task goes onto that
// worker's own deque (the common, contention-free case of a running task
// scheduling more work); otherwise it is spread round-robin across the
// pool, for submissions from outside any worker.
func (s *Scheduler) dispatch(ctx context.Context, t *Task) {
	if affinity := t.Affinity(); affinity != AnyWorker {
		w := s.workerByID(affinity)
		if w == nil {
			panicFatal(schedulerLog, errAffinityOutOfRange(affinity, len(s.workers)))
		}
		w.affinity.push(t)
		return
	}

	if wid := WorkerID(ctx); wid != AnyWorker {
		if w := s.workerByID(wid); w != nil {
			w.pushLocal(t)
			return
		}
	}

	s.workers[s.nextRoundRobin()].pushLocal(t)
}

// workerByID resolves a worker index, including the reserved "main"
// index (== NumWorkers) used while Enter is blocked in its own loop.
func (s *Scheduler) workerByID(id int32) *worker {
	switch {
	case id < 0:
		return nil
	case int(id) < len(s.workers):
		return s.workers[id]
	case int(id) == len(s.workers):
		return s.main
	default:
		return nil
	}
}

func (s *Scheduler) nextRoundRobin() int {
	s.rrMu.Lock()
	defer s.rrMu.Unlock()
	idx := int(s.rrCounter % uint64(len(s.workers)))
	s.rrCounter++
	return idx
}

// stealFor returns a task stolen from another worker's (or the main
// goroutine's, if it is inside Enter) deques, trying every priority band
// before moving to the next victim, starting from a victim chosen by the
// asking worker's own random source so that concurrent thieves don't
// pound on the same victim in lockstep.
func (s *Scheduler) stealFor(thief *worker) *Task {
	n := len(s.workers)
	start := thief.rnd.Intn(n + 1)
	for i := 0; i < n+1; i++ {
		idx := (start + i) % (n + 1)
		victim := s.main
		if idx < n {
			victim = s.workers[idx]
		}
		if victim == thief {
			continue
		}
		for band := Priority(0); band < numPriorities; band++ {
			if t := victim.deques[band].steal(); t != nil {
				return t
			}
		}
	}
	return nil
}

// Start launches the worker pool's goroutines. It is a no-op (with a
// warning) if the scheduler is not in the Created state.
func (s *Scheduler) Start() {
	s.mu.Lock()
	canStart := s.state == SchedulerStateCreated
	if canStart {
		s.state = SchedulerStateRunning
	}
	s.mu.Unlock()

	if !canStart {
		schedulerLog.Warnf("scheduler can only be started from %q state", SchedulerStateCreated)
		return
	}

	schedulerLog.Info("starting worker pool")
	for _, w := range s.workers {
		s.wg.Add(1)
		go w.loop()
	}
}

// Enter runs the calling goroutine as an additional worker, participating
// in dispatch and theft like any pool member, until InterruptMain is
// called or the scheduler is shut down. This lets the goroutine that built
// the initial task graph stay useful instead of blocking on a wait group.
func (s *Scheduler) Enter() {
	schedulerLog.Info("main goroutine entering as worker")
	defer schedulerLog.Info("main goroutine left the worker pool")

	backoff := s.cfg.StealBackoffMin
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.mainInterrupt:
			return
		default:
		}

		t := s.main.nextReady()
		if t == nil {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > s.cfg.StealBackoffMax {
				backoff = s.cfg.StealBackoffMax
			}
			continue
		}
		backoff = s.cfg.StealBackoffMin
		s.main.execute(t)
	}
}

// InterruptMain causes a blocked Enter call to return. Safe to call
// multiple times or before Enter is ever called.
func (s *Scheduler) InterruptMain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.mainInterrupt:
		// already interrupted
	default:
		close(s.mainInterrupt)
	}
}

// Shutdown stops the worker pool and waits for every worker goroutine to
// return. It does not implicitly call InterruptMain; callers using Enter
// should call InterruptMain (or rely on Shutdown's context cancellation,
// which Enter also observes) as appropriate.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	alreadyStopped := s.state == SchedulerStateStopped
	s.state = SchedulerStateStopped
	s.mu.Unlock()

	if alreadyStopped {
		schedulerLog.Warn("scheduler already stopped")
		return
	}

	schedulerLog.Info("stopping scheduler")
	s.cancelFn()
	s.wg.Wait()
	schedulerLog.Info("scheduler stopped")
}

func (s *Scheduler) String() string {
	return fmt.Sprintf("Scheduler{workers=%d, state=%s}", len(s.workers), s.state)
}
