// Demo binary exercising the scheduler with a handful of representative
// task graphs: a dummy sequencing/completion chain, a fan-out task-set
// filling a shared array, and a binary recursive Fibonacci computed
// entirely via task continuations.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bgp59/logrusx"

	"github.com/pointfrag/pftask"
)

var (
	configFileArg = flag.String(
		"config",
		"pftaskdemo-config.yaml",
		"Path to the scheduler config file",
	)
	fibArg = flag.Int(
		"fib",
		20,
		"Which Fibonacci number to compute via the recursive task demo",
	)
	elemsArg = flag.Int(
		"elems",
		1000,
		"Number of elements for the task-set fan-out demo",
	)
)

func init() {
	logrusx.EnableLoggerArgs()
	pftask.AddCallerSrcPathPrefixToLogger(0)
}

var mainLog = pftask.NewCompLogger("pftaskdemo")

// dummyChain runs n tasks strictly in sequence via Starts, the simplest
// possible sequencing demo.
func dummyChain(ctx context.Context, sched *pftask.Scheduler, n int) {
	done := make(chan struct{})
	tasks := make([]*pftask.Task, n)
	for i := n - 1; i >= 0; i-- {
		idx := i
		tasks[i] = pftask.NewTask(fmt.Sprintf("dummy-%d", idx), func(ctx context.Context) *pftask.Task {
			mainLog.Infof("dummy chain: step %d/%d", idx+1, n)
			if idx == n-1 {
				close(done)
			}
			return nil
		})
		if i < n-1 {
			tasks[i].Starts(tasks[i+1])
		}
	}
	for _, t := range tasks {
		t.Scheduled(ctx, sched)
	}
	<-done
	for _, t := range tasks {
		t.Release()
	}
}

// fanOut fills a shared slice via a task-set, then signals completion
// through a Starts-wired aggregator task.
func fanOut(ctx context.Context, sched *pftask.Scheduler, n int) {
	result := make([]int, n)
	done := make(chan struct{})

	aggregate := pftask.NewTask("fanout-aggregate", func(ctx context.Context) *pftask.Task {
		sum := 0
		for _, v := range result {
			sum += v
		}
		mainLog.Infof("fan-out: %d elements, sum=%d", n, sum)
		close(done)
		return nil
	})

	fill := pftask.NewTaskSet("fanout-fill", n, func(ctx context.Context, elem int) {
		result[elem] = elem * elem
	})
	fill.Starts(aggregate)

	aggregate.Scheduled(ctx, sched)
	fill.Scheduled(ctx, sched)

	<-done
	fill.Release()
	aggregate.Release()
}

// fibonacci computes fib(n) via a binary task tree using Starts to sequence
// each Sum task behind the two children it reads from, all the way down to
// the base cases. The whole tree is wired up front and only scheduled once
// wiring is complete: Starts/Ends must never be called against a task that
// may already be running, so spawn builds an unscheduled subtree and leaves
// scheduling to the caller.
func fibonacci(ctx context.Context, sched *pftask.Scheduler, n int) int64 {
	var result int64
	done := make(chan struct{})

	var all []*pftask.Task

	var spawn func(n int, out *int64) *pftask.Task
	spawn = func(n int, out *int64) *pftask.Task {
		if n < 2 {
			t := pftask.NewTask(fmt.Sprintf("fib-%d", n), func(ctx context.Context) *pftask.Task {
				atomic.StoreInt64(out, int64(n))
				return nil
			})
			all = append(all, t)
			return t
		}

		var a, b int64
		sum := pftask.NewTask(fmt.Sprintf("fib-sum-%d", n), func(ctx context.Context) *pftask.Task {
			atomic.StoreInt64(out, a+b)
			return nil
		})

		left := spawn(n-1, &a)
		right := spawn(n-2, &b)
		left.Starts(sum)
		right.Starts(sum)

		all = append(all, sum)
		return sum
	}

	var fibN int64
	child := spawn(n, &fibN)
	doneTask := pftask.NewTask("fib-done", func(ctx context.Context) *pftask.Task {
		result = atomic.LoadInt64(&fibN)
		close(done)
		return nil
	})
	child.Starts(doneTask)
	all = append(all, doneTask)

	for _, t := range all {
		t.Scheduled(ctx, sched)
	}

	<-done
	for _, t := range all {
		t.Release()
	}
	return result
}

func main() {
	if !flag.Parsed() {
		flag.Parse()
	}

	cfg, err := pftask.LoadConfig(*configFileArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, using defaults\n", err)
		cfg = pftask.DefaultSchedulerConfig()
	}
	logrusx.ApplySetLoggerArgs(cfg.LoggerConfig)

	sched, err := pftask.NewScheduler(cfg)
	if err != nil {
		mainLog.Fatalf("scheduler: %v", err)
	}
	sched.Start()
	defer sched.Shutdown()

	ctx := context.Background()

	shutdownCh := make(chan struct{})
	go func() {
		defer close(shutdownCh)

		mainLog.Info("running dummy chain demo")
		dummyChain(ctx, sched, 5)

		mainLog.Info("running fan-out demo")
		fanOut(ctx, sched, *elemsArg)

		mainLog.Info("running fibonacci demo")
		fibN := fibonacci(ctx, sched, *fibArg)
		mainLog.Infof("fib(%d) = %d", *fibArg, fibN)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-shutdownCh:
		mainLog.Info("demos complete")
	case sig := <-sigChan:
		mainLog.Warnf("%s signal received, shutting down", sig)
	}

	// Give the scheduler a moment to drain in-flight work before Shutdown
	// forcibly cancels it.
	time.Sleep(50 * time.Millisecond)
}
