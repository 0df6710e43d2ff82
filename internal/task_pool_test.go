package pftask_internal

import "testing"

func TestTaskPoolRecyclesReleasedTasks(t *testing.T) {
	pool := NewTaskPool(TASK_POOL_MAX_SIZE_UNBOUND)

	t1 := pool.get()
	t1.name = "marker"
	pool.put(t1)

	t2 := pool.get()
	if t2 != t1 {
		t.Fatal("expected the recycled struct to be handed back out")
	}
	if t2.name != "" {
		t.Fatalf("recycled task was not zeroed: name = %q", t2.name)
	}
}

func TestTaskPoolRespectsMaxSize(t *testing.T) {
	pool := NewTaskPool(1)
	pool.put(&Task{name: "a"})
	pool.put(&Task{name: "b"}) // dropped, pool already at capacity

	if pool.poolSize != 1 {
		t.Fatalf("poolSize = %d, want 1", pool.poolSize)
	}
}
