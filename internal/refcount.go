package pftask_internal

import "sync/atomic"

// refCount is a simple atomic reference counter. retain/release mirror the
// acquire/release pair conventionally used around pf::Task's own ref count
// in the original scheduler; release reports whether this call dropped the
// count to zero, so the caller can run its own once-only teardown.
type refCount struct {
	n atomic.Int32
}

func (r *refCount) reset(initial int32) {
	r.n.Store(initial)
}

func (r *refCount) retain() {
	r.n.Add(1)
}

func (r *refCount) release() bool {
	return r.n.Add(-1) == 0
}

func (r *refCount) get() int32 {
	return r.n.Load()
}
