package cellgraph

import "reflect"

// DerivedCell is a cached computation over whatever its function reads. It
// is created stale and computes on first read; after that it only recomputes
// when a confirmed upstream change reaches it, and only propagates further
// when the recomputed value differs from the cached one.
type DerivedCell[T any] struct {
	node   Node
	value  T
	has    bool
	getter func(prev T, ok bool) T
	equals func(a, b T) bool
}

type DerivedOption[T any] func(*DerivedCell[T])

// DerivedEquals replaces the change comparison. The default is
// reflect.DeepEqual.
func DerivedEquals[T any](equals func(a, b T) bool) DerivedOption[T] {
	return func(d *DerivedCell[T]) {
		d.equals = equals
	}
}

// Derived creates a cached computation.
func Derived[T any](rs *ReactiveSystem, fn func() T, opts ...DerivedOption[T]) *DerivedCell[T] {
	return newDerived(rs, func(T, bool) T { return fn() }, opts)
}

// DerivedWithPrevious creates a cached computation whose function receives
// the previously cached value, with ok false on the first run.
func DerivedWithPrevious[T any](rs *ReactiveSystem, fn func(prev T, ok bool) T, opts ...DerivedOption[T]) *DerivedCell[T] {
	return newDerived(rs, fn, opts)
}

func newDerived[T any](rs *ReactiveSystem, fn func(T, bool) T, opts []DerivedOption[T]) *DerivedCell[T] {
	d := &DerivedCell[T]{getter: fn}
	d.node.rs = rs
	d.node.flags = flagProducer | flagStale
	d.node.ref = d
	for _, opt := range opts {
		opt(d)
	}
	rs.adopt(d)
	rs.trace(OpCreate, &d.node)
	return d
}

// Value resolves staleness if needed, subscribes the tracking consumer and
// returns the cached result.
func (d *DerivedCell[T]) Value() T {
	d.mustRead()
	rs := d.node.rs
	if d.node.flags&(flagStale|flagPending) != 0 {
		rs.resolveNode(&d.node, d)
	}
	if rs.activeSub != nil {
		rs.link(&d.node, rs.activeSub)
	}
	rs.collect(&d.node)
	rs.trace(OpGet, &d.node)
	return d.value
}

// Peek resolves staleness like Value but subscribes nothing.
func (d *DerivedCell[T]) Peek() T {
	d.mustRead()
	rs := d.node.rs
	if d.node.flags&(flagStale|flagPending) != 0 {
		rs.resolveNode(&d.node, d)
	}
	rs.collect(&d.node)
	rs.trace(OpGet, &d.node)
	return d.value
}

// PeekCached returns the cached value as-is, never running the function. The
// second result is false until the first computation has happened.
func (d *DerivedCell[T]) PeekCached() (T, bool) {
	if d.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	return d.value, d.has
}

// Notify re-propagates. Force marks every dependent stale regardless of the
// cached value; soft re-resolves pendingness and propagates only if the
// recompute actually produced a different value.
func (d *DerivedCell[T]) Notify(force bool) error {
	if d.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	rs := d.node.rs
	return rs.Invalidate(&d.node, force)
}

// Dispose detaches the derived cell from both sides of the graph. Idempotent.
func (d *DerivedCell[T]) Dispose() {
	d.node.Dispose()
}

func (d *DerivedCell[T]) Disposed() bool {
	return d.node.Disposed()
}

// Node exposes the graph vertex, for trace inspection and collaborators.
func (d *DerivedCell[T]) Node() *Node {
	return &d.node
}

func (d *DerivedCell[T]) mustRead() {
	if d.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	if d.node.flags&flagRunning != 0 {
		panic(ErrCycle)
	}
}

// update re-runs the computation under tracking and reports whether the
// result differs from the cache. A panicking getter or comparator unwinds
// with the node still stale, so the next read retries instead of serving
// garbage.
func (d *DerivedCell[T]) update() bool {
	rs := d.node.rs
	prevSub := rs.activeSub
	rs.activeSub = &d.node
	rs.startTracking(&d.node)
	completed := false
	defer func() {
		rs.activeSub = prevSub
		rs.endTracking(&d.node)
		if !completed {
			d.node.flags |= flagStale
		}
	}()

	oldValue := d.value
	newValue := d.getter(oldValue, d.has)
	changed := !d.has || !d.equal(oldValue, newValue)
	d.value = newValue
	d.has = true
	completed = true
	return changed
}

func (d *DerivedCell[T]) equal(a, b T) bool {
	if d.equals != nil {
		return d.equals(a, b)
	}
	return reflect.DeepEqual(a, b)
}

func (d *DerivedCell[T]) previous() (any, bool) {
	return d.value, d.has
}

type previouser interface {
	previous() (any, bool)
}

// Previous returns the previously cached value of the derived cell that is
// currently recomputing, with ok false on its first run. Calling it outside
// an active recompute panics with ErrNotComputing.
func Previous[T any](rs *ReactiveSystem) (T, bool) {
	var zero T
	if rs.activeSub == nil {
		panic(ErrNotComputing)
	}
	p, ok := rs.activeSub.ref.(previouser)
	if !ok {
		panic(ErrNotComputing)
	}
	v, has := p.previous()
	if !has {
		return zero, false
	}
	return v.(T), true
}

// WritableDerivedCell pairs a derived computation with a setter that pushes
// writes back to the underlying cells. Setting it never recomputes anything
// by itself; the write lands upstream and flows back down like any other.
type WritableDerivedCell[T any] struct {
	DerivedCell[T]
	setter func(T)
}

// WritableDerived creates a derived cell with write-through behavior.
func WritableDerived[T any](rs *ReactiveSystem, get func() T, set func(T), opts ...DerivedOption[T]) *WritableDerivedCell[T] {
	w := &WritableDerivedCell[T]{setter: set}
	w.getter = func(T, bool) T { return get() }
	w.node.rs = rs
	w.node.flags = flagProducer | flagStale
	w.node.ref = w
	for _, opt := range opts {
		opt(&w.DerivedCell)
	}
	rs.adopt(w)
	rs.trace(OpCreate, &w.node)
	return w
}

// Set hands v to the setter inside a batch, so several upstream writes
// collapse into one flush.
func (w *WritableDerivedCell[T]) Set(v T) error {
	if w.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	return w.node.rs.Batch(func() error {
		w.setter(v)
		return nil
	})
}
