package cellgraph

// Readable is the read surface shared by cells and derived cells.
type Readable[T any] interface {
	Value() T
	Peek() T
}

// WritableCell is a leaf producer. Setting it marks every dependent stale;
// there is no comparison unless an equality predicate was supplied at
// construction.
type WritableCell[T any] struct {
	node   Node
	value  T
	has    bool
	equals func(a, b T) bool
}

type CellOption[T any] func(*WritableCell[T])

// CellEquals installs an equality predicate; a Set whose value the predicate
// reports equal to the current one becomes a no-op.
func CellEquals[T any](equals func(a, b T) bool) CellOption[T] {
	return func(c *WritableCell[T]) {
		c.equals = equals
	}
}

// Cell creates a writable cell holding initialValue.
func Cell[T any](rs *ReactiveSystem, initialValue T, opts ...CellOption[T]) *WritableCell[T] {
	c := &WritableCell[T]{value: initialValue, has: true}
	c.node.rs = rs
	c.node.flags = flagProducer
	c.node.ref = c
	for _, opt := range opts {
		opt(c)
	}
	rs.adopt(c)
	rs.trace(OpCreate, &c.node)
	return c
}

// LazyCell creates a cell with no value yet. Reading it before the first Set
// panics with ErrUninitialized.
func LazyCell[T any](rs *ReactiveSystem, opts ...CellOption[T]) *WritableCell[T] {
	c := &WritableCell[T]{}
	c.node.rs = rs
	c.node.flags = flagProducer
	c.node.ref = c
	for _, opt := range opts {
		opt(c)
	}
	rs.adopt(c)
	rs.trace(OpCreate, &c.node)
	return c
}

// Value returns the current value and subscribes the tracking consumer.
func (c *WritableCell[T]) Value() T {
	c.mustRead()
	rs := c.node.rs
	if rs.activeSub != nil {
		rs.link(&c.node, rs.activeSub)
	}
	rs.collect(&c.node)
	rs.trace(OpGet, &c.node)
	return c.value
}

// Peek returns the current value without subscribing anything.
func (c *WritableCell[T]) Peek() T {
	c.mustRead()
	rs := c.node.rs
	rs.collect(&c.node)
	rs.trace(OpGet, &c.node)
	return c.value
}

// Set stores v and marks every dependent stale. Outside a batch the
// subscriber queue drains before Set returns, and any errors their bodies
// produced are joined into the result; the new value stays applied either
// way.
func (c *WritableCell[T]) Set(v T) error {
	if c.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	rs := c.node.rs
	if c.has && c.equals != nil && c.equals(c.value, v) {
		return nil
	}
	c.value = v
	c.has = true
	rs.trace(OpSet, &c.node)
	if c.node.subs != nil {
		rs.visitSeq++
		rs.propagate(c.node.subs, flagStale)
	}
	if rs.batchDepth == 0 {
		return rs.flush()
	}
	return nil
}

// Notify re-propagates without a value change. Soft notification is
// meaningless for a leaf producer and is a no-op; force marks every
// dependent stale as if the value had changed.
func (c *WritableCell[T]) Notify(force bool) error {
	if c.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	if !force {
		return nil
	}
	return c.node.rs.Invalidate(&c.node, true)
}

// Dispose detaches the cell. Idempotent.
func (c *WritableCell[T]) Dispose() {
	c.node.Dispose()
}

func (c *WritableCell[T]) Disposed() bool {
	return c.node.Disposed()
}

// Node exposes the graph vertex, for trace inspection and collaborators.
func (c *WritableCell[T]) Node() *Node {
	return &c.node
}

func (c *WritableCell[T]) mustRead() {
	if c.node.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	if !c.has {
		panic(ErrUninitialized)
	}
}
