// Package cellgraph is a fine-grained reactive dependency-graph runtime.
// Cells hold values, derived cells compute lazily from whatever they read,
// and effects re-run when the values under them change. Propagation is
// glitch-free: a consumer re-runs at most once per batch and only after a
// real upstream change is confirmed.
//
// Everything lives on an explicit *ReactiveSystem and runs on a single
// cooperative goroutine; there is no internal locking.
package cellgraph

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
)

type ReactiveSystem struct {
	activeSub  *Node
	scopes     []*Scope
	batchDepth int
	pauseStack []*Node

	queue     []*Node
	queueHead int

	passSeq  uint64 // tracking runs
	visitSeq uint64 // propagation passes

	tracer TraceFunc

	collectSet   mapset.Set[*Node] // non-nil while a NotifyAll body runs
	collectOrder []*Node
}

type SystemOption func(*ReactiveSystem)

// WithTrace installs a debug instrumentation hook. When absent the engine
// pays a single nil check per operation.
func WithTrace(fn TraceFunc) SystemOption {
	return func(rs *ReactiveSystem) {
		rs.tracer = fn
	}
}

func NewReactiveSystem(opts ...SystemOption) *ReactiveSystem {
	rs := &ReactiveSystem{}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// StartBatch raises the batch depth. Writes made while the depth is above
// zero mark and queue as usual but the queue is only drained when the
// outermost batch exits.
func (rs *ReactiveSystem) StartBatch() {
	rs.batchDepth++
}

// EndBatch lowers the batch depth and drains the queue when it reaches zero,
// returning the joined errors of every subscriber that failed.
func (rs *ReactiveSystem) EndBatch() error {
	if rs.batchDepth == 0 {
		panic(ErrNotBatching)
	}
	rs.batchDepth--
	if rs.batchDepth == 0 {
		return rs.flush()
	}
	return nil
}

// Batch runs fn with the batch depth raised, so any number of writes inside
// collapse into a single flush at the end. Batches nest; only the outermost
// exit drains. The flush still happens when fn panics.
func (rs *ReactiveSystem) Batch(fn func() error) (err error) {
	rs.StartBatch()
	defer func() {
		err = errors.Join(err, rs.EndBatch())
	}()
	return fn()
}

// BatchDepth reports the current batch nesting depth.
func (rs *ReactiveSystem) BatchDepth() int {
	return rs.batchDepth
}

// Flush drains the subscriber queue immediately, regardless of batch depth.
func (rs *ReactiveSystem) Flush() error {
	return rs.flush()
}

// PauseTracking suspends dependency capture until ResumeTracking, so reads
// in between do not subscribe the currently running consumer.
func (rs *ReactiveSystem) PauseTracking() {
	rs.pauseStack = append(rs.pauseStack, rs.activeSub)
	rs.activeSub = nil
}

func (rs *ReactiveSystem) ResumeTracking() {
	lastIdx := len(rs.pauseStack) - 1
	rs.activeSub = rs.pauseStack[lastIdx]
	rs.pauseStack = rs.pauseStack[:lastIdx]
}

// Untracked runs fn with dependency capture paused and returns its result.
func Untracked[T any](rs *ReactiveSystem, fn func() T) T {
	rs.PauseTracking()
	defer rs.ResumeTracking()
	return fn()
}

// Trigger reads producers inside fn through a throwaway consumer, forcing
// staleness resolution without leaving any subscription behind.
func Trigger(rs *ReactiveSystem, fn func()) {
	scratch := &Node{rs: rs}
	prevSub := rs.activeSub
	rs.activeSub = scratch
	rs.startTracking(scratch)
	defer func() {
		rs.activeSub = prevSub
		rs.endTracking(scratch)
		for scratch.deps != nil {
			rs.unlink(scratch.deps)
		}
	}()
	fn()
}

// NotifyAll runs fn, then force-notifies every producer fn read, in read
// order, inside one implicit batch. Useful after mutating shared state that
// several cells merely point into. A panicking fn unwinds with the previous
// collection state restored and notifies nothing.
func NotifyAll(rs *ReactiveSystem, fn func()) error {
	order := rs.collectReads(fn)

	return rs.Batch(func() error {
		for _, n := range order {
			if n.flags&flagDisposed != 0 {
				continue
			}
			if err := rs.Invalidate(n, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// collectReads runs fn with a fresh read collector installed and returns the
// producers fn read, restoring the enclosing collector even when fn panics.
func (rs *ReactiveSystem) collectReads(fn func()) []*Node {
	prevSet, prevOrder := rs.collectSet, rs.collectOrder
	rs.collectSet = mapset.NewThreadUnsafeSet[*Node]()
	rs.collectOrder = nil
	defer func() {
		rs.collectSet, rs.collectOrder = prevSet, prevOrder
	}()
	fn()
	return rs.collectOrder
}

// collect records a producer read for an enclosing NotifyAll.
func (rs *ReactiveSystem) collect(n *Node) {
	if rs.collectSet == nil {
		return
	}
	if rs.collectSet.Add(n) {
		rs.collectOrder = append(rs.collectOrder, n)
	}
}

// flush drains the queue in FIFO order. Entries disposed after being queued
// are skipped. A failing subscriber does not stop the drain; all errors are
// joined and returned to whichever call triggered the flush.
func (rs *ReactiveSystem) flush() error {
	var errs []error
	for rs.queueHead < len(rs.queue) {
		c := rs.queue[rs.queueHead]
		rs.queue[rs.queueHead] = nil
		rs.queueHead++
		c.flags &^= flagQueued
		if c.flags&flagDisposed != 0 {
			continue
		}
		r, ok := c.ref.(runner)
		if !ok {
			continue
		}
		if err := rs.notify(c, r); err != nil {
			errs = append(errs, err)
		}
	}
	rs.queue = rs.queue[:0]
	rs.queueHead = 0
	return errors.Join(errs...)
}

// notify settles a queued consumer: confirmed stale runs, speculative
// staleness that does not confirm is cleared without running. A consumer with
// a custom scheduler is offered the confirmed re-run instead, once; while
// that offer is outstanding further queue entries for it are no-ops.
func (rs *ReactiveSystem) notify(c *Node, r runner) error {
	if c.flags&flagDeferred != 0 {
		return nil
	}
	if !rs.settle(c) {
		return nil
	}
	if s, ok := c.ref.(scheduled); ok && s.reschedule() {
		if c.flags&(flagStale|flagPending) != 0 {
			c.flags |= flagDeferred
		}
		return nil
	}
	return r.run()
}

// settle reports whether a consumer is due to re-run. Pending staleness that
// does not confirm is cleared here.
func (rs *ReactiveSystem) settle(c *Node) bool {
	flags := c.flags
	if flags&flagStale != 0 {
		return true
	}
	if flags&flagPending == 0 {
		return false
	}
	if !rs.confirmStale(c) {
		c.flags &^= flagPending
		return false
	}
	return true
}

// RegisterNode creates a producer node for an external reactive type. The
// update hook resolves staleness after a force notification reaches the node
// indirectly; a nil hook keeps the default behavior of always reporting a
// change. The caller wires reads through Track and writes through Invalidate.
func (rs *ReactiveSystem) RegisterNode(update func() bool) *Node {
	c := &customNode{updateFn: update}
	c.node.rs = rs
	c.node.flags = flagProducer
	c.node.ref = c
	rs.adopt(&c.node)
	rs.trace(OpCreate, &c.node)
	return &c.node
}

type customNode struct {
	node     Node
	updateFn func() bool
}

func (c *customNode) update() bool {
	if c.updateFn == nil {
		return true
	}
	return c.updateFn()
}

// Track records a read of n: staleness is resolved first, then n is linked
// under the currently tracking consumer, if any. Panics with ErrNotProducer
// when n belongs to a consumer-only node such as an effect or watcher.
func (rs *ReactiveSystem) Track(n *Node) {
	if n.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	if n.flags&flagProducer == 0 {
		panic(ErrNotProducer)
	}
	if n.flags&(flagStale|flagPending) != 0 {
		if u, ok := n.ref.(updater); ok {
			rs.resolveNode(n, u)
		}
	}
	if rs.activeSub != nil {
		rs.link(n, rs.activeSub)
	}
	rs.collect(n)
	rs.trace(OpGet, n)
}

// Invalidate notifies n's subscribers. Force marks them stale
// unconditionally; a soft invalidation re-resolves the node's own staleness
// and only propagates if its update confirmed a change. Outside a batch the
// queue drains before Invalidate returns. Panics with ErrNotProducer when n
// belongs to a consumer-only node.
func (rs *ReactiveSystem) Invalidate(n *Node, force bool) error {
	if n.flags&flagDisposed != 0 {
		panic(ErrDisposed)
	}
	if n.flags&flagProducer == 0 {
		panic(ErrNotProducer)
	}
	rs.trace(OpNotify, n)
	if force {
		if n.subs != nil {
			rs.visitSeq++
			rs.propagate(n.subs, flagStale)
		}
	} else if n.flags&(flagStale|flagPending) != 0 {
		if u, ok := n.ref.(updater); ok {
			rs.resolveNode(n, u)
		}
	}
	if rs.batchDepth == 0 {
		return rs.flush()
	}
	return nil
}

// adopt registers d with the active scope, if any.
func (rs *ReactiveSystem) adopt(d Disposable) {
	if s := rs.currentScope(); s != nil {
		s.children = append(s.children, d)
	}
}

// adoptSubscriber registers a new subscriber with the subscriber currently
// running, falling back to the active scope. A subscriber owned by a running
// one is disposed when the owner re-runs or is disposed itself.
func (rs *ReactiveSystem) adoptSubscriber(d Disposable) {
	if rs.activeSub != nil {
		if h, ok := rs.activeSub.ref.(childHolder); ok {
			h.addChild(d)
			return
		}
	}
	rs.adopt(d)
}

type childHolder interface {
	addChild(d Disposable)
}

func (rs *ReactiveSystem) currentScope() *Scope {
	if len(rs.scopes) == 0 {
		return nil
	}
	return rs.scopes[len(rs.scopes)-1]
}
