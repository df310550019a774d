package cellgraph

type nodeFlags uint8

const (
	flagProducer nodeFlags = 1 << iota // may be depended on
	flagWatcher                        // side-effecting consumer, queued when stale
	flagStale                          // must recompute or re-run
	flagPending                        // possibly stale, awaiting confirmation
	flagQueued                         // sitting in the flush queue
	flagDeferred                       // re-run owned by a custom scheduler
	flagRunning                        // body currently executing
	flagDisposed
)

// link is the intrusive edge record between a producer and a consumer. Each
// link sits on two doubly-linked lists at once: the producer's subscriber
// list and the consumer's dependency list, so attach and detach are O(1).
type link struct {
	producer *Node
	consumer *Node
	stamp    uint64 // tracking pass that last confirmed this edge

	prevSub, nextSub *link
	prevDep, nextDep *link
}

// Node is the graph vertex embedded by every reactive kind. Custom producer
// types obtain one through ReactiveSystem.RegisterNode and participate in
// tracking and invalidation exactly like the built-in cells.
type Node struct {
	rs    *ReactiveSystem
	ref   any // owning cell, derived, runner or custom node
	flags nodeFlags
	visit uint64 // propagation pass that last reached this consumer
	seen  uint64 // tracking pass that last linked this producer
	stamp uint64 // tracking pass of the consumer's current run

	deps     *link // producers read by this consumer, in read order
	depsTail *link // last edge confirmed during the current run
	subs     *link // consumers reading this producer
	subsTail *link
}

// Disposed reports whether the node has been disposed.
func (n *Node) Disposed() bool {
	return n.flags&flagDisposed != 0
}

// Dispose detaches the node from the graph on both sides. It is idempotent;
// any operation other than Dispose on a disposed node panics with
// ErrDisposed.
func (n *Node) Dispose() {
	if n.flags&flagDisposed != 0 {
		return
	}
	n.flags |= flagDisposed
	rs := n.rs
	for n.deps != nil {
		rs.unlink(n.deps)
	}
	for n.subs != nil {
		rs.unlink(n.subs)
	}
	rs.trace(OpDispose, n)
}

// updater is implemented by nodes that can resolve their own staleness.
type updater interface {
	update() (changed bool)
}

// runner is implemented by watching consumers, which re-run instead of
// producing a value.
type runner interface {
	run() error
}

// scheduled is implemented by runners that may defer their own re-run to a
// custom scheduler.
type scheduled interface {
	reschedule() (handled bool)
}

// link attaches producer p as a dependency of consumer c, reusing the edge
// from the previous run when reads arrive in the same order and refusing to
// create a second live edge for the same pair within one tracking pass.
func (rs *ReactiveSystem) link(p, c *Node) {
	tail := c.depsTail
	if tail != nil && tail.producer == p {
		return
	}
	var next *link
	if tail == nil {
		next = c.deps
	} else {
		next = tail.nextDep
	}
	if next != nil && next.producer == p {
		next.stamp = c.stamp
		c.depsTail = next
		p.seen = c.stamp
		return
	}
	if p.seen >= c.stamp {
		// p was linked earlier in this run at an off-tail position, either
		// by an out-of-order re-read or across a nested recompute
		for l := c.deps; l != nil && l != next; l = l.nextDep {
			if l.producer == p {
				return
			}
		}
	}

	l := &link{
		producer: p,
		consumer: c,
		stamp:    c.stamp,
		prevDep:  tail,
		nextDep:  next,
	}
	if tail == nil {
		c.deps = l
	} else {
		tail.nextDep = l
	}
	if next != nil {
		next.prevDep = l
	}
	c.depsTail = l

	l.prevSub = p.subsTail
	if p.subsTail == nil {
		p.subs = l
	} else {
		p.subsTail.nextSub = l
	}
	p.subsTail = l

	p.seen = c.stamp
	rs.trace(OpLink, p)
}

// unlink removes the edge from both adjacency lists. A derived producer that
// loses its last subscriber is marked stale and detached from its own
// dependencies, so its next read re-tracks from scratch instead of holding
// the upstream graph alive.
func (rs *ReactiveSystem) unlink(l *link) {
	p, c := l.producer, l.consumer

	if l.prevDep != nil {
		l.prevDep.nextDep = l.nextDep
	} else {
		c.deps = l.nextDep
	}
	if l.nextDep != nil {
		l.nextDep.prevDep = l.prevDep
	}
	if c.depsTail == l {
		c.depsTail = l.prevDep
	}

	if l.prevSub != nil {
		l.prevSub.nextSub = l.nextSub
	} else {
		p.subs = l.nextSub
	}
	if l.nextSub != nil {
		l.nextSub.prevSub = l.prevSub
	} else {
		p.subsTail = l.prevSub
	}

	l.prevDep, l.nextDep = nil, nil
	l.prevSub, l.nextSub = nil, nil
	rs.trace(OpUnlink, p)

	if p.subs == nil && p.flags&flagDisposed == 0 {
		if _, ok := p.ref.(updater); ok {
			p.flags = p.flags&^flagPending | flagStale
			for p.deps != nil {
				rs.unlink(p.deps)
			}
		}
	}
}

// propagate walks the subscriber lists below a producer whose value changed
// (or was force-notified), marking each reachable consumer. Direct consumers
// are marked stale outright; consumers further away are only marked pending
// until the lazy confirmation pass proves a real change reached them.
//
// The per-pass visit stamp keeps diamonds and cycles from being walked twice.
// A consumer already visited through a speculative path that is reached again
// through a confirmed-stale one is upgraded in place without re-walking its
// subtree.
func (rs *ReactiveSystem) propagate(subs *link, target nodeFlags) {
	for l := subs; l != nil; l = l.nextSub {
		c := l.consumer
		if c.flags&flagDisposed != 0 {
			continue
		}
		if c.flags&flagRunning != 0 && l.stamp != c.stamp {
			// edge left over from a previous run of a consumer that is
			// re-tracking right now; it will be unlinked when the run ends
			continue
		}
		if c.visit == rs.visitSeq {
			if target == flagStale && c.flags&flagStale == 0 {
				c.flags |= flagStale
			}
			continue
		}
		c.visit = rs.visitSeq
		c.flags |= target
		if c.flags&flagWatcher != 0 {
			rs.enqueue(c)
		} else if c.subs != nil {
			rs.propagate(c.subs, flagPending)
		}
	}
}

// shallowPropagate upgrades the direct subscribers of a producer whose
// recompute just confirmed a real change: pending becomes stale, and watching
// consumers are queued if they are not already.
func (rs *ReactiveSystem) shallowPropagate(subs *link) {
	for l := subs; l != nil; l = l.nextSub {
		c := l.consumer
		if c.flags&(flagPending|flagStale|flagDisposed) != flagPending {
			continue
		}
		c.flags |= flagStale
		if c.flags&flagWatcher != 0 {
			rs.enqueue(c)
		}
	}
}

// confirmStale resolves whether a pending consumer truly needs to re-run by
// pulling on its producers: stale ones are updated immediately, pending ones
// are confirmed recursively first. It reports true the moment any producer's
// update yields a different value, leaving the remaining producers untouched
// for the consumer's own re-read to resolve.
func (rs *ReactiveSystem) confirmStale(c *Node) bool {
	for l := c.deps; l != nil; l = l.nextDep {
		p := l.producer
		if p.flags&flagDisposed != 0 {
			continue
		}
		u, ok := p.ref.(updater)
		if !ok {
			// leaf producers mark their subscribers stale eagerly, so a
			// pending consumer never needs to interrogate one
			continue
		}
		if p.flags&flagStale != 0 {
			if rs.updateNode(p, u) {
				return true
			}
		} else if p.flags&flagPending != 0 {
			if rs.confirmStale(p) {
				if rs.updateNode(p, u) {
					return true
				}
			} else {
				p.flags &^= flagPending
			}
		}
	}
	return false
}

// updateNode re-resolves a producer through its update hook and, when the
// value actually changed, upgrades its direct subscribers.
func (rs *ReactiveSystem) updateNode(n *Node, u updater) bool {
	changed := u.update()
	n.flags &^= flagStale | flagPending
	if changed && n.subs != nil {
		rs.shallowPropagate(n.subs)
	}
	return changed
}

// resolveNode settles a producer's staleness on the read path.
func (rs *ReactiveSystem) resolveNode(n *Node, u updater) {
	if n.flags&flagStale != 0 || rs.confirmStale(n) {
		rs.updateNode(n, u)
	} else {
		n.flags &^= flagPending
	}
}

// startTracking begins a fresh dependency pass for a consumer about to run.
// The dependency tail is rewound so reads re-confirm the existing edges in
// order, and the staleness flags are cleared up front.
func (rs *ReactiveSystem) startTracking(c *Node) {
	rs.passSeq++
	c.stamp = rs.passSeq
	c.depsTail = nil
	c.flags = c.flags&^(flagStale|flagPending) | flagRunning
	rs.trace(OpRun, c)
}

// endTracking drops every edge that was not re-confirmed during the run.
func (rs *ReactiveSystem) endTracking(c *Node) {
	var stale *link
	if c.depsTail != nil {
		stale = c.depsTail.nextDep
	} else {
		stale = c.deps
	}
	for stale != nil {
		next := stale.nextDep
		rs.unlink(stale)
		stale = next
	}
	c.flags &^= flagRunning
}

// enqueue books a watching consumer into the flush queue, never twice and
// never while a custom scheduler still owns its re-run. Propagation walks
// live links, so no user code may run from here; schedulers are consulted
// at drain time, in notify.
func (rs *ReactiveSystem) enqueue(c *Node) {
	if c.flags&(flagQueued|flagDeferred) != 0 {
		return
	}
	c.flags |= flagQueued
	rs.queue = append(rs.queue, c)
}
