package cellgraph

// EffectRunner is a side-effecting subscriber. The body runs once at
// construction to establish its dependency links and again, at most once per
// batch, whenever a confirmed change reaches anything it read last run.
type EffectRunner struct {
	node      Node
	fn        func() error
	cleanups  []func()
	children  []Disposable // subscribers constructed during the last run
	scheduler func(*EffectRunner) bool
}

type EffectOption func(*EffectRunner)

// EffectScheduler intercepts re-runs. When a flush settles the effect as due,
// the scheduler is asked first: returning true means it owns the re-run and
// will call Run itself, and it is not asked again until Run settles the
// effect. The consult happens at queue-drain time, outside the propagation
// walk, so a scheduler is free to call Run synchronously.
func EffectScheduler(fn func(*EffectRunner) bool) EffectOption {
	return func(e *EffectRunner) {
		e.scheduler = fn
	}
}

// Effect creates a subscriber and runs its body synchronously. The body's
// error, if any, is returned; the effect stays subscribed to whatever it read
// before failing.
func Effect(rs *ReactiveSystem, fn func() error, opts ...EffectOption) (*EffectRunner, error) {
	e := &EffectRunner{fn: fn}
	e.node.rs = rs
	e.node.flags = flagWatcher
	e.node.ref = e
	for _, opt := range opts {
		opt(e)
	}
	rs.adoptSubscriber(e)
	rs.trace(OpCreate, &e.node)
	return e, e.run()
}

// Run resolves the effect's staleness and re-runs the body if a real change
// confirmed. Intended for custom schedulers; on a disposed effect it is a
// no-op, mirroring how the flush skips disposed queue entries.
func (e *EffectRunner) Run() error {
	if e.node.flags&flagDisposed != 0 {
		return nil
	}
	e.node.flags &^= flagDeferred
	if !e.node.rs.settle(&e.node) {
		return nil
	}
	return e.run()
}

// Dispose runs the cleanups registered during the last run, disposes
// subscribers constructed during it, detaches every dependency and drops the
// effect from future flushes. Idempotent.
func (e *EffectRunner) Dispose() {
	if e.node.flags&flagDisposed != 0 {
		return
	}
	e.runCleanups()
	e.disposeChildren()
	e.node.Dispose()
}

func (e *EffectRunner) Disposed() bool {
	return e.node.Disposed()
}

// Node exposes the graph vertex, for trace inspection and collaborators.
func (e *EffectRunner) Node() *Node {
	return &e.node
}

func (e *EffectRunner) run() error {
	rs := e.node.rs
	prevSub := rs.activeSub
	rs.activeSub = &e.node
	rs.startTracking(&e.node)
	defer func() {
		rs.activeSub = prevSub
		rs.endTracking(&e.node)
	}()
	e.runCleanups()
	e.disposeChildren()
	return e.fn()
}

// runCleanups drains and calls the registered cleanups with tracking paused,
// so a cleanup's reads never register as dependencies.
func (e *EffectRunner) runCleanups() {
	cleanups := e.cleanups
	if len(cleanups) == 0 {
		return
	}
	e.cleanups = nil
	rs := e.node.rs
	rs.PauseTracking()
	defer rs.ResumeTracking()
	for _, fn := range cleanups {
		fn()
	}
}

// disposeChildren drops the subscribers the previous run constructed, so a
// run that takes a different branch does not leave stale inner effects
// firing behind it.
func (e *EffectRunner) disposeChildren() {
	children := e.children
	e.children = nil
	for _, child := range children {
		child.Dispose()
	}
}

func (e *EffectRunner) addCleanup(fn func()) {
	e.cleanups = append(e.cleanups, fn)
}

func (e *EffectRunner) addChild(d Disposable) {
	e.children = append(e.children, d)
}

func (e *EffectRunner) reschedule() bool {
	if e.scheduler == nil {
		return false
	}
	return e.scheduler(e)
}

type cleanupHolder interface {
	addCleanup(fn func())
}

// OnCleanup registers fn with the currently running subscriber. It runs once,
// before the subscriber's next re-run or on disposal, whichever comes first.
// Panics with ErrNoSubscriber when no subscriber body is executing.
func OnCleanup(rs *ReactiveSystem, fn func()) {
	if rs.activeSub == nil {
		panic(ErrNoSubscriber)
	}
	h, ok := rs.activeSub.ref.(cleanupHolder)
	if !ok {
		panic(ErrNoSubscriber)
	}
	h.addCleanup(fn)
}
