package cellgraph

import "reflect"

// Watcher evaluates a getter under tracking and hands confirmed changes to a
// callback together with the previous value. The first evaluation happens at
// construction and establishes the baseline; it is only delivered when the
// WatchImmediate option is set.
type Watcher[T any] struct {
	node      Node
	getter    func() T
	callback  func(newValue, oldValue T)
	equals    func(old, new T) bool
	always    bool
	immediate bool
	value     T
	primed    bool
	cleanups  []func()
	children  []Disposable
}

type WatchOption[T any] func(*Watcher[T])

// WatchImmediate delivers the baseline evaluation to the callback right
// away, with the zero value as the old one.
func WatchImmediate[T any]() WatchOption[T] {
	return func(w *Watcher[T]) {
		w.immediate = true
	}
}

// WatchComparator replaces the change test; it reports whether old and new
// are equivalent. The default is reflect.DeepEqual.
func WatchComparator[T any](equals func(old, new T) bool) WatchOption[T] {
	return func(w *Watcher[T]) {
		w.equals = equals
	}
}

// WatchAlways fires the callback on every confirmed upstream notification,
// skipping the equality test entirely.
func WatchAlways[T any]() WatchOption[T] {
	return func(w *Watcher[T]) {
		w.always = true
	}
}

// Watch creates a watcher over getter.
func Watch[T any](rs *ReactiveSystem, getter func() T, callback func(newValue, oldValue T), opts ...WatchOption[T]) *Watcher[T] {
	w := &Watcher[T]{getter: getter, callback: callback}
	w.node.rs = rs
	w.node.flags = flagWatcher
	w.node.ref = w
	for _, opt := range opts {
		opt(w)
	}
	rs.adoptSubscriber(w)
	rs.trace(OpCreate, &w.node)
	_ = w.run()
	return w
}

// Dispose stops future re-evaluation and runs registered cleanups.
// Idempotent.
func (w *Watcher[T]) Dispose() {
	if w.node.flags&flagDisposed != 0 {
		return
	}
	w.runCleanups()
	w.disposeChildren()
	w.node.Dispose()
}

func (w *Watcher[T]) Disposed() bool {
	return w.node.Disposed()
}

// Node exposes the graph vertex, for trace inspection and collaborators.
func (w *Watcher[T]) Node() *Node {
	return &w.node
}

// run evaluates the getter with the scope stack masked, so nodes the getter
// happens to create are not adopted by whichever scope is active outside.
// The callback itself runs untracked.
func (w *Watcher[T]) run() error {
	rs := w.node.rs
	prevSub := rs.activeSub
	prevScopes := rs.scopes
	rs.activeSub = &w.node
	rs.scopes = nil
	rs.startTracking(&w.node)
	defer func() {
		rs.activeSub = prevSub
		rs.scopes = prevScopes
		rs.endTracking(&w.node)
	}()
	w.runCleanups()
	w.disposeChildren()

	v := w.getter()
	if !w.primed {
		w.value = v
		w.primed = true
		if w.immediate {
			var zero T
			w.deliver(v, zero)
		}
		return nil
	}

	old := w.value
	w.value = v
	if w.always || !w.equal(old, v) {
		w.deliver(v, old)
	}
	return nil
}

func (w *Watcher[T]) deliver(newValue, oldValue T) {
	rs := w.node.rs
	rs.PauseTracking()
	defer rs.ResumeTracking()
	w.callback(newValue, oldValue)
}

func (w *Watcher[T]) equal(old, new T) bool {
	if w.equals != nil {
		return w.equals(old, new)
	}
	return reflect.DeepEqual(old, new)
}

func (w *Watcher[T]) runCleanups() {
	cleanups := w.cleanups
	if len(cleanups) == 0 {
		return
	}
	w.cleanups = nil
	rs := w.node.rs
	rs.PauseTracking()
	defer rs.ResumeTracking()
	for _, fn := range cleanups {
		fn()
	}
}

func (w *Watcher[T]) disposeChildren() {
	children := w.children
	w.children = nil
	for _, child := range children {
		child.Dispose()
	}
}

func (w *Watcher[T]) addCleanup(fn func()) {
	w.cleanups = append(w.cleanups, fn)
}

func (w *Watcher[T]) addChild(d Disposable) {
	w.children = append(w.children, d)
}
