package cellgraph

// Disposable is anything a scope can own.
type Disposable interface {
	Dispose()
}

// Scope is an ownership arena. Every cell, derived cell, subscriber and
// nested scope constructed while it is active becomes a child, and disposing
// the scope disposes them all. A scope owns lifetimes only; it is not a
// consumer and never subscribes to anything.
type Scope struct {
	rs       *ReactiveSystem
	parent   *Scope
	children []Disposable
	cleanups []func()
	ctx      map[uint64]any
	disposed bool
}

// NewScope creates a scope and runs setup with it active.
func NewScope(rs *ReactiveSystem, setup func()) *Scope {
	s := &Scope{rs: rs, parent: rs.currentScope()}
	rs.adopt(s)
	s.Run(setup)
	return s
}

// Run re-enters the scope so fn can add more children to it.
func (s *Scope) Run(fn func()) {
	if s.disposed {
		panic(ErrDisposed)
	}
	rs := s.rs
	rs.scopes = append(rs.scopes, s)
	defer func() {
		rs.scopes = rs.scopes[:len(rs.scopes)-1]
	}()
	fn()
}

// Dispose disposes the children in creation order, nested scopes cascading
// depth-first, then runs the scope's own cleanups. Children disposed earlier
// by hand are skipped by their own idempotence. Idempotent.
func (s *Scope) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	children := s.children
	s.children = nil
	for _, child := range children {
		child.Dispose()
	}
	cleanups := s.cleanups
	s.cleanups = nil
	for _, fn := range cleanups {
		fn()
	}
}

func (s *Scope) Disposed() bool {
	return s.disposed
}

// OnScopeDispose registers fn to run when the active scope is disposed.
// Panics with ErrNoScope outside one.
func OnScopeDispose(rs *ReactiveSystem, fn func()) {
	s := rs.currentScope()
	if s == nil {
		panic(ErrNoScope)
	}
	s.cleanups = append(s.cleanups, fn)
}
