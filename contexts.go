package cellgraph

import "github.com/cespare/xxhash/v2"

// ScopeContext carries a value down the scope tree without threading it
// through every constructor. Provide sets the value on the active scope;
// Value walks from the active scope up through its parents and falls back to
// the default. Two contexts with the same name share a slot.
type ScopeContext[T any] struct {
	rs  *ReactiveSystem
	id  uint64
	def T
}

func NewContext[T any](rs *ReactiveSystem, name string, defaultValue T) *ScopeContext[T] {
	return &ScopeContext[T]{
		rs:  rs,
		id:  xxhash.Sum64String(name),
		def: defaultValue,
	}
}

// Provide sets the context value on the active scope. Panics with ErrNoScope
// outside one.
func (c *ScopeContext[T]) Provide(v T) {
	s := c.rs.currentScope()
	if s == nil {
		panic(ErrNoScope)
	}
	if s.ctx == nil {
		s.ctx = map[uint64]any{}
	}
	s.ctx[c.id] = v
}

// Value returns the nearest provided value, or the default when no enclosing
// scope provided one. Resolution follows the scope stack active at call time:
// an effect re-run triggered by a flush executes outside any scope and reads
// the default, even when the effect was constructed under a providing scope.
// Capture the value during construction to pin it across re-runs.
func (c *ScopeContext[T]) Value() T {
	for s := c.rs.currentScope(); s != nil; s = s.parent {
		if v, ok := s.ctx[c.id]; ok {
			return v.(T)
		}
	}
	return c.def
}
