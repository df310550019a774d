package collections

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/cellgraph"
)

// Set is a reactive set. Mutations that change nothing, like adding a member
// twice, notify nothing.
type Set[T comparable] struct {
	rs   *cellgraph.ReactiveSystem
	node *cellgraph.Node
	data mapset.Set[T]
}

func NewSet[T comparable](rs *cellgraph.ReactiveSystem, items ...T) *Set[T] {
	s := &Set[T]{rs: rs, data: mapset.NewThreadUnsafeSet(items...)}
	s.node = rs.RegisterNode(nil)
	return s
}

func (s *Set[T]) Len() int {
	s.rs.Track(s.node)
	return s.data.Cardinality()
}

func (s *Set[T]) Contains(items ...T) bool {
	s.rs.Track(s.node)
	return s.data.Contains(items...)
}

func (s *Set[T]) Items() []T {
	s.rs.Track(s.node)
	return s.data.ToSlice()
}

// Add reports whether the member was new.
func (s *Set[T]) Add(v T) (bool, error) {
	s.mustLive()
	if !s.data.Add(v) {
		return false, nil
	}
	return true, s.rs.Invalidate(s.node, true)
}

// Remove reports whether the member was present.
func (s *Set[T]) Remove(v T) (bool, error) {
	s.mustLive()
	if !s.data.Contains(v) {
		return false, nil
	}
	s.data.Remove(v)
	return true, s.rs.Invalidate(s.node, true)
}

func (s *Set[T]) Clear() error {
	s.mustLive()
	if s.data.Cardinality() == 0 {
		return nil
	}
	s.data.Clear()
	return s.rs.Invalidate(s.node, true)
}

func (s *Set[T]) Dispose() {
	s.node.Dispose()
}

func (s *Set[T]) Disposed() bool {
	return s.node.Disposed()
}

func (s *Set[T]) Node() *cellgraph.Node {
	return s.node
}

func (s *Set[T]) mustLive() {
	if s.node.Disposed() {
		panic(cellgraph.ErrDisposed)
	}
}
