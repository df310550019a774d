// Package collections provides reactive slice, map and set wrappers built on
// the cellgraph collaborator surface. Each collection owns a single producer
// node: reads track it and mutations force-notify it, so subscribers re-run
// on any change to the collection rather than per element.
package collections

import (
	"github.com/delaneyj/cellgraph"
)

// List is a reactive slice.
type List[T any] struct {
	rs    *cellgraph.ReactiveSystem
	node  *cellgraph.Node
	items []T
}

func NewList[T any](rs *cellgraph.ReactiveSystem, items ...T) *List[T] {
	l := &List[T]{rs: rs, items: append([]T(nil), items...)}
	l.node = rs.RegisterNode(nil)
	return l
}

func (l *List[T]) Len() int {
	l.rs.Track(l.node)
	return len(l.items)
}

// At panics on an out-of-range index, like a plain slice.
func (l *List[T]) At(i int) T {
	l.rs.Track(l.node)
	return l.items[i]
}

// Items returns a copy; mutating it does not touch the list.
func (l *List[T]) Items() []T {
	l.rs.Track(l.node)
	return append([]T(nil), l.items...)
}

func (l *List[T]) Push(items ...T) error {
	l.mustLive()
	if len(items) == 0 {
		return nil
	}
	l.items = append(l.items, items...)
	return l.rs.Invalidate(l.node, true)
}

func (l *List[T]) Pop() (T, bool, error) {
	l.mustLive()
	var zero T
	if len(l.items) == 0 {
		return zero, false, nil
	}
	last := len(l.items) - 1
	v := l.items[last]
	l.items[last] = zero
	l.items = l.items[:last]
	return v, true, l.rs.Invalidate(l.node, true)
}

func (l *List[T]) SetAt(i int, v T) error {
	l.mustLive()
	l.items[i] = v
	return l.rs.Invalidate(l.node, true)
}

func (l *List[T]) Insert(i int, v T) error {
	l.mustLive()
	var zero T
	l.items = append(l.items, zero)
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	return l.rs.Invalidate(l.node, true)
}

func (l *List[T]) RemoveAt(i int) (T, error) {
	l.mustLive()
	v := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	return v, l.rs.Invalidate(l.node, true)
}

func (l *List[T]) Clear() error {
	l.mustLive()
	if len(l.items) == 0 {
		return nil
	}
	l.items = nil
	return l.rs.Invalidate(l.node, true)
}

func (l *List[T]) Dispose() {
	l.node.Dispose()
}

func (l *List[T]) Disposed() bool {
	return l.node.Disposed()
}

func (l *List[T]) Node() *cellgraph.Node {
	return l.node
}

func (l *List[T]) mustLive() {
	if l.node.Disposed() {
		panic(cellgraph.ErrDisposed)
	}
}
