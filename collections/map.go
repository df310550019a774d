package collections

import (
	"github.com/delaneyj/cellgraph"
)

// Map is a reactive map. Key iteration order is as random as the underlying
// map's.
type Map[K comparable, V any] struct {
	rs   *cellgraph.ReactiveSystem
	node *cellgraph.Node
	data map[K]V
}

func NewMap[K comparable, V any](rs *cellgraph.ReactiveSystem) *Map[K, V] {
	m := &Map[K, V]{rs: rs, data: map[K]V{}}
	m.node = rs.RegisterNode(nil)
	return m
}

func (m *Map[K, V]) Len() int {
	m.rs.Track(m.node)
	return len(m.data)
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	m.rs.Track(m.node)
	v, ok := m.data[k]
	return v, ok
}

func (m *Map[K, V]) Has(k K) bool {
	m.rs.Track(m.node)
	_, ok := m.data[k]
	return ok
}

func (m *Map[K, V]) Keys() []K {
	m.rs.Track(m.node)
	keys := make([]K, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func (m *Map[K, V]) Values() []V {
	m.rs.Track(m.node)
	values := make([]V, 0, len(m.data))
	for _, v := range m.data {
		values = append(values, v)
	}
	return values
}

func (m *Map[K, V]) Set(k K, v V) error {
	m.mustLive()
	m.data[k] = v
	return m.rs.Invalidate(m.node, true)
}

// Delete reports whether the key was present; absent keys notify nothing.
func (m *Map[K, V]) Delete(k K) (bool, error) {
	m.mustLive()
	if _, ok := m.data[k]; !ok {
		return false, nil
	}
	delete(m.data, k)
	return true, m.rs.Invalidate(m.node, true)
}

func (m *Map[K, V]) Clear() error {
	m.mustLive()
	if len(m.data) == 0 {
		return nil
	}
	clear(m.data)
	return m.rs.Invalidate(m.node, true)
}

func (m *Map[K, V]) Dispose() {
	m.node.Dispose()
}

func (m *Map[K, V]) Disposed() bool {
	return m.node.Disposed()
}

func (m *Map[K, V]) Node() *cellgraph.Node {
	return m.node
}

func (m *Map[K, V]) mustLive() {
	if m.node.Disposed() {
		panic(cellgraph.ErrDisposed)
	}
}
