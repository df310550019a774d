package bridge

import (
	"errors"

	"github.com/delaneyj/cellgraph"
)

// ErrSettled is returned when a Deferred is resolved or rejected twice.
var ErrSettled = errors.New("bridge: deferred already settled")

// Deferred is a one-shot asynchronous result surfaced as reactive state. The
// value cell is lazy: reading Value before the deferred settles panics with
// cellgraph.ErrUninitialized, so gate reads on Ready.
type Deferred[T any] struct {
	rs    *cellgraph.ReactiveSystem
	value *cellgraph.WritableCell[T]
	err   *cellgraph.WritableCell[error]
	done  *cellgraph.WritableCell[bool]
}

func NewDeferred[T any](rs *cellgraph.ReactiveSystem) *Deferred[T] {
	return &Deferred[T]{
		rs:    rs,
		value: cellgraph.LazyCell[T](rs),
		err:   cellgraph.Cell[error](rs, nil),
		done: cellgraph.Cell(rs, false, cellgraph.CellEquals(func(a, b bool) bool {
			return a == b
		})),
	}
}

// Resolve settles the deferred with a value. A second settle returns
// ErrSettled; flush errors from downstream subscribers pass through.
func (d *Deferred[T]) Resolve(v T) error {
	if d.done.Peek() {
		return ErrSettled
	}
	return d.rs.Batch(func() error {
		if err := d.value.Set(v); err != nil {
			return err
		}
		return d.done.Set(true)
	})
}

// Reject settles the deferred with an error.
func (d *Deferred[T]) Reject(cause error) error {
	if d.done.Peek() {
		return ErrSettled
	}
	return d.rs.Batch(func() error {
		if err := d.err.Set(cause); err != nil {
			return err
		}
		return d.done.Set(true)
	})
}

// Ready reports whether the deferred has settled. Reading it subscribes.
func (d *Deferred[T]) Ready() bool {
	return d.done.Value()
}

// Value returns the resolved value. Reading it subscribes; before Resolve it
// panics with cellgraph.ErrUninitialized.
func (d *Deferred[T]) Value() T {
	return d.value.Value()
}

// Err returns the rejection cause, nil while unsettled or resolved.
func (d *Deferred[T]) Err() error {
	return d.err.Value()
}
