package cellgraph

import "errors"

// Precondition violations abort only the calling operation: the engine
// panics with one of these sentinel errors and leaves the graph untouched.
// Operational failures (a subscriber body returning an error) are returned
// as plain errors from whichever call triggered the flush.
var (
	ErrDisposed      = errors.New("cellgraph: node is disposed")
	ErrNotProducer   = errors.New("cellgraph: node is not a producer")
	ErrUninitialized = errors.New("cellgraph: lazy cell read before first set")
	ErrNotComputing  = errors.New("cellgraph: no derived computation is running")
	ErrNoSubscriber  = errors.New("cellgraph: no subscriber is running")
	ErrNoScope       = errors.New("cellgraph: no scope is active")
	ErrNotBatching   = errors.New("cellgraph: batch already closed")
	ErrCycle         = errors.New("cellgraph: circular dependency")
)
