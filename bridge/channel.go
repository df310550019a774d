// Package bridge connects a cellgraph system to channel-based hosts. The
// graph stays single-threaded: the bridge never blocks it, and everything
// that does block belongs to the host's own goroutine.
package bridge

import (
	"github.com/delaneyj/cellgraph"
)

// Channel forwards confirmed changes of one readable into a buffered channel.
type Channel[T any] struct {
	ch      chan T
	watcher *cellgraph.Watcher[T]
	dropped uint64
	closed  bool
}

type ChannelOption[T any] func(*channelConfig[T])

type channelConfig[T any] struct {
	buffer    int
	watchOpts []cellgraph.WatchOption[T]
}

// WithBuffer sets the channel capacity. The default is 16.
func WithBuffer[T any](n int) ChannelOption[T] {
	return func(cfg *channelConfig[T]) {
		cfg.buffer = n
	}
}

// WithInitial forwards the current value right away instead of waiting for
// the first change.
func WithInitial[T any]() ChannelOption[T] {
	return func(cfg *channelConfig[T]) {
		cfg.watchOpts = append(cfg.watchOpts, cellgraph.WatchImmediate[T]())
	}
}

// WithEveryRun forwards on every re-evaluation, even when the value is
// unchanged.
func WithEveryRun[T any]() ChannelOption[T] {
	return func(cfg *channelConfig[T]) {
		cfg.watchOpts = append(cfg.watchOpts, cellgraph.WatchAlways[T]())
	}
}

// ToChannel watches src and forwards each confirmed change into a buffered
// channel. The send never blocks the graph: when the buffer is full the value
// is dropped and counted instead. Stop the bridge to close the channel.
func ToChannel[T any](rs *cellgraph.ReactiveSystem, src cellgraph.Readable[T], opts ...ChannelOption[T]) *Channel[T] {
	cfg := channelConfig[T]{buffer: 16}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Channel[T]{ch: make(chan T, cfg.buffer)}
	c.watcher = cellgraph.Watch(rs, func() T {
		return src.Value()
	}, func(newValue, _ T) {
		if c.closed {
			return
		}
		select {
		case c.ch <- newValue:
		default:
			c.dropped++
		}
	}, cfg.watchOpts...)
	return c
}

// C is the receiving side. It is closed by Stop.
func (c *Channel[T]) C() <-chan T {
	return c.ch
}

// Dropped reports how many values did not fit the buffer.
func (c *Channel[T]) Dropped() uint64 {
	return c.dropped
}

// Stop disposes the forwarding watcher and closes the channel. Idempotent.
func (c *Channel[T]) Stop() {
	if c.closed {
		return
	}
	c.closed = true
	c.watcher.Dispose()
	close(c.ch)
}
