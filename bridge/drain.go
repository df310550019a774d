package bridge

import (
	"context"
)

// Drain pumps values from an external channel into the graph, applying each
// one on the calling goroutine, which must be the goroutine that owns the
// reactive system. It returns nil when ch closes, ctx.Err() when the context
// ends first, or the first apply error.
func Drain[T any](ctx context.Context, ch <-chan T, apply func(T) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := apply(v); err != nil {
				return err
			}
		}
	}
}
