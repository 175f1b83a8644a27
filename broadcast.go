package fanout

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Broadcast forwards every item to a fixed list of targets, synchronously and in order.
type Broadcast[T any] struct {
	targets []Stage[T]
	closed  bool
}

// NewBroadcast builds a Broadcast over targets. Nil targets are skipped but keep their position, so indexes
// reported in errors match the order of the arguments.
func NewBroadcast[T any](targets ...Stage[T]) *Broadcast[T] {
	return &Broadcast[T]{targets: targets}
}

// Send forwards item to each target in order. It stops on the first failing target and returns a *PartialBroadcastError,
// the remaining targets do not receive the item.
func (b *Broadcast[T]) Send(item T) error {
	if b.closed {
		return fmt.Errorf("%w: broadcast send", ErrClosed)
	}
	delivered := 0
	for i, target := range b.targets {
		if target == nil {
			continue
		}
		if err := target.Send(item); err != nil {
			return &PartialBroadcastError{Index: i, Delivered: delivered, Err: err}
		}
		delivered++
	}
	return nil
}

// Close closes each target once, in order, even if some fail. Errors are joined.
func (b *Broadcast[T]) Close() error {
	if b.closed {
		return fmt.Errorf("%w: broadcast close", ErrClosed)
	}
	b.closed = true
	return errors.Join(lo.FilterMap(b.targets, func(t Stage[T], i int) (error, bool) {
		if t == nil {
			return nil, false
		}
		if err := t.Close(); err != nil {
			return fmt.Errorf("target %d: %w", i, err), true
		}
		return nil, false
	})...)
}

// Len returns the number of non-nil targets.
func (b *Broadcast[T]) Len() int {
	return lo.CountBy(b.targets, func(t Stage[T]) bool { return t != nil })
}
