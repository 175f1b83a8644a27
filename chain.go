package fanout

import (
	"fmt"

	"github.com/samber/lo"
)

// Wrapper decorates a downstream stage with an upstream one, such as a filter in front of a sink.
type Wrapper[T any] func(next Stage[T]) Stage[T]

// Link merges several wrappers into one. Items flow through wrappers in the given order.
func Link[T any](wrappers ...Wrapper[T]) Wrapper[T] {
	return func(next Stage[T]) Stage[T] {
		return lo.ReduceRight(wrappers, func(s Stage[T], w Wrapper[T], _ int) Stage[T] { return w(s) }, next)
	}
}

// Chain returns a factory building, on each call, a fresh sink behind the linked wrappers.
// A sink failing to build fails the factory.
func Chain[T any](sink Factory[T], wrappers ...Wrapper[T]) Factory[T] {
	link := Link(wrappers...)
	return func() (Stage[T], error) {
		s, err := sink()
		if err != nil {
			return nil, err
		}
		return link(s), nil
	}
}

// Map returns a wrapper forwarding f(item) to the next stage. Closing the mapped stage closes the next one.
func Map[T any](f func(T) T) Wrapper[T] {
	return func(next Stage[T]) Stage[T] {
		return &mapStage[T]{f: f, next: next}
	}
}

type mapStage[T any] struct {
	f      func(T) T
	next   Stage[T]
	closed bool
}

func (m *mapStage[T]) Send(item T) error {
	if m.closed {
		return fmt.Errorf("%w: map send", ErrClosed)
	}
	return m.next.Send(m.f(item))
}

func (m *mapStage[T]) Close() error {
	if m.closed {
		return fmt.Errorf("%w: map close", ErrClosed)
	}
	m.closed = true
	return m.next.Close()
}
