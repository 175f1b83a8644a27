package stages

import "github.com/fogfactory/fanout"

// FilterStage forwards the items for which a predicate holds.
type FilterStage[T any] struct {
	guard
	keep   func(T) bool
	target fanout.Stage[T]
}

// Filter builds a FilterStage forwarding to target the items keep accepts.
func Filter[T any](keep func(T) bool, target fanout.Stage[T]) *FilterStage[T] {
	return &FilterStage[T]{guard: guard{name: "filter"}, keep: keep, target: target}
}

func (s *FilterStage[T]) Send(item T) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.keep(item) {
		return nil
	}
	return s.target.Send(item)
}

func (s *FilterStage[T]) Close() error {
	if err := s.close(); err != nil {
		return err
	}
	return s.target.Close()
}
