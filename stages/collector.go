package stages

import (
	"fmt"
	"sync"

	"github.com/fogfactory/fanout"
)

// Collector is a sink recording what it receives. It is safe for concurrent use, so several pool workers may share
// one, or each own its own built by Collectors.
type Collector[T any] struct {
	mu     sync.Mutex
	items  []T
	closes int
}

func (c *Collector[T]) Send(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes > 0 {
		return fmt.Errorf("%w: collector", fanout.ErrClosed)
	}
	c.items = append(c.items, item)
	return nil
}

// Close marks the collector as closed. Unlike other stages, it counts extra calls instead of failing on them.
func (c *Collector[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Items returns a copy of the received items, in reception order.
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Closes returns how many times Close was called.
func (c *Collector[T]) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Collectors records every Collector built by its Factory, one per pool worker.
type Collectors[T any] struct {
	mu    sync.Mutex
	built []*Collector[T]
}

// Factory builds a new Collector on each call.
func (cs *Collectors[T]) Factory() fanout.Factory[T] {
	return func() (fanout.Stage[T], error) {
		c := &Collector[T]{}
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.built = append(cs.built, c)
		return c, nil
	}
}

// All returns the collectors built so far.
func (cs *Collectors[T]) All() []*Collector[T] {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]*Collector[T](nil), cs.built...)
}

// Items returns the items received by all collectors.
func (cs *Collectors[T]) Items() []T {
	var items []T
	for _, c := range cs.All() {
		items = append(items, c.Items()...)
	}
	return items
}
