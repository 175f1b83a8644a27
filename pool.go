package fanout

import (
	"errors"
	"fmt"
)

// Pool spreads items over a fixed number of goroutine workers. Each worker owns a private stage built by the
// factory and competes with the others on a shared FIFO queue.
//
// Items sent before Close are each delivered to exactly one worker. Ordering is only preserved among the items
// handled by a same worker.
type Pool[T any] struct {
	*engine[T]
	factory Factory[T]
}

// NewPool spawns size workers. Each of them calls factory once, then forwards dequeued items to the stage it built
// until it receives its sentinel.
func NewPool[T any](size int, factory Factory[T], opts ...Option) (*Pool[T], error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrInvalidPool)
	}
	e, err := newEngine[T]("goroutine", size, newOptions(opts))
	if err != nil {
		return nil, err
	}
	p := &Pool[T]{engine: e, factory: factory}
	if err := e.start(p.work); err != nil {
		return nil, err
	}
	return p, nil
}

// Send enqueues item for the first idle worker. It never waits for the item to be processed.
func (p *Pool[T]) Send(item T) error {
	return p.enqueue(item)
}

func (p *Pool[T]) work(worker int) {
	log := p.log.With().Int("worker", worker).Logger()

	target, err := p.factory()
	if err == nil && target == nil {
		err = errors.New("factory returned a nil stage")
	}
	if err != nil {
		p.report(worker, PhaseConstruct, err)
		return
	}
	log.Debug().Msg("worker started")

	for {
		item, ok := p.next()
		if !ok {
			break
		}
		if err := target.Send(item); err != nil {
			p.report(worker, PhaseSend, err)
			if err := target.Close(); err != nil {
				log.Warn().Err(err).Msg("closing stage of failed worker")
			}
			return
		}
		p.forwarded()
	}

	if err := target.Close(); err != nil {
		p.report(worker, PhaseClose, err)
		return
	}
	p.terminated.Add(1)
	log.Debug().Bool("stopped", p.stopped.Load()).Msg("worker terminated")
}
