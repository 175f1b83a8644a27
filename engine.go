package fanout

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// State is the lifecycle step of a pool.
type State int32

const (
	StateActive     State = iota // accepting Send
	StateClosing                 // sentinels enqueued, workers draining
	StateTerminated              // every worker exited
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers    int   // configured worker count
	Sent       int64 // items accepted by Send
	Processed  int64 // items forwarded by workers
	Terminated int64 // workers which exited normally, on a sentinel or on Stop
	Failed     int64 // workers which exited on a failure
	Pending    int   // entries waiting in the queue, sentinels included
}

// engine holds what both pool flavours share: the queue, the ants pool running the execution units,
// the stop flag and the lifecycle.
type engine[T any] struct {
	id      string
	size    int
	queue   *queue[T]
	runner  *ants.Pool
	stopped atomic.Bool
	state   atomic.Int32
	wg      sync.WaitGroup
	done    chan struct{}
	errs    chan *WorkerError
	log     zerolog.Logger
	metrics *Metrics

	sent, processed, terminated, failed atomic.Int64
}

func newEngine[T any](kind string, size int, o options) (*engine[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", ErrInvalidPool, size)
	}
	runner, err := ants.NewPool(size, o.antsOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPool, err)
	}
	id := uuid.NewString()
	return &engine[T]{
		id:      id,
		size:    size,
		queue:   newQueue[T](o.capacity),
		runner:  runner,
		done:    make(chan struct{}),
		errs:    make(chan *WorkerError, size),
		log:     o.logger.With().Str("pool", id).Str("kind", kind).Logger(),
		metrics: o.metrics,
	}, nil
}

// start runs one execution unit per worker. If a unit cannot be submitted, the ones already running are
// released with sentinels.
func (e *engine[T]) start(work func(worker int)) error {
	defer func() { go e.finish() }()
	for i := range e.size {
		worker := i
		e.wg.Add(1)
		if err := e.runner.Submit(func() { e.run(worker, work) }); err != nil {
			e.wg.Done()
			e.state.Store(int32(StateClosing))
			e.queue.putSentinels(worker)
			return fmt.Errorf("%w: start worker %d: %w", ErrInvalidPool, worker, err)
		}
	}
	e.log.Debug().Int("workers", e.size).Msg("pool started")
	return nil
}

func (e *engine[T]) run(worker int, work func(worker int)) {
	defer e.wg.Done()
	e.metrics.workerStarted(e.id)
	defer e.metrics.workerStopped(e.id)
	defer func() {
		if r := recover(); r != nil {
			e.report(worker, PhasePanic, fmt.Errorf("%v", r))
		}
	}()
	work(worker)
}

// finish waits for every worker, then releases resources.
func (e *engine[T]) finish() {
	e.wg.Wait()
	e.state.Store(int32(StateTerminated))
	e.runner.Release()
	close(e.errs)
	close(e.done)
	e.log.Debug().
		Int64("processed", e.processed.Load()).
		Int64("failed", e.failed.Load()).
		Msg("pool terminated")
}

// report records the failure of a worker. The report is dropped if nobody drains Errors and the buffer is full.
func (e *engine[T]) report(worker int, phase Phase, err error) {
	e.failed.Add(1)
	e.metrics.failed(e.id, phase)
	e.log.Error().Err(err).Int("worker", worker).Str("phase", string(phase)).Msg("worker terminated on failure")
	select {
	case e.errs <- &WorkerError{Worker: worker, Phase: phase, Err: err}:
	default:
	}
}

func (e *engine[T]) enqueue(item T) error {
	if State(e.state.Load()) != StateActive {
		return fmt.Errorf("%w: pool %s", ErrClosed, e.id)
	}
	if err := e.queue.put(item); err != nil {
		return err
	}
	e.sent.Add(1)
	e.metrics.sent(e.id, e.queue.len())
	return nil
}

// next blocks until the next entry, unless Stop was requested before. ok is false when the worker must stop.
func (e *engine[T]) next() (item T, ok bool) {
	if e.stopped.Load() {
		return item, false
	}
	en := e.queue.get()
	if en.sentinel {
		return item, false
	}
	return en.item, true
}

func (e *engine[T]) forwarded() {
	e.processed.Add(1)
	e.metrics.processed(e.id, e.queue.len())
}

// Close enqueues one sentinel per worker and returns without waiting. A second Close returns ErrClosed.
func (e *engine[T]) Close() error {
	if !e.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		return fmt.Errorf("%w: pool %s", ErrClosed, e.id)
	}
	e.queue.putSentinels(e.size)
	e.log.Debug().Int64("sent", e.sent.Load()).Msg("pool closing")
	return nil
}

// Stop asks workers to exit before their next dequeue. A worker waiting on an empty queue only notices it when
// a new entry arrives: Close remains the reliable way to terminate workers.
func (e *engine[T]) Stop() {
	e.stopped.Store(true)
}

// Wait blocks until every worker has terminated.
func (e *engine[T]) Wait() {
	<-e.done
}

// Done is closed once every worker has terminated.
func (e *engine[T]) Done() <-chan struct{} {
	return e.done
}

// Errors reports workers terminated by a failure. It is closed once every worker has terminated.
func (e *engine[T]) Errors() <-chan *WorkerError {
	return e.errs
}

// State returns the current lifecycle state.
func (e *engine[T]) State() State {
	return State(e.state.Load())
}

// ID returns the pool identifier used in logs and metrics.
func (e *engine[T]) ID() string {
	return e.id
}

// Stats returns a snapshot of the pool counters.
func (e *engine[T]) Stats() Stats {
	return Stats{
		Workers:    e.size,
		Sent:       e.sent.Load(),
		Processed:  e.processed.Load(),
		Terminated: e.terminated.Load(),
		Failed:     e.failed.Load(),
		Pending:    e.queue.len(),
	}
}
