package fanout

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Environment variables set on worker processes.
const (
	EnvWorkerFactory = "FANOUT_WORKER_FACTORY"
	EnvWorkerID      = "FANOUT_WORKER_ID"
)

// Worker processes exchange envelopes on these inherited descriptors, leaving stdout and stderr to the stages.
const (
	workerInFD  = 3
	workerOutFD = 4
)

type serveFunc func(c *wire) int

var registry = struct {
	sync.RWMutex
	factories map[string]serveFunc
}{factories: map[string]serveFunc{}}

// RegisterFactory makes factory available to worker processes under name. It must be called in every process,
// before WorkerMain, typically from an init function. Only the WithCodec option is used.
func RegisterFactory[T any](name string, factory Factory[T], opts ...Option) {
	codec := newOptions(opts).codec
	registry.Lock()
	defer registry.Unlock()
	registry.factories[name] = func(c *wire) int {
		return serve(c, factory, codec)
	}
}

func lookupFactory(name string) (serveFunc, bool) {
	registry.RLock()
	defer registry.RUnlock()
	f, ok := registry.factories[name]
	return f, ok
}

// WorkerMain turns the current process into a pool worker when it was spawned by a ProcessPool, and exits once
// the worker is done. Otherwise it returns immediately.
func WorkerMain() {
	name := os.Getenv(EnvWorkerFactory)
	if name == "" {
		return
	}
	in := os.NewFile(workerInFD, "fanout-in")
	out := os.NewFile(workerOutFD, "fanout-out")
	os.Exit(ServeWorker(name, in, out))
}

// ServeWorker runs the worker side of the protocol for the factory registered under name, reading envelopes from
// in and answering on out. It returns the process exit code.
func ServeWorker(name string, in io.Reader, out io.Writer) int {
	c := newWire(in, out)
	f, ok := lookupFactory(name)
	if !ok {
		_ = c.write(Envelope{Kind: KindError, Phase: PhaseConstruct, Error: fmt.Sprintf("%v: %q", ErrUnknownFactory, name)})
		return 1
	}
	return f(c)
}

func serve[T any](c *wire, factory Factory[T], codec Codec) (code int) {
	target, err := factory()
	if err == nil && target == nil {
		err = fmt.Errorf("factory returned a nil stage")
	}
	if err != nil {
		_ = c.write(Envelope{Kind: KindError, Phase: PhaseConstruct, Error: err.Error()})
		return 1
	}
	defer func() {
		if r := recover(); r != nil {
			_ = c.write(Envelope{Kind: KindError, Phase: PhasePanic, Error: fmt.Sprint(r)})
			code = 2
		}
	}()

	fail := func(phase Phase, err error) int {
		_ = target.Close()
		_ = c.write(Envelope{Kind: KindError, Phase: phase, Error: err.Error()})
		return 1
	}

	for {
		if err := c.write(Envelope{Kind: KindReady}); err != nil {
			return fail(PhaseProcess, err)
		}
		env, err := c.read()
		if err != nil {
			return fail(PhaseProcess, err)
		}
		switch env.Kind {
		case KindClose:
			if err := target.Close(); err != nil {
				_ = c.write(Envelope{Kind: KindError, Phase: PhaseClose, Error: err.Error()})
				return 1
			}
			_ = c.write(Envelope{Kind: KindDone})
			return 0
		case KindItem:
			var item T
			if err := codec.Unmarshal(env.Payload, &item); err != nil {
				return fail(PhaseSend, fmt.Errorf("%w: %w", ErrNotTransferable, err))
			}
			if err := target.Send(item); err != nil {
				return fail(PhaseSend, err)
			}
		default:
			return fail(PhaseProcess, fmt.Errorf("%w: unexpected %q envelope", ErrProtocol, env.Kind))
		}
	}
}
