package fanout

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

// ProcessPool spreads items over a fixed number of worker processes. It behaves like Pool, except that each worker
// is a child process running the factory registered under a name with RegisterFactory, so items must be encodable
// with the pool Codec.
//
// The shared queue lives in the parent. Each child is fed by a dedicated execution unit which dequeues an entry
// only once the child reports being idle, so children compete on the queue exactly as goroutine workers do.
//
// Workers re-execute the current binary, which must call WorkerMain before anything else. Unix only.
type ProcessPool[T any] struct {
	*engine[[]byte]
	factory string
	codec   Codec
	opts    options
}

// NewProcessPool starts size worker processes, each building its private stage with the factory registered under name.
func NewProcessPool[T any](size int, name string, opts ...Option) (*ProcessPool[T], error) {
	o := newOptions(opts)
	if name == "" {
		return nil, fmt.Errorf("%w: empty factory name", ErrInvalidPool)
	}
	if o.command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve executable: %w", ErrInvalidPool, err)
		}
		o.command = exe
	}
	e, err := newEngine[[]byte]("process", size, o)
	if err != nil {
		return nil, err
	}
	p := &ProcessPool[T]{engine: e, factory: name, codec: o.codec, opts: o}
	if err := e.start(p.work); err != nil {
		return nil, err
	}
	return p, nil
}

// Send encodes item and enqueues it for the first idle worker process. Items the codec cannot encode are refused
// with ErrNotTransferable.
func (p *ProcessPool[T]) Send(item T) error {
	payload, err := p.codec.Marshal(item)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotTransferable, err)
	}
	return p.enqueue(payload)
}

// child is a running worker process and the wire to talk to it.
type child struct {
	cmd  *exec.Cmd
	wire *wire
	// files closed once the process has exited
	files []*os.File
}

func (p *ProcessPool[T]) spawn(worker int) (*child, error) {
	toChildR, toChildW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	fromChildR, fromChildW, err := os.Pipe()
	if err != nil {
		_ = toChildR.Close()
		_ = toChildW.Close()
		return nil, err
	}

	cmd := exec.Command(p.opts.command, p.opts.args...)
	cmd.Env = append(os.Environ(), p.opts.workerEnv...)
	cmd.Env = append(cmd.Env,
		EnvWorkerFactory+"="+p.factory,
		EnvWorkerID+"="+strconv.Itoa(worker),
	)
	cmd.Stdout = p.opts.workerOutput
	cmd.Stderr = p.opts.workerErrors
	// fd 3 and 4 in the child
	cmd.ExtraFiles = []*os.File{toChildR, fromChildW}

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{toChildR, toChildW, fromChildR, fromChildW} {
			_ = f.Close()
		}
		return nil, err
	}
	// the child owns its ends now
	_ = toChildR.Close()
	_ = fromChildW.Close()

	return &child{
		cmd:   cmd,
		wire:  newWire(fromChildR, toChildW),
		files: []*os.File{toChildW, fromChildR},
	}, nil
}

// wait closes the parent ends of the pipes, then reaps the process.
func (c *child) wait() error {
	_ = c.files[0].Close() // the child reads EOF if still waiting for an entry
	err := c.cmd.Wait()
	_ = c.files[1].Close()
	return err
}

func (p *ProcessPool[T]) work(worker int) {
	log := p.log.With().Int("worker", worker).Logger()

	c, err := p.spawn(worker)
	if err != nil {
		p.report(worker, PhaseProcess, fmt.Errorf("start worker process: %w", err))
		return
	}
	log = log.With().Int("pid", c.cmd.Process.Pid).Logger()
	log.Debug().Msg("worker process started")

	if err := p.feed(c, log); err != nil {
		var werr *WorkerError
		if errors.As(err, &werr) {
			p.report(worker, werr.Phase, werr.Err)
		} else {
			p.report(worker, PhaseProcess, err)
		}
		if err := c.wait(); err != nil {
			log.Debug().Err(err).Msg("worker process exited")
		}
		return
	}
	if err := c.wait(); err != nil {
		p.report(worker, PhaseProcess, err)
		return
	}
	p.terminated.Add(1)
	log.Debug().Bool("stopped", p.stopped.Load()).Msg("worker process terminated")
}

// feed answers each ready message of the child with the next queue entry, until the child is done or fails.
// Failures reported by the child are returned as *WorkerError.
func (p *ProcessPool[T]) feed(c *child, log zerolog.Logger) error {
	for {
		env, err := c.wire.read()
		if err != nil {
			return fmt.Errorf("read from worker process: %w", err)
		}
		switch env.Kind {
		case KindReady:
		case KindError:
			return &WorkerError{Phase: env.Phase, Err: errors.New(env.Error)}
		default:
			return fmt.Errorf("%w: unexpected %q envelope", ErrProtocol, env.Kind)
		}

		payload, ok := p.next()
		if !ok {
			return p.closeChild(c)
		}
		if err := c.wire.write(Envelope{Kind: KindItem, Payload: payload}); err != nil {
			return fmt.Errorf("write to worker process: %w", err)
		}
		p.forwarded()
		log.Trace().Int("bytes", len(payload)).Msg("item forwarded")
	}
}

// closeChild delivers the sentinel and waits for the child to acknowledge it.
func (p *ProcessPool[T]) closeChild(c *child) error {
	if err := c.wire.write(Envelope{Kind: KindClose}); err != nil {
		return fmt.Errorf("write to worker process: %w", err)
	}
	env, err := c.wire.read()
	if err != nil {
		return fmt.Errorf("read from worker process: %w", err)
	}
	switch env.Kind {
	case KindDone:
		return nil
	case KindError:
		return &WorkerError{Phase: env.Phase, Err: errors.New(env.Error)}
	default:
		return fmt.Errorf("%w: unexpected %q envelope", ErrProtocol, env.Kind)
	}
}
