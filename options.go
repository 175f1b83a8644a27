package fanout

import (
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// Codec turns items into bytes and back, so they can cross a process boundary.
// sonic.API values satisfy it.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// DefaultCodec encodes items as JSON.
var DefaultCodec Codec = sonic.ConfigStd

// Option configures a Pool or a ProcessPool. Options only meaningful for one flavour are ignored by the other.
type Option func(*options)

type options struct {
	capacity     int
	logger       zerolog.Logger
	metrics      *Metrics
	antsOpts     []ants.Option
	codec        Codec
	workerOutput io.Writer
	workerErrors io.Writer
	workerEnv    []string
	command      string
	args         []string
}

func newOptions(opts []Option) options {
	o := options{
		logger:       zerolog.Nop(),
		codec:        DefaultCodec,
		workerOutput: os.Stdout,
		workerErrors: os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCapacity bounds the number of pending items in the shared queue. Send fails with ErrQueueFull when reached.
// 0, the default, means unbounded.
func WithCapacity(capacity int) Option {
	return func(o *options) { o.capacity = capacity }
}

// WithLogger sets the logger used for worker lifecycle events. Nothing is logged by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records pool activity in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithAntsOptions forwards options to the underlying ants pool running the workers.
func WithAntsOptions(opts ...ants.Option) Option {
	return func(o *options) { o.antsOpts = append(o.antsOpts, opts...) }
}

// WithCodec sets the codec used to transfer items to worker processes. Defaults to DefaultCodec.
func WithCodec(codec Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithWorkerOutput redirects the standard output and error of worker processes. Defaults to os.Stdout and os.Stderr.
func WithWorkerOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.workerOutput = stdout
		o.workerErrors = stderr
	}
}

// WithWorkerEnv adds "KEY=value" entries to the environment of worker processes.
func WithWorkerEnv(env ...string) Option {
	return func(o *options) { o.workerEnv = append(o.workerEnv, env...) }
}

// WithWorkerCommand overrides the binary run for worker processes. Defaults to the current executable, without arguments.
func WithWorkerCommand(command string, args ...string) Option {
	return func(o *options) {
		o.command = command
		o.args = args
	}
}
