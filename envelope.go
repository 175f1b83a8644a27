package fanout

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// Kind is the type of an Envelope.
type Kind string

const (
	KindItem  Kind = "item"  // parent → worker: one encoded item
	KindClose Kind = "close" // parent → worker: sentinel, close the stage and exit
	KindReady Kind = "ready" // worker → parent: idle, waiting for the next entry
	KindDone  Kind = "done"  // worker → parent: stage closed, exiting
	KindError Kind = "error" // worker → parent: failure, exiting
)

// Envelope is the message exchanged with worker processes, one JSON document per line.
// Payload holds an item encoded with the pool Codec.
type Envelope struct {
	Kind    Kind   `json:"kind"`
	Payload []byte `json:"payload,omitempty"`
	Phase   Phase  `json:"phase,omitempty"`
	Error   string `json:"error,omitempty"`
}

// wire reads and writes envelopes on a pair of streams.
type wire struct {
	r *bufio.Reader
	w *bufio.Writer
}

func newWire(r io.Reader, w io.Writer) *wire {
	return &wire{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
}

func (c *wire) write(env Envelope) error {
	data, err := sonic.ConfigStd.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", env.Kind, err)
	}
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *wire) read() (Envelope, error) {
	var env Envelope
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return env, io.ErrUnexpectedEOF
		}
		if err != io.EOF {
			return env, err
		}
	}
	if err := sonic.ConfigStd.Unmarshal(line, &env); err != nil {
		return env, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return env, nil
}
