package stages

import (
	"fmt"

	"github.com/fogfactory/fanout"
)

// guard tracks the closed state of a stage.
type guard struct {
	name   string
	closed bool
}

func (g *guard) check() error {
	if g.closed {
		return fmt.Errorf("%w: %s", fanout.ErrClosed, g.name)
	}
	return nil
}

func (g *guard) close() error {
	if err := g.check(); err != nil {
		return err
	}
	g.closed = true
	return nil
}
