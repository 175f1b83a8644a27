package stages

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// Locker guards a critical section shared by several workers. The caller owns it.
type Locker interface {
	Lock() error
	Unlock() error
}

type mutex struct {
	sync.Locker
}

func (m mutex) Lock() error {
	m.Locker.Lock()
	return nil
}

func (m mutex) Unlock() error {
	m.Locker.Unlock()
	return nil
}

// Mutex adapts a sync.Locker, to share among the goroutine workers of a fanout.Pool.
func Mutex(l sync.Locker) Locker {
	return mutex{Locker: l}
}

// FileLock returns an exclusive lock on path, to share among the worker processes of a fanout.ProcessPool.
// Every process must use the same path.
func FileLock(path string) Locker {
	return flock.New(path)
}

// PrinterStage writes each item it receives on its own line.
type PrinterStage[T any] struct {
	guard
	out io.Writer
}

// Printer builds a PrinterStage writing to out, or to os.Stdout when out is nil.
func Printer[T any](out io.Writer) *PrinterStage[T] {
	if out == nil {
		out = os.Stdout
	}
	return &PrinterStage[T]{guard: guard{name: "printer"}, out: out}
}

func (s *PrinterStage[T]) Send(item T) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.out, item)
	return err
}

func (s *PrinterStage[T]) Close() error {
	return s.close()
}

// LockingPrinterStage is a PrinterStage holding a lock around each write.
type LockingPrinterStage[T any] struct {
	PrinterStage[T]
	lock Locker
}

// LockingPrinter builds a LockingPrinterStage writing to out (os.Stdout when nil) while holding lock.
func LockingPrinter[T any](lock Locker, out io.Writer) *LockingPrinterStage[T] {
	p := Printer[T](out)
	p.name = "locking printer"
	return &LockingPrinterStage[T]{PrinterStage: *p, lock: lock}
}

func (s *LockingPrinterStage[T]) Send(item T) (err error) {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking printer: %w", err)
	}
	defer func() {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("locking printer: %w", uerr)
		}
	}()
	_, err = fmt.Fprintln(s.out, item)
	return err
}
