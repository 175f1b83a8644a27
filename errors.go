package fanout

import (
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("stage closed")
	ErrInvalidPool     = errors.New("invalid pool")
	ErrQueueFull       = errors.New("queue full")
	ErrUnknownFactory  = errors.New("unknown worker factory")
	ErrNotTransferable = errors.New("item not transferable")
	ErrProtocol        = errors.New("worker protocol violation")
)

// Phase names the step of a worker life in which a failure occurred.
type Phase string

const (
	PhaseConstruct Phase = "construct" // the factory failed, the worker never started
	PhaseSend      Phase = "send"      // the private stage rejected an item
	PhaseClose     Phase = "close"     // the private stage failed to close
	PhasePanic     Phase = "panic"
	PhaseProcess   Phase = "process" // a worker process could not be started, crashed or broke the protocol
)

// WorkerError reports the termination of a worker on failure.
type WorkerError struct {
	Worker int
	Phase  Phase
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d failed on %s: %v", e.Worker, e.Phase, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// PartialBroadcastError is returned by Broadcast.Send when a target fails. Targets after Index were not attempted.
type PartialBroadcastError struct {
	Index     int // index of the failing target, in NewBroadcast argument order
	Delivered int // number of targets which received the item, nil targets excluded
	Err       error
}

func (e *PartialBroadcastError) Error() string {
	return fmt.Sprintf("broadcast stopped at target %d (%d delivered): %v", e.Index, e.Delivered, e.Err)
}

func (e *PartialBroadcastError) Unwrap() error { return e.Err }
