package fanout

import (
	"fmt"
	"sync"
)

// entry is a queue slot. A sentinel entry carries no item and terminates exactly one worker.
type entry[T any] struct {
	item     T
	sentinel bool
}

// queue is a FIFO shared by one producer and several competing consumers.
// A capacity of 0 means unbounded. Sentinels are never refused.
type queue[T any] struct {
	mu       sync.Mutex
	ready    *sync.Cond
	entries  []entry[T]
	items    int // entries which are not sentinels
	capacity int
}

func newQueue[T any](capacity int) *queue[T] {
	q := &queue[T]{capacity: max(capacity, 0)}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// put appends an item. It never blocks: a full bounded queue refuses the item.
func (q *queue[T]) put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && q.items >= q.capacity {
		return fmt.Errorf("%w: %d items pending", ErrQueueFull, q.items)
	}
	q.entries = append(q.entries, entry[T]{item: item})
	q.items++
	q.ready.Signal()
	return nil
}

// putSentinels appends n sentinels.
func (q *queue[T]) putSentinels(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for range n {
		q.entries = append(q.entries, entry[T]{sentinel: true})
	}
	q.ready.Broadcast()
}

// get blocks until an entry is available and removes it.
func (q *queue[T]) get() entry[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.entries) == 0 {
		q.ready.Wait()
	}
	e := q.entries[0]
	q.entries[0] = entry[T]{} // release the item for the GC
	q.entries = q.entries[1:]
	if !e.sentinel {
		q.items--
	}
	return e
}

// len returns the number of pending entries, sentinels included.
func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
