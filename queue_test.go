package fanout

import (
	"slices"
	"sync"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"
)

func TestQueue(t *testing.T) {

	t.Run("fifo", func(t *testing.T) {
		q := newQueue[int](0)
		for _, i := range lo.Range(5) {
			td.Require(t).CmpNoError(q.put(i))
		}
		q.putSentinels(1)

		var got []int
		for e := q.get(); !e.sentinel; e = q.get() {
			got = append(got, e.item)
		}
		td.Cmp(t, got, lo.Range(5))
		td.Cmp(t, q.len(), 0)
	})

	t.Run("capacity_ignores_sentinels", func(t *testing.T) {
		q := newQueue[int](2)
		td.CmpNoError(t, q.put(1))
		td.CmpNoError(t, q.put(2))
		td.CmpErrorIs(t, q.put(3), ErrQueueFull)
		q.putSentinels(3)
		td.Cmp(t, q.len(), 5)

		q.get()
		td.CmpNoError(t, q.put(3), "room freed by get")
	})

	t.Run("competing_consumers", func(t *testing.T) {
		// Arrange
		const consumers = 4
		q := newQueue[int](0)
		results := make([][]int, consumers)
		var wg sync.WaitGroup
		for c := range consumers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for e := q.get(); !e.sentinel; e = q.get() {
					results[c] = append(results[c], e.item)
				}
			}()
		}

		// Act
		for _, i := range lo.Range(1000) {
			td.Require(t).CmpNoError(q.put(i))
		}
		q.putSentinels(consumers)
		wg.Wait()

		// Assert
		td.CmpBag(t, lo.Flatten(results), lo.Map(lo.Range(1000), func(i, _ int) any { return i }))
		for _, r := range results {
			td.CmpTrue(t, slices.IsSorted(r), "a consumer sees items in queue order")
		}
	})
}
