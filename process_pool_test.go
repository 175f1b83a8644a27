package fanout_test

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/fogfactory/fanout"
	"github.com/fogfactory/fanout/stages"
	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"
)

// echo prints what it receives, then "closed" when closed.
type echo struct{}

func (echo) Send(i int) error {
	_, err := fmt.Fprintf(os.Stdout, "item %d\n", i)
	return err
}

func (echo) Close() error {
	_, err := fmt.Fprintln(os.Stdout, "closed")
	return err
}

func init() {
	fanout.RegisterFactory("echo", fanout.FactoryOf(func() fanout.Stage[int] { return echo{} }))
	fanout.RegisterFactory("fail-on-3", fanout.FactoryOf(func() fanout.Stage[int] {
		return fanout.StageFunc[int](func(i int) error {
			if i == 3 {
				return errBoom
			}
			return echo{}.Send(i)
		})
	}))
	fanout.RegisterFactory("broken", func() (fanout.Stage[int], error) { return nil, errBoom })
	fanout.RegisterFactory("words", fanout.FactoryOf(func() fanout.Stage[string] {
		return stages.Printer[string](nil)
	}))
}

func TestMain(m *testing.M) {
	fanout.WorkerMain() // exits when run as a worker process
	os.Exit(m.Run())
}

// InitProcessPool builds a process pool whose workers write on a returned buffer.
func InitProcessPool[T any](t testing.TB, size int, name string, opts ...fanout.Option) (*fanout.ProcessPool[T], *syncBuffer) {
	if runtime.GOOS == "windows" {
		t.Skip("worker processes need inherited file descriptors")
	}
	var out syncBuffer
	opts = append([]fanout.Option{fanout.WithWorkerOutput(&out, os.Stderr)}, opts...)
	pool, err := fanout.NewProcessPool[T](size, name, opts...)
	td.Require(t).CmpNoError(err)
	t.Cleanup(func() {
		_ = pool.Close()
		pool.Wait()
	})
	return pool, &out
}

// failingCodec refuses to encode anything.
type failingCodec struct{}

func (failingCodec) Marshal(any) ([]byte, error) { return nil, errBoom }
func (failingCodec) Unmarshal([]byte, any) error { return errBoom }

func itemLines(out *syncBuffer) []any {
	return lo.FilterMap(out.Lines(), func(line string, _ int) (any, bool) {
		return line, strings.HasPrefix(line, "item ")
	})
}

func expectedItemLines(items []int) []any {
	return lo.Map(items, func(i, _ int) any { return fmt.Sprintf("item %d", i) })
}

func TestProcessPool(t *testing.T) {

	t.Run("scenario_a_items_split_over_two_processes", func(t *testing.T) {
		// Arrange
		pool, out := InitProcessPool[int](t, 2, "echo")
		input := lo.RangeFrom(1, 10)

		// Act
		for _, i := range input {
			td.Require(t).CmpNoError(pool.Send(i))
		}
		td.CmpNoError(t, pool.Close())
		pool.Wait()

		// Assert
		td.CmpBag(t, itemLines(out), expectedItemLines(input))
		td.Cmp(t, lo.Count(out.Lines(), "closed"), 2, "each private stage is closed once")
		td.Cmp(t, pool.Stats().Terminated, int64(2))
		td.Cmp(t, pool.Stats().Processed, int64(10))
		td.CmpLen(t, lo.ChannelToSlice(pool.Errors()), 0)
	})

	t.Run("scenario_c_close_without_items", func(t *testing.T) {
		// Arrange
		pool, out := InitProcessPool[int](t, 3, "echo")

		// Act
		td.CmpNoError(t, pool.Close())
		pool.Wait()

		// Assert
		td.Cmp(t, out.Lines(), []string{"closed", "closed", "closed"})
		td.Cmp(t, pool.State(), fanout.StateTerminated)
	})

	t.Run("scenario_d_failing_process", func(t *testing.T) {
		// Arrange
		pool, out := InitProcessPool[int](t, 2, "fail-on-3")

		// Act
		for _, i := range lo.RangeFrom(1, 10) {
			td.Require(t).CmpNoError(pool.Send(i))
		}
		td.CmpNoError(t, pool.Close())
		pool.Wait()

		// Assert
		td.CmpBag(t, itemLines(out), expectedItemLines([]int{1, 2, 4, 5, 6, 7, 8, 9, 10}))
		errs := lo.ChannelToSlice(pool.Errors())
		td.Require(t).Len(errs, 1)
		td.Cmp(t, errs[0].Phase, fanout.PhaseSend)
		td.CmpContains(t, errs[0].Error(), errBoom.Error())
		td.Cmp(t, pool.Stats().Terminated, int64(1))
	})

	t.Run("stop_does_not_wake_idle_worker", func(t *testing.T) {
		// Arrange
		pool, out := InitProcessPool[int](t, 1, "echo")
		td.Require(t).CmpNoError(pool.Send(1))
		waitFor(t, func() bool { return len(out.Lines()) == 1 }, "first item printed")
		settle()

		// Act
		pool.Stop()

		// Assert
		select {
		case <-pool.Done():
			t.Fatal("an idle feeder cannot observe Stop")
		case <-time.After(100 * time.Millisecond):
		}
		td.CmpNoError(t, pool.Send(2)) // wakes the feeder up
		pool.Wait()
		td.Cmp(t, out.Lines(), []string{"item 1", "item 2", "closed"}, "the waking entry is forwarded, then the child is closed")
		td.Cmp(t, pool.State(), fanout.StateTerminated)
		td.Cmp(t, pool.Stats().Terminated, int64(1))
		td.Cmp(t, pool.Stats().Pending, 0)
		td.CmpLen(t, lo.ChannelToSlice(pool.Errors()), 0)
	})

	t.Run("construction_error", func(t *testing.T) {
		// Arrange
		pool, _ := InitProcessPool[int](t, 2, "broken")

		// Act
		pool.Wait() // workers die on their own

		// Assert
		errs := lo.ChannelToSlice(pool.Errors())
		td.CmpLen(t, errs, 2)
		for _, err := range errs {
			td.Cmp(t, err.Phase, fanout.PhaseConstruct)
		}
	})

	t.Run("unknown_factory", func(t *testing.T) {
		// Arrange
		pool, _ := InitProcessPool[int](t, 1, "does-not-exist")

		// Act
		pool.Wait()

		// Assert
		errs := lo.ChannelToSlice(pool.Errors())
		td.Require(t).Len(errs, 1)
		td.CmpContains(t, errs[0].Error(), fanout.ErrUnknownFactory.Error())
	})

	t.Run("string_items", func(t *testing.T) {
		// Arrange
		pool, out := InitProcessPool[string](t, 2, "words")
		words := []string{"alpha", "beta", "gamma", "delta"}

		// Act
		for _, w := range words {
			td.Require(t).CmpNoError(pool.Send(w))
		}
		td.CmpNoError(t, pool.Close())
		pool.Wait()

		// Assert
		td.CmpBag(t, out.Lines(), lo.Map(words, func(w string, _ int) any { return w }))
	})

	t.Run("item_not_transferable", func(t *testing.T) {
		// Arrange
		pool, _ := InitProcessPool[int](t, 1, "echo", fanout.WithCodec(failingCodec{}))

		// Act
		err := pool.Send(1)

		// Assert
		td.CmpErrorIs(t, err, fanout.ErrNotTransferable)
		td.CmpErrorIs(t, err, errBoom)
		td.Cmp(t, pool.Stats().Sent, int64(0))
	})

	t.Run("closed_pool", func(t *testing.T) {
		// Arrange
		pool, _ := InitProcessPool[int](t, 1, "echo")

		// Act
		td.CmpNoError(t, pool.Close())

		// Assert
		td.CmpErrorIs(t, pool.Send(1), fanout.ErrClosed)
		td.CmpErrorIs(t, pool.Close(), fanout.ErrClosed)
	})

	t.Run("invalid_pool", func(t *testing.T) {
		_, err := fanout.NewProcessPool[int](0, "echo")
		td.CmpErrorIs(t, err, fanout.ErrInvalidPool)
		_, err = fanout.NewProcessPool[int](1, "")
		td.CmpErrorIs(t, err, fanout.ErrInvalidPool)
	})
}
