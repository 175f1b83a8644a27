package benchmark

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/fogfactory/fanout"
	"github.com/samber/lo"
)

// Profile generates a profile file. It will be outputted as fanout_{date}_items{itemCount}_{poolsizes}.prof.
//
// - itemCount Number of items sent to each pool.
// - poolSizes Pool sizes. One pool is run for each of them, one after the other.
//
// use pprof to read the file (go install github.com/google/pprof@latest).
func Profile(itemCount int, poolSizes ...int) {
	// Profile file
	f, err := os.Create(fmt.Sprintf("fanout_%s_items%d_%s.prof",
		strings.ReplaceAll(time.Now().Truncate(time.Second).Format(time.DateTime), " ", "-"),
		itemCount,
		strings.Join(lo.Map(poolSizes, func(item, _ int) string { return fmt.Sprint(item) }), "-")))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer f.Close()

	dumbStage := fanout.FactoryOf(func() fanout.Stage[int] {
		return fanout.StageFunc[int](func(int) error { time.Sleep(time.Millisecond); return nil })
	})
	fmt.Println("items: ", itemCount, ", minimal seq duration:", time.Duration(itemCount)*time.Millisecond)

	// Start profiling
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()

	for _, size := range poolSizes {
		pool, err := fanout.NewPool(size, dumbStage)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		start := time.Now()
		for i := range itemCount {
			_ = pool.Send(i)
		}
		_ = pool.Close()
		pool.Wait()
		fmt.Printf("(pool %d: %s)\n", size, time.Since(start))
	}
	fmt.Printf("profile:%s\n", f.Name())

	// Call pprof on a file
	// pprof -http=:8080 $file
}
