// Command fanout greps the files of directory trees, spreading the files over a pool of workers.
package main

import (
	"fmt"
	"os"

	"github.com/fogfactory/fanout"
)

func init() {
	fanout.RegisterFactory(grepWorkerFactory, workerGrepStage)
}

func main() {
	fanout.WorkerMain()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
