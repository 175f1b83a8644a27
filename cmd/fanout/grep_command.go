package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fogfactory/fanout"
	"github.com/fogfactory/fanout/internal/config"
	"github.com/fogfactory/fanout/internal/logging"
	"github.com/fogfactory/fanout/stages"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const grepWorkerFactory = "grep"

// workerPool is what the command needs from both pool flavours.
type workerPool interface {
	fanout.Stage[string]
	Wait()
	Errors() <-chan *fanout.WorkerError
	Stats() fanout.Stats
}

func newGrepCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grep PATTERN DIR...",
		Short: "Print the lines matching PATTERN in the files under each DIR",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag, cmd.Flags(), map[string]any{"pattern": args[0]})
			if err != nil {
				return err
			}
			log := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
			return runGrep(cfg, args[1:], cmd.OutOrStdout(), cmd.ErrOrStderr(), log)
		},
	}

	cmd.Flags().IntP("workers", "w", 0, "Number of workers (defaults to the CPU count)")
	cmd.Flags().Int("capacity", 0, "Maximum number of pending files, 0 for unbounded")
	cmd.Flags().String("mode", config.ModeGoroutine, "Worker kind: goroutine or process")
	cmd.Flags().String("glob", "", "Only grep files matching this pattern, such as **/*.go")
	cmd.Flags().String("lock-file", "", "Lock file shared by worker processes")

	return cmd
}

func runGrep(cfg *config.Config, dirs []string, stdout, stderr io.Writer, log zerolog.Logger) error {
	pool, err := newGrepPool(cfg, stdout, stderr, log)
	if err != nil {
		return err
	}

	var head fanout.Stage[string] = pool
	if cfg.Glob != "" {
		if head, err = stages.Glob(cfg.Glob, pool); err != nil {
			_ = pool.Close()
			pool.Wait()
			return err
		}
	}
	walk := stages.DirWalk(head)

	var errs []error
	for _, dir := range dirs {
		if err := walk.Send(dir); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if err := walk.Close(); err != nil {
		errs = append(errs, err)
	}
	pool.Wait()

	for werr := range pool.Errors() {
		errs = append(errs, werr)
	}
	stats := pool.Stats()
	log.Info().
		Int64("files", stats.Processed).
		Int64("failed_workers", stats.Failed).
		Msg("grep done")
	return errors.Join(errs...)
}

func newGrepPool(cfg *config.Config, stdout, stderr io.Writer, log zerolog.Logger) (workerPool, error) {
	opts := []fanout.Option{
		fanout.WithCapacity(cfg.Capacity),
		fanout.WithLogger(log),
	}
	switch cfg.Mode {
	case config.ModeProcess:
		opts = append(opts,
			fanout.WithWorkerOutput(&syncWriter{w: stdout}, &syncWriter{w: stderr}),
			fanout.WithWorkerEnv(cfg.WorkerEnv()...),
		)
		return fanout.NewProcessPool[string](cfg.Workers, grepWorkerFactory, opts...)
	default:
		lock := stages.Mutex(&sync.Mutex{})
		return fanout.NewPool(cfg.Workers, func() (fanout.Stage[string], error) {
			return grepStage(cfg.Pattern, lock, stdout)
		}, opts...)
	}
}

// grepStage builds the private stages of a worker: read the file, keep matching lines, print them under lock.
func grepStage(pattern string, lock stages.Locker, out io.Writer) (fanout.Stage[string], error) {
	grep, err := stages.Grep(pattern, stages.LockingPrinter[string](lock, out))
	if err != nil {
		return nil, err
	}
	return stages.Cat(grep), nil
}

// workerGrepStage is the grep factory of worker processes, configured by the environment set by the parent.
func workerGrepStage() (fanout.Stage[string], error) {
	cfg, err := config.Load("", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("worker config: %w", err)
	}
	return grepStage(cfg.Pattern, stages.FileLock(cfg.LockFile), os.Stdout)
}

// syncWriter serialises the copies of the worker processes output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
