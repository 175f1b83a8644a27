/*
fanout allows to chain push-based stages and to spread a stream of items over a fixed pool of workers.

Every pipeline element implements Stage: Send pushes one item, Close releases the stage and closes everything it forwards to.
Stages are composed by reference, so a Broadcast, a Pool or a ProcessPool is itself a Stage and can be nested freely.

For instance, with the adapters of the stages sub package:

  - DirWalk sends every file path found under a directory
  - the paths enter a Pool of 4 workers. Each worker builds its own private copy of the downstream stages through a Factory
  - each worker runs Cat, then Grep, then a LockingPrinter sharing a lock owned by the caller
  - closing DirWalk closes the Pool, which enqueues one sentinel per worker. Each worker stops on its sentinel and closes its private stages.

Two pool flavours share the same engine:

  - Pool runs its workers as goroutines (on an ants pool) sharing memory.
  - ProcessPool runs its workers as child processes re-executing the current binary. Items cross the process boundary
    through a Codec, wrapped in an Envelope. The binary must call WorkerMain early in main (or TestMain) and register
    its factories with RegisterFactory.

Shutdown is driven by Close: it enqueues the sentinels and returns at once, without waiting for workers. Use Wait to block until
every worker has terminated. Stop is cooperative and best effort: a worker blocked on an empty queue only notices it once
a new entry arrives.

A worker whose downstream stage fails terminates: the pool keeps running with one worker less. Failures are reported on Errors.
*/

package fanout
