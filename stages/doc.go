// Package stages provides simple sequential stages to compose with fanout pools: file line reading, pattern
// filtering, directory walking, predicate filtering and printing sinks.
//
// None of them is safe for concurrent use, except LockingPrinter which serialises its writes with a caller owned
// Locker, and Collector. Give each pool worker its own copy through a fanout.Factory.
package stages
