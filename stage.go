package fanout

// Stage defines a pipeline element receiving pushed items.
//
// Send must not be called after Close. Close releases the stage and closes every stage it forwards to.
// Stages of this module return an error wrapping ErrClosed when used after Close, including on a second Close.
type Stage[T any] interface {
	Send(item T) error
	Close() error
}

// Factory builds one fresh downstream stage graph. Pools call it once per worker, so workers never share a stage.
type Factory[T any] func() (Stage[T], error)

// StageFunc adapts a function into a terminal Stage. Its Close does nothing, so it must not wrap another stage:
// use Map to transform items in front of a stage.
type StageFunc[T any] func(item T) error

// Send calls f.
func (f StageFunc[T]) Send(item T) error {
	return f(item)
}

// Close is a no-op.
func (f StageFunc[T]) Close() error {
	return nil
}

// FactoryOf returns a factory which always succeeds, calling build on each invocation.
func FactoryOf[T any](build func() Stage[T]) Factory[T] {
	return func() (Stage[T], error) { return build(), nil }
}
