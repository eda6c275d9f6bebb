package containers

import "iter"

// Result carries either a value or the error that prevented producing it.
type Result[T any] struct {
	Value T
	Err   error
}

func (r *Result[T]) IsErr() bool {
	return r.Err != nil
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Collect drains seq into a slice, stopping at the first Err result.
// The values gathered before the error are returned alongside it.
func Collect[T any](seq iter.Seq[Result[T]]) ([]T, error) {
	var values []T
	for res := range seq {
		if res.IsErr() {
			return values, res.Err
		}
		values = append(values, res.Value)
	}
	return values, nil
}
