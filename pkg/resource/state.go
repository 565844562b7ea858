package resource

// State is the outcome of an asynchronous unit of work.
//
// Err is only set as the terminal outcome of a failed generation, and then
// Loading is false. Loading may be true while Data still holds the previous
// value: that is a retain-current refetch, not an inconsistency.
// Data is nil before the first success or after a clearing refetch.
// Data must be treated as read-only; it is shared between snapshots.
type State[T any] struct {
	Loading bool
	Data    *T
	Err     error
}

// Ready reports whether data is present.
func (s State[T]) Ready() bool {
	return s.Data != nil
}

// Value returns the data and whether it is present.
func (s State[T]) Value() (T, bool) {
	if s.Data == nil {
		var zero T
		return zero, false
	}
	return *s.Data, true
}

// DataOr returns the data, or fallback when absent.
func (s State[T]) DataOr(fallback T) T {
	if s.Data == nil {
		return fallback
	}
	return *s.Data
}

// Idle reports whether the state is neither loading nor failed.
func (s State[T]) Idle() bool {
	return !s.Loading && s.Err == nil
}

// Status is implemented by every State[T]; it lets Merge take states of
// different data types in one variadic call.
type Status interface {
	status() (loading bool, err error, data any)
}

func (s State[T]) status() (bool, error, any) {
	if s.Data == nil {
		return s.Loading, s.Err, nil
	}
	return s.Loading, s.Err, *s.Data
}

// Of returns a settled State holding v.
func Of[T any](v T) State[T] {
	return State[T]{Data: &v}
}

// Failed returns a settled State holding err.
func Failed[T any](err error) State[T] {
	return State[T]{Err: err}
}

// Pending returns a loading State without data.
func Pending[T any]() State[T] {
	return State[T]{Loading: true}
}
