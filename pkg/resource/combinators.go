package resource

import (
	"github.com/vango-dev/stakeview/internal/errors"
)

// Tuple is the positional data of a merged state. An entry is nil when the
// corresponding input had no data.
type Tuple []any

// Merge combines states into one. Loading is true if any input is loading.
// Err is the first non-nil error in argument order. Data is always the full
// tuple of every input's data, whether or not all inputs have finished: check
// Loading and Err before trusting its contents.
//
// Because Loading is a plain OR, a merged state may carry both Loading and
// Err; Match gives Err precedence.
func Merge(states ...Status) State[Tuple] {
	return merge(states, false)
}

// MergeLast is Merge with the opposite error precedence: Err is the last
// non-nil error in argument order. Loading and Data are computed exactly as
// in Merge.
func MergeLast(states ...Status) State[Tuple] {
	return merge(states, true)
}

func merge(states []Status, lastErr bool) State[Tuple] {
	var out State[Tuple]
	tuple := make(Tuple, len(states))
	for i, st := range states {
		loading, err, data := st.status()
		out.Loading = out.Loading || loading
		if err != nil && (out.Err == nil || lastErr) {
			out.Err = err
		}
		tuple[i] = data
	}
	out.Data = &tuple
	return out
}

// Pair is the typed data of Merge2.
type Pair[A, B any] struct {
	First  *A
	Second *B
}

// Triple is the typed data of Merge3.
type Triple[A, B, C any] struct {
	First  *A
	Second *B
	Third  *C
}

// Merge2 is Merge for two typed states.
func Merge2[A, B any](a State[A], b State[B]) State[Pair[A, B]] {
	m := Merge(a, b)
	return State[Pair[A, B]]{
		Loading: m.Loading,
		Err:     m.Err,
		Data:    &Pair[A, B]{First: a.Data, Second: b.Data},
	}
}

// Merge3 is Merge for three typed states.
func Merge3[A, B, C any](a State[A], b State[B], c State[C]) State[Triple[A, B, C]] {
	m := Merge(a, b, c)
	return State[Triple[A, B, C]]{
		Loading: m.Loading,
		Err:     m.Err,
		Data:    &Triple[A, B, C]{First: a.Data, Second: b.Data, Third: c.Data},
	}
}

// Complete reports whether every entry of a Pair is present.
func (p Pair[A, B]) Complete() bool {
	return p.First != nil && p.Second != nil
}

// Complete reports whether every entry of a Triple is present.
func (t Triple[A, B, C]) Complete() bool {
	return t.First != nil && t.Second != nil && t.Third != nil
}

// Map transforms the data of s with fn. fn only runs when data is present;
// Loading and Err pass through. An error returned by fn, or a panic inside
// it, becomes the Err of the result (with Loading false and no data), so Map
// never panics into its caller. An Err already on s takes precedence over a
// transform failure.
func Map[T, U any](s State[T], fn func(T) (U, error)) State[U] {
	out := State[U]{Loading: s.Loading, Err: s.Err}
	if s.Data == nil {
		return out
	}
	u, err := catch(errors.CodeTransformPanic, func() (U, error) {
		return fn(*s.Data)
	})
	if err != nil {
		if s.Err != nil {
			return State[U]{Err: s.Err}
		}
		return State[U]{Err: transformError(err)}
	}
	out.Data = &u
	return out
}

// MapValue is Map for a transform that cannot fail.
func MapValue[T, U any](s State[T], fn func(T) U) State[U] {
	return Map(s, func(v T) (U, error) {
		return fn(v), nil
	})
}

// transformError tags a transform failure. Panics already carry a code.
func transformError(err error) error {
	if errors.HasCode(err, errors.CodeTransformPanic) {
		return err
	}
	return errors.New(errors.CodeTransformFailed).Wrap(err)
}
