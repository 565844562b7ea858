package era

import (
	"fmt"
	"reflect"
)

// Value is an epoch-staged record: as of Era the effective value is Value,
// and from Era+1 on it is ValueAfter.
type Value[T any] struct {
	Era        uint64
	Value      T
	ValueAfter T
}

func (v Value[T]) fields() (uint64, any, any) {
	return v.Era, v.Value, v.ValueAfter
}

// Current is a resolved display pair. After is nil when there is nothing
// to show for the next era.
type Current[T any] struct {
	Current T
	After   *T
}

// HasChange reports whether After is present and differs from Current
// according to equal.
func (c Current[T]) HasChange(equal func(a, b T) bool) bool {
	if c.After == nil {
		return false
	}
	return !equalOrDeep(equal)(c.Current, *c.After)
}

// IndexReader reads the current era index. ok is false while the index is
// unknown.
type IndexReader interface {
	CurrentIndex() (index uint64, ok bool)
}

// IndexFunc adapts a function to IndexReader.
type IndexFunc func() (uint64, bool)

// CurrentIndex calls f.
func (f IndexFunc) CurrentIndex() (uint64, bool) {
	return f()
}

// Fixed returns an IndexReader that always reports index.
func Fixed(index uint64) IndexReader {
	return IndexFunc(func() (uint64, bool) { return index, true })
}

// Unknown is an IndexReader whose index is never known.
var Unknown IndexReader = IndexFunc(func() (uint64, bool) { return 0, false })

// ResolveFunc resolves v against the era index read from idx.
//
// When the index is known and past v.Era, the change has taken effect and
// both sides are ValueAfter. Otherwise Current is Value, and After is Value
// again when equal reports no change, or ValueAfter when it does. A nil idx
// is treated as unknown; a nil equal falls back to reflect.DeepEqual.
func ResolveFunc[T any](v Value[T], idx IndexReader, equal func(a, b T) bool) Current[T] {
	if idx != nil {
		if cur, ok := idx.CurrentIndex(); ok && cur > v.Era {
			after := v.ValueAfter
			return Current[T]{Current: v.ValueAfter, After: &after}
		}
	}

	after := v.ValueAfter
	if equalOrDeep(equal)(v.Value, v.ValueAfter) {
		after = v.Value
	}
	return Current[T]{Current: v.Value, After: &after}
}

// Map applies fn to Current, and to After when present.
func Map[T, U any](v Current[T], fn func(T) U) Current[U] {
	out := Current[U]{Current: fn(v.Current)}
	if v.After != nil {
		after := fn(*v.After)
		out.After = &after
	}
	return out
}

// DisplayString formats v as "current", followed by " (after)" whenever
// After is present.
func DisplayString[T any](v Current[T], format func(T) string) string {
	cur := format(v.Current)
	if v.After == nil {
		return cur
	}
	return fmt.Sprintf("%s (%s)", cur, format(*v.After))
}

// Collapse drops After when it equals Current, leaving only genuine pending
// changes for DisplayString to annotate. A nil equal falls back to
// reflect.DeepEqual.
func Collapse[T any](v Current[T], equal func(a, b T) bool) Current[T] {
	if v.HasChange(equal) {
		return v
	}
	return Current[T]{Current: v.Current}
}

func equalOrDeep[T any](equal func(a, b T) bool) func(a, b T) bool {
	if equal != nil {
		return equal
	}
	return func(a, b T) bool {
		return reflect.DeepEqual(a, b)
	}
}
