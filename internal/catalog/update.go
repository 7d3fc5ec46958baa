package catalog

// Update is a tri-state patch value: Unchanged leaves the field alone, Set
// carries a new value, Unset clears an optional field to nil/empty.
// Grounded on original_source/sonar/src/types/value_update.rs's
// ValueUpdate<T> enum, rendered without Rust's algebraic-type sugar.
type Update[T any] struct {
	op    updateOp
	value T
}

type updateOp int

const (
	updateUnchanged updateOp = iota
	updateSet
	updateUnset
)

// SetValue returns an Update that sets the field to value.
func SetValue[T any](value T) Update[T] { return Update[T]{op: updateSet, value: value} }

// UnsetValue returns an Update that clears the field.
func UnsetValue[T any]() Update[T] { return Update[T]{op: updateUnset} }

// Unchanged returns an Update that leaves the field alone. It is also the
// zero value of Update[T], so a zero-valued patch struct is a no-op patch.
func Unchanged[T any]() Update[T] { return Update[T]{} }

// IsUnchanged reports whether the update carries no change.
func (u Update[T]) IsUnchanged() bool { return u.op == updateUnchanged }

// IsSet reports whether the update sets a new value, returning it.
func (u Update[T]) IsSet() (T, bool) { return u.value, u.op == updateSet }

// IsUnset reports whether the update clears the field.
func (u Update[T]) IsUnset() bool { return u.op == updateUnset }

// Apply returns the value current should take on after the update: current
// if Unchanged, the new value if Set, or the zero value of T if Unset.
func (u Update[T]) Apply(current T) T {
	switch u.op {
	case updateSet:
		return u.value
	case updateUnset:
		var zero T
		return zero
	default:
		return current
	}
}
