package entity

// Optional tags a parsed value with whether the feed actually reported it.
// Value holds the field's zero default when Present is false.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns a present value
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// None returns an absent value
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Ptr returns a pointer to the value, or nil when absent
func (o Optional[T]) Ptr() *T {
	if !o.Present {
		return nil
	}
	v := o.Value
	return &v
}
