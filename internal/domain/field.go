package domain

import "encoding/json"

// Field is an optional value in a sparse update. The zero Field means "not
// provided"; a Field with Set=true and a nil pointer Value clears the target.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a provided Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the field as provided whenever the key is present,
// including an explicit null.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	return json.Unmarshal(data, &f.Value)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
