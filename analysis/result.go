package analysis

import (
	"encoding/json"
	"fmt"
)

/*
Result is either a definite value or an "unknown" marker for queries which were
never computed. Unknown results are serialized as null.
*/
type Result[T any] struct {
	value T
	known bool
}

func Known[T any](v T) Result[T] {
	return Result[T]{value: v, known: true}
}

func Unknown[T any]() Result[T] {
	return Result[T]{}
}

func (r Result[T]) IsKnown() bool { return r.known }

// Get returns the value and true when the result is known.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.known
}

// MustGet returns the value, panics when the result is unknown.
func (r Result[T]) MustGet() T {
	if !r.known {
		panic(fmt.Sprintf("result of type %T is not known", r.value))
	}
	return r.value
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.known {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Unknown[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Known(v)
	return nil
}

func (r Result[T]) MarshalYAML() (any, error) {
	if !r.known {
		return nil, nil
	}
	return r.value, nil
}
