package messaging

import (
	"encoding/json"
	"fmt"
)

// EmptyObjectOr is a value that is either absent, serialized as exactly {}, or present.
//
// A non-empty JSON object that does not decode into T, or that fails T's Validate method, is rejected.
type EmptyObjectOr[T any] struct {
	value   T
	present bool
}

type validator interface {
	Validate() error
}

// Present wraps a value.
func Present[T any](value T) EmptyObjectOr[T] {
	return EmptyObjectOr[T]{value: value, present: true}
}

// Absent returns the empty case.
func Absent[T any]() EmptyObjectOr[T] {
	return EmptyObjectOr[T]{}
}

func (o EmptyObjectOr[T]) IsPresent() bool {
	return o.present
}

// Get returns the value and whether it is present.
func (o EmptyObjectOr[T]) Get() (T, bool) {
	return o.value, o.present
}

// MustGet returns the value, panicking if it is absent.
func (o EmptyObjectOr[T]) MustGet() T {
	if !o.present {
		panic(fmt.Sprintf("EmptyObjectOr[%T] is absent", o.value))
	}
	return o.value
}

func (o EmptyObjectOr[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("{}"), nil
	}
	return json.Marshal(o.value)
}

func (o *EmptyObjectOr[T]) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	if len(fields) == 0 {
		*o = Absent[T]()
		return nil
	}

	var value T
	if err = json.Unmarshal(data, &value); err != nil {
		return err
	}

	if v, ok := any(&value).(validator); ok {
		if err = v.Validate(); err != nil {
			return err
		}
	}

	*o = Present(value)
	return nil
}

func (o EmptyObjectOr[T]) String() string {
	if !o.present {
		return "{}"
	}
	return fmt.Sprintf("%v", o.value)
}

// decodeObject unmarshals data as a JSON object. JSON null and non-object values are rejected.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	if fields == nil {
		return nil, fmt.Errorf("expected a JSON object, got %s", data)
	}

	return fields, nil
}
