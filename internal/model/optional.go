package model

import "encoding/json"

// Optional описывает поле частичного обновления.
// Set=false означает, что поле не передано; Set=true с нулевым Value - что передан null.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some возвращает переданное поле со значением v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON помечает поле переданным, даже если в JSON пришёл null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON кодирует значение поля.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
