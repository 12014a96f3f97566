package cache

import "github.com/vmihailenco/msgpack/v5"

// Codec кодирует значения V в []byte для хранения в кэше.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Msgpack — Codec поверх vmihailenco/msgpack/v5. Нулевое значение готово к работе.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
