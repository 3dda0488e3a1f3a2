package serializer

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONSerializer 便于在 redis 中直接查看缓存内容，数字解码为 float64
type JSONSerializer[T any] struct{}

func NewJSONSerializer[T any]() *JSONSerializer[T] {
	return &JSONSerializer[T]{}
}

func (s *JSONSerializer[T]) Serialize(from T) ([]byte, error) {
	data, err := json.Marshal(from)
	if err != nil {
		return nil, errors.Wrap(err, "json marshal failed")
	}
	return data, nil
}

func (s *JSONSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	if err := json.Unmarshal(to, &result); err != nil {
		return result, errors.Wrap(err, "json unmarshal failed")
	}
	return result, nil
}
