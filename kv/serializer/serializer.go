package serializer

import (
	"github.com/pkg/errors"
)

type Serializer[F, T any] interface {
	Serialize(from F) (T, error)
	Deserialize(to T) (F, error)
}

// NewByteSerializer 按名称创建字节序列化器：msgpack（默认）, json
func NewByteSerializer[T any](name string) (Serializer[T, []byte], error) {
	switch name {
	case "", "msgpack":
		return NewMsgPackSerializer[T](), nil
	case "json":
		return NewJSONSerializer[T](), nil
	default:
		return nil, errors.Errorf("unsupported serializer: %s", name)
	}
}
