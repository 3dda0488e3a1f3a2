package serializer

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPackSerializer 与 json 共用 json 标签，interface 中的整数统一解码为 int64/uint64
type MsgPackSerializer[T any] struct{}

func NewMsgPackSerializer[T any]() *MsgPackSerializer[T] {
	return &MsgPackSerializer[T]{}
}

func (s *MsgPackSerializer[T]) Serialize(from T) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(from); err != nil {
		return nil, errors.Wrap(err, "msgpack encode failed")
	}
	return buf.Bytes(), nil
}

func (s *MsgPackSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	dec := msgpack.NewDecoder(bytes.NewReader(to))
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&result); err != nil {
		return result, errors.Wrap(err, "msgpack decode failed")
	}
	return result, nil
}
