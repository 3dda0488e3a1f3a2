package store

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/hatlonely/dbo/kv/serializer"
	"github.com/pkg/errors"
)

type FreeCacheStoreOptions struct {
	// 缓存大小（字节），freecache 最小 512KB
	Size       int           `cfg:"size" def:"33554432"`
	DefaultTTL time.Duration `cfg:"defaultTTL"`
	// 序列化器：msgpack, json
	KeySerializer string `cfg:"keySerializer" def:"msgpack"`
	ValSerializer string `cfg:"valSerializer" def:"msgpack"`
}

// FreeCacheStore 基于 freecache 的进程内存储，值以序列化后的字节保存
type FreeCacheStore[K, V any] struct {
	cache           *freecache.Cache
	defaultTTL      time.Duration
	keySerializer   serializer.Serializer[K, []byte]
	valueSerializer serializer.Serializer[V, []byte]
}

func NewFreeCacheStoreWithOptions[K, V any](options *FreeCacheStoreOptions) (*FreeCacheStore[K, V], error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	keySerializer, err := serializer.NewByteSerializer[K](options.KeySerializer)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create key serializer")
	}
	valueSerializer, err := serializer.NewByteSerializer[V](options.ValSerializer)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create value serializer")
	}

	return &FreeCacheStore[K, V]{
		cache:           freecache.NewCache(options.Size),
		defaultTTL:      options.DefaultTTL,
		keySerializer:   keySerializer,
		valueSerializer: valueSerializer,
	}, nil
}

func (s *FreeCacheStore[K, V]) Set(ctx context.Context, key K, value V, opts ...SetOption) error {
	options := applySetOptions(opts)

	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "serialize key failed")
	}
	valueBytes, err := s.valueSerializer.Serialize(value)
	if err != nil {
		return errors.Wrap(err, "serialize value failed")
	}

	if options.IfNotExist {
		if _, err := s.cache.Get(keyBytes); err == nil {
			return ErrConditionFailed
		}
	}

	expiration := options.Expiration
	if expiration == 0 {
		expiration = s.defaultTTL
	}
	return s.cache.Set(keyBytes, valueBytes, int(expiration.Seconds()))
}

func (s *FreeCacheStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return zero, errors.Wrap(err, "serialize key failed")
	}

	valueBytes, err := s.cache.Get(keyBytes)
	if err != nil {
		return zero, ErrKeyNotFound
	}

	value, err := s.valueSerializer.Deserialize(valueBytes)
	if err != nil {
		return zero, errors.Wrap(err, "deserialize value failed")
	}
	return value, nil
}

func (s *FreeCacheStore[K, V]) Del(ctx context.Context, key K) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "serialize key failed")
	}

	s.cache.Del(keyBytes)
	return nil
}

func (s *FreeCacheStore[K, V]) Close() error {
	s.cache.Clear()
	return nil
}
