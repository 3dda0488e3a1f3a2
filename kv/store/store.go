package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrConditionFailed = errors.New("condition failed")
)

// setOptions 用于设置 KV 数据时的选项
type setOptions struct {
	Expiration time.Duration
	IfNotExist bool
}

type SetOption func(*setOptions)

func WithExpiration(expiration time.Duration) SetOption {
	return func(options *setOptions) {
		options.Expiration = expiration
	}
}

func WithIfNotExist() SetOption {
	return func(options *setOptions) {
		options.IfNotExist = true
	}
}

type Store[K, V any] interface {
	// Set 设置键值对，WithIfNotExist 时键存在则返回 ErrConditionFailed
	Set(ctx context.Context, key K, value V, opts ...SetOption) error
	// Get 获取键对应的值，键不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key K) (V, error)
	// Del 删除键，键不存在时也返回成功
	Del(ctx context.Context, key K) error
	Close() error
}

// Options 存储配置，Type 决定使用哪一个子配置
type Options struct {
	// 存储类型：map, syncMap, freecache, redis
	Type      string                `cfg:"type" def:"syncMap" validate:"oneof=map syncMap freecache redis"`
	FreeCache FreeCacheStoreOptions `cfg:"freecache"`
	Redis     RedisStoreOptions     `cfg:"redis"`
}

func NewStoreWithOptions[K comparable, V any](options *Options) (Store[K, V], error) {
	if options == nil {
		return NewSyncMapStore[K, V](), nil
	}

	switch options.Type {
	case "map":
		return NewMapStore[K, V](), nil
	case "syncMap", "":
		return NewSyncMapStore[K, V](), nil
	case "freecache":
		return NewFreeCacheStoreWithOptions[K, V](&options.FreeCache)
	case "redis":
		return NewRedisStoreWithOptions[K, V](&options.Redis)
	default:
		return nil, errors.Errorf("unsupported store type: %s", options.Type)
	}
}

func applySetOptions(opts []SetOption) *setOptions {
	options := &setOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
