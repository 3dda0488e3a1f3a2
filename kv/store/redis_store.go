package store

import (
	"context"
	"time"

	"github.com/hatlonely/dbo/kv/serializer"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisStoreOptions struct {
	// host:port 地址。
	Endpoint string `cfg:"endpoint"`

	// 集群节点的 host:port 地址列表。
	Endpoints []string `cfg:"endpoints"`

	// 所有键的公共前缀，用于多个服务共享同一个实例。
	KeyPrefix string `cfg:"keyPrefix"`

	// 默认 TTL，0 表示不过期。
	DefaultTTL time.Duration `cfg:"defaultTTL"`

	// 键和值的序列化器：msgpack, json。
	KeySerializer string `cfg:"keySerializer" def:"msgpack"`
	ValSerializer string `cfg:"valSerializer" def:"msgpack"`

	Username string `cfg:"username"`
	Password string `cfg:"password"`

	// 连接到服务器后选择的数据库。
	DB int `cfg:"db"`

	// 放弃前的最大重试次数，-1 禁用重试。
	MaxRetries int `cfg:"maxRetries" def:"3"`

	// 建立新连接的拨号超时时间。
	DialTimeout time.Duration `cfg:"dialTimeout" def:"5s"`

	// 套接字读写超时时间。
	ReadTimeout  time.Duration `cfg:"readTimeout" def:"3s"`
	WriteTimeout time.Duration `cfg:"writeTimeout" def:"3s"`

	// 基础的套接字连接数。
	PoolSize int `cfg:"poolSize" def:"100"`
}

type RedisStore[K, V any] struct {
	client redis.UniversalClient

	keyPrefix     string
	keySerializer serializer.Serializer[K, []byte]
	valSerializer serializer.Serializer[V, []byte]
	defaultTTL    time.Duration
}

func NewRedisStoreWithOptions[K, V any](options *RedisStoreOptions) (*RedisStore[K, V], error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	keySerializer, err := serializer.NewByteSerializer[K](options.KeySerializer)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create key serializer")
	}
	valSerializer, err := serializer.NewByteSerializer[V](options.ValSerializer)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create value serializer")
	}

	var client redis.UniversalClient
	if options.Endpoint != "" {
		client = redis.NewClient(&redis.Options{
			Addr:         options.Endpoint,
			Username:     options.Username,
			Password:     options.Password,
			DB:           options.DB,
			MaxRetries:   options.MaxRetries,
			DialTimeout:  options.DialTimeout,
			ReadTimeout:  options.ReadTimeout,
			WriteTimeout: options.WriteTimeout,
			PoolSize:     options.PoolSize,
		})
	} else if len(options.Endpoints) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        options.Endpoints,
			Username:     options.Username,
			Password:     options.Password,
			MaxRetries:   options.MaxRetries,
			DialTimeout:  options.DialTimeout,
			ReadTimeout:  options.ReadTimeout,
			WriteTimeout: options.WriteTimeout,
			PoolSize:     options.PoolSize,
		})
	} else {
		return nil, errors.New("Endpoint or Endpoints must be set")
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WithMessage(err, "redis.client.Ping failed")
	}

	return &RedisStore[K, V]{
		client:        client,
		keyPrefix:     options.KeyPrefix,
		keySerializer: keySerializer,
		valSerializer: valSerializer,
		defaultTTL:    options.DefaultTTL,
	}, nil
}

func (s *RedisStore[K, V]) key(key K) (string, error) {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return "", errors.Wrap(err, "serialize key failed")
	}
	return s.keyPrefix + string(keyBytes), nil
}

func (s *RedisStore[K, V]) Set(ctx context.Context, key K, value V, opts ...SetOption) error {
	options := applySetOptions(opts)

	k, err := s.key(key)
	if err != nil {
		return err
	}
	valBytes, err := s.valSerializer.Serialize(value)
	if err != nil {
		return errors.Wrap(err, "serialize value failed")
	}

	expiration := options.Expiration
	if expiration == 0 {
		expiration = s.defaultTTL
	}

	if options.IfNotExist {
		ok, err := s.client.SetNX(ctx, k, valBytes, expiration).Result()
		if err != nil {
			return errors.Wrap(err, "redis.SetNX failed")
		}
		if !ok {
			return ErrConditionFailed
		}
		return nil
	}

	if err := s.client.Set(ctx, k, valBytes, expiration).Err(); err != nil {
		return errors.Wrap(err, "redis.Set failed")
	}
	return nil
}

func (s *RedisStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	k, err := s.key(key)
	if err != nil {
		return zero, err
	}

	valBytes, err := s.client.Get(ctx, k).Bytes()
	if err == redis.Nil {
		return zero, ErrKeyNotFound
	}
	if err != nil {
		return zero, errors.Wrap(err, "redis.Get failed")
	}

	value, err := s.valSerializer.Deserialize(valBytes)
	if err != nil {
		return zero, errors.Wrap(err, "deserialize value failed")
	}
	return value, nil
}

func (s *RedisStore[K, V]) Del(ctx context.Context, key K) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, k).Err(); err != nil {
		return errors.Wrap(err, "redis.Del failed")
	}
	return nil
}

func (s *RedisStore[K, V]) Close() error {
	return s.client.Close()
}
