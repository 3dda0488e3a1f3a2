package schema

import (
	"context"
	"time"

	"github.com/hatlonely/dbo/kv/store"
	"github.com/hatlonely/dbo/log"
	"github.com/pkg/errors"
)

type CacheOptions struct {
	// 表结构存储，默认为进程内的 syncMap，多个进程共享时可以使用 redis
	Store store.Options `cfg:"store"`
	// 表结构的过期时间，0 表示不过期
	Expiration time.Duration `cfg:"expiration"`
}

// Cache 按表名缓存表结构，未命中时通过 Describer 加载
type Cache struct {
	describer  Describer
	store      store.Store[string, *TableSchema]
	expiration time.Duration
	logger     log.Logger
}

func NewCacheWithOptions(describer Describer, options *CacheOptions, logger log.Logger) (*Cache, error) {
	if options == nil {
		options = &CacheOptions{}
	}
	st, err := store.NewStoreWithOptions[string, *TableSchema](&options.Store)
	if err != nil {
		return nil, errors.WithMessage(err, "create schema store failed")
	}
	return NewCache(describer, st, options.Expiration, logger), nil
}

func NewCache(describer Describer, st store.Store[string, *TableSchema], expiration time.Duration, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		describer:  describer,
		store:      st,
		expiration: expiration,
		logger:     logger,
	}
}

// Get 获取表结构，首次访问时从数据库加载
func (c *Cache) Get(ctx context.Context, table string) (*TableSchema, error) {
	s, err := c.store.Get(ctx, table)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, store.ErrKeyNotFound) {
		c.logger.WarnContext(ctx, "schema cache get failed", "table", table, "error", err)
	}

	s, err = c.describer.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, s); err != nil {
		c.logger.WarnContext(ctx, "schema cache put failed", "table", table, "error", err)
	}
	return s, nil
}

// Put 写入表结构，用于预加载或测试时提供合成的表结构
func (c *Cache) Put(ctx context.Context, s *TableSchema) error {
	var opts []store.SetOption
	if c.expiration > 0 {
		opts = append(opts, store.WithExpiration(c.expiration))
	}
	return c.store.Set(ctx, s.Table, s, opts...)
}

// Invalidate 表结构变更后清除缓存
func (c *Cache) Invalidate(ctx context.Context, table string) error {
	return c.store.Del(ctx, table)
}

func (c *Cache) Close() error {
	return c.store.Close()
}
