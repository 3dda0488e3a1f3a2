package orm

import (
	"context"
	"sync"

	"github.com/hatlonely/dbo/kv/store"
)

type EntityCacheOptions struct {
	// 每张表最多缓存的实体数量
	MaxPerTable int `cfg:"maxPerTable" def:"1" validate:"gte=0"`
}

// EntityCache 关系遍历时使用的实体缓存
// 只用于减少重复查询，未命中不代表记录不存在，任何修改都会淘汰对应的实体
type EntityCache struct {
	mu          sync.Mutex
	maxPerTable int
	tables      map[string]*tableEntries
}

type tableEntries struct {
	store *store.MapStore[string, Model]
	// 写入顺序，超出容量时淘汰最早写入的实体
	order []string
}

func NewEntityCacheWithOptions(options *EntityCacheOptions) *EntityCache {
	maxPerTable := 1
	if options != nil && options.MaxPerTable > 0 {
		maxPerTable = options.MaxPerTable
	}
	return &EntityCache{
		maxPerTable: maxPerTable,
		tables:      map[string]*tableEntries{},
	}
}

func (c *EntityCache) Get(ctx context.Context, table string, id any) (Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[table]
	if !ok {
		return nil, false
	}
	m, err := t.store.Get(ctx, valueString(id))
	if err != nil {
		return nil, false
	}
	return m, true
}

func (c *EntityCache) Put(ctx context.Context, table string, id any, m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[table]
	if !ok {
		t = &tableEntries{store: store.NewMapStore[string, Model]()}
		c.tables[table] = t
	}

	key := valueString(id)
	if _, err := t.store.Get(ctx, key); err == nil {
		_ = t.store.Set(ctx, key, m)
		return
	}
	for t.store.Len() >= c.maxPerTable && len(t.order) > 0 {
		_ = t.store.Del(ctx, t.order[0])
		t.order = t.order[1:]
	}
	_ = t.store.Set(ctx, key, m)
	t.order = append(t.order, key)
}

func (c *EntityCache) Evict(ctx context.Context, table string, id any) {
	if id == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[table]
	if !ok {
		return
	}
	key := valueString(id)
	_ = t.store.Del(ctx, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (c *EntityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = map[string]*tableEntries{}
}
