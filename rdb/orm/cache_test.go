package orm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityCache(t *testing.T) {
	ctx := context.Background()
	horse := &Animal{Entity: &Entity{table: "animals"}}
	cow := &Animal{Entity: &Entity{table: "animals"}}
	pig := &Animal{Entity: &Entity{table: "animals"}}

	t.Run("default keeps one entity per table", func(t *testing.T) {
		c := NewEntityCacheWithOptions(nil)
		c.Put(ctx, "animals", int64(1), horse)
		c.Put(ctx, "animals", 2, cow)

		_, ok := c.Get(ctx, "animals", 1)
		assert.False(t, ok)
		m, ok := c.Get(ctx, "animals", "2")
		assert.True(t, ok)
		assert.Same(t, cow, m)
	})

	t.Run("evicts the oldest entry first", func(t *testing.T) {
		c := NewEntityCacheWithOptions(&EntityCacheOptions{MaxPerTable: 2})
		c.Put(ctx, "animals", 1, horse)
		c.Put(ctx, "animals", 2, cow)
		c.Put(ctx, "animals", 1, horse)
		c.Put(ctx, "animals", 3, pig)

		_, ok := c.Get(ctx, "animals", 1)
		assert.False(t, ok)
		_, ok = c.Get(ctx, "animals", 2)
		assert.True(t, ok)
		_, ok = c.Get(ctx, "animals", 3)
		assert.True(t, ok)
	})

	t.Run("tables are independent", func(t *testing.T) {
		c := NewEntityCacheWithOptions(nil)
		c.Put(ctx, "animals", 1, horse)
		c.Put(ctx, "farm", 1, cow)

		m, ok := c.Get(ctx, "animals", 1)
		assert.True(t, ok)
		assert.Same(t, horse, m)
	})

	t.Run("evict and clear", func(t *testing.T) {
		c := NewEntityCacheWithOptions(&EntityCacheOptions{MaxPerTable: 3})
		c.Put(ctx, "animals", 1, horse)
		c.Put(ctx, "animals", 2, cow)

		c.Evict(ctx, "animals", nil)
		c.Evict(ctx, "farm", 1)
		c.Evict(ctx, "animals", int64(1))
		_, ok := c.Get(ctx, "animals", 1)
		assert.False(t, ok)
		_, ok = c.Get(ctx, "animals", 2)
		assert.True(t, ok)

		c.Clear()
		_, ok = c.Get(ctx, "animals", 2)
		assert.False(t, ok)
	})
}
