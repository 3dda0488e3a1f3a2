package orm

import (
	"context"

	"github.com/hatlonely/dbo/rdb/database"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/pkg/errors"
)

type collectionOptions struct {
	includeDeleted bool
	sort           []query.Order
	keyBy          string
	limit          int
	offset         int
	withoutFactory bool
}

type CollectionOption func(*collectionOptions)

// IncludeDeleted 不排除软删除的行
func IncludeDeleted() CollectionOption {
	return func(o *collectionOptions) {
		o.includeDeleted = true
	}
}

func SortBy(orders ...query.Order) CollectionOption {
	return func(o *collectionOptions) {
		o.sort = append(o.sort, orders...)
	}
}

// KeyBy 索引使用的字段，默认为主键
func KeyBy(field string) CollectionOption {
	return func(o *collectionOptions) {
		o.keyBy = field
	}
}

func Limit(limit int) CollectionOption {
	return func(o *collectionOptions) {
		o.limit = limit
	}
}

func LimitOffset(limit int, offset int) CollectionOption {
	return func(o *collectionOptions) {
		o.limit = limit
		o.offset = offset
	}
}

// WithoutFactory 集合中的实体不经过注册的工厂包装
func WithoutFactory() CollectionOption {
	return func(o *collectionOptions) {
		o.withoutFactory = true
	}
}

// Collection 单表的惰性结果集
//
// 构造时不执行查询，第一次计数、迭代、按键访问或取字段值时执行一次 SELECT。
// 约束在执行后被消费；之后修改约束、排序或限制会标记 dirtyData，
// 再次执行时结果限制在已经取到的主键之内，AddRecords 可以追加主键。
type Collection struct {
	session    *Session
	table      string
	schema     *schema.TableSchema
	pk         string
	pkErr      error
	keyBy      string
	useFactory bool

	constraints query.Constraints
	sort        []query.Order
	limit       int
	offset      int

	rows []database.Row
	// 按结果顺序排列的可见行位置
	index      []int
	fetched    bool
	dirtyData  bool
	dirtyIndex bool
}

// Collection 构造集合，constraints 可以是主键列表、字段到值的映射或键中带运算符的映射
// 默认排除软删除的行
func (s *Session) Collection(ctx context.Context, table string, constraints any, opts ...CollectionOption) (*Collection, error) {
	if table == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "table is required")
	}
	o := &collectionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	sc, err := s.schemas.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	pk, pkErr := sc.PrimaryKey()

	c := &Collection{
		session:    s,
		table:      table,
		schema:     sc,
		pk:         pk,
		pkErr:      pkErr,
		keyBy:      pk,
		useFactory: !o.withoutFactory,
		dirtyData:  true,
		dirtyIndex: true,
	}
	if o.keyBy != "" {
		if !sc.Has(o.keyBy) {
			return nil, errors.Wrapf(ErrUnknownAttribute, "key field [%s] of table [%s]", o.keyBy, table)
		}
		c.keyBy = o.keyBy
	}

	cs, err := c.normalize(constraints)
	if err != nil {
		return nil, err
	}
	if deleted := s.metadata.Deleted; !o.includeDeleted && sc.Has(deleted) {
		column, _ := sc.Column(deleted)
		cs = append(cs, query.Constraint{Field: deleted, Value: column.FlagValue(false)})
	}
	c.constraints = cs

	if len(o.sort) > 0 {
		if err := c.SetSortOrder(o.sort...); err != nil {
			return nil, err
		}
	}
	if o.limit != 0 || o.offset != 0 {
		if err := c.SetLimit(o.limit, o.offset); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// normalize 规范化约束并校验字段，字段名会直接出现在 SQL 中
func (c *Collection) normalize(constraints any) (query.Constraints, error) {
	cs, err := query.Normalize(constraints, c.pk)
	if err != nil {
		return nil, err
	}
	for _, field := range cs.Fields() {
		if !c.schema.Has(field) {
			return nil, errors.Wrapf(ErrUnknownAttribute, "constraint field [%s] of table [%s]", field, c.table)
		}
	}
	if _, err := cs.Query(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (c *Collection) Table() string {
	return c.table
}

func (c *Collection) Schema() *schema.TableSchema {
	return c.schema
}

func (c *Collection) PrimaryKey() (string, error) {
	return c.pk, c.pkErr
}

func (c *Collection) fetch(ctx context.Context, extra []any) error {
	if !c.dirtyData {
		return nil
	}
	if c.pkErr != nil {
		return c.pkErr
	}

	where := &query.BoolQuery{}
	if c.fetched {
		c.rebuildIndex()
		ids := c.visible(c.pk)
		ids = append(ids, extra...)
		where.Must = append(where.Must, &query.InQuery{Field: c.pk, Values: ids})
	}
	for _, constraint := range c.constraints {
		q, err := constraint.Query()
		if err != nil {
			return err
		}
		if raw, ok := q.(*query.RawQuery); ok {
			if suspicious, fingerprint := raw.Suspicious(); suspicious {
				c.session.logger.WarnContext(ctx, "raw constraint fragment looks like sql injection",
					"table", c.table, "field", raw.Field, "fingerprint", fingerprint)
			}
		}
		where.Must = append(where.Must, q)
	}

	stmt := &query.Select{
		Table:   c.table,
		OrderBy: c.sort,
		Limit:   c.limit,
		Offset:  c.offset,
	}
	if len(where.Must) > 0 {
		stmt.Where = where
	}
	rows, err := database.QueryStatement(ctx, c.session.executor, stmt)
	if err != nil {
		return errors.WithMessagef(err, "fetch collection of table [%s] failed", c.table)
	}

	c.rows = rows
	c.constraints = nil
	c.offset = 0
	c.fetched = true
	c.dirtyData = false
	c.dirtyIndex = true
	return nil
}

func (c *Collection) refreshIndex(ctx context.Context) error {
	if err := c.fetch(ctx, nil); err != nil {
		return err
	}
	c.rebuildIndex()
	return nil
}

// rebuildIndex 行集合被替换后索引重新覆盖全部行
func (c *Collection) rebuildIndex() {
	if !c.dirtyIndex {
		return
	}
	c.index = make([]int, len(c.rows))
	for i := range c.rows {
		c.index[i] = i
	}
	c.dirtyIndex = false
}

// visible 可见行的 field 值
func (c *Collection) visible(field string) []any {
	values := make([]any, 0, len(c.index))
	for _, pos := range c.index {
		values = append(values, c.rows[pos][field])
	}
	return values
}

// position 键在索引中的位置
func (c *Collection) position(key any) (int, bool) {
	for i, pos := range c.index {
		if equalValues(c.rows[pos][c.keyBy], key) {
			return i, true
		}
	}
	return 0, false
}

func (c *Collection) materialize(ctx context.Context, pos int) (Model, error) {
	e := newEntity(c.session, c.schema)
	e.initRow(c.rows[pos])
	if !c.useFactory {
		return e, nil
	}
	return c.session.wrap(e)
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	if err := c.refreshIndex(ctx); err != nil {
		return 0, err
	}
	return len(c.index), nil
}

// Keys 按结果顺序返回索引字段的值
func (c *Collection) Keys(ctx context.Context) ([]any, error) {
	if err := c.refreshIndex(ctx); err != nil {
		return nil, err
	}
	return c.visible(c.keyBy), nil
}

// FieldValues 按结果顺序返回 field 的值，field 为空时返回主键
func (c *Collection) FieldValues(ctx context.Context, field string) ([]any, error) {
	if field == "" {
		field = c.pk
	}
	if !c.schema.Has(field) {
		return nil, errors.Wrapf(ErrUnknownAttribute, "field [%s] of table [%s]", field, c.table)
	}
	if err := c.refreshIndex(ctx); err != nil {
		return nil, err
	}
	return c.visible(field), nil
}

func (c *Collection) Has(ctx context.Context, key any) (bool, error) {
	if err := c.refreshIndex(ctx); err != nil {
		return false, err
	}
	_, ok := c.position(key)
	return ok, nil
}

// Get 按键获取实体，键不存在时第二个返回值为 false
func (c *Collection) Get(ctx context.Context, key any) (Model, bool, error) {
	if err := c.refreshIndex(ctx); err != nil {
		return nil, false, err
	}
	i, ok := c.position(key)
	if !ok {
		return nil, false, nil
	}
	m, err := c.materialize(ctx, c.index[i])
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Set 集合按键只读
func (c *Collection) Set(key any, m Model) error {
	return errors.Wrapf(ErrUnsupported, "assign key [%v] of collection [%s]", key, c.table)
}

// Remove 从索引中移除键，不删除数据库中的行
func (c *Collection) Remove(ctx context.Context, key any) error {
	if err := c.refreshIndex(ctx); err != nil {
		return err
	}
	if i, ok := c.position(key); ok {
		c.index = append(c.index[:i], c.index[i+1:]...)
	}
	return nil
}

// First 按当前排序返回第一个实体，集合为空时第二个返回值为 false
func (c *Collection) First(ctx context.Context) (Model, bool, error) {
	if err := c.refreshIndex(ctx); err != nil {
		return nil, false, err
	}
	if len(c.index) == 0 {
		return nil, false, nil
	}
	m, err := c.materialize(ctx, c.index[0])
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (c *Collection) Entities(ctx context.Context) ([]Model, error) {
	var models []Model
	err := c.Each(ctx, func(_ any, m Model) error {
		models = append(models, m)
		return nil
	})
	return models, err
}

// Each 按顺序对每个实体调用 fn，fn 返回错误时停止
func (c *Collection) Each(ctx context.Context, fn func(key any, m Model) error) error {
	it := c.Iterator(ctx)
	for it.Next() {
		if err := fn(it.Key(), it.Entity()); err != nil {
			return err
		}
	}
	return it.Err()
}

// AddRecords 先执行挂起的查询，再以追加的主键重新执行一次
func (c *Collection) AddRecords(ctx context.Context, ids ...any) error {
	if err := c.fetch(ctx, nil); err != nil {
		return err
	}
	c.dirtyData = true
	return c.fetch(ctx, ids)
}

// SetConstraints 设置新的约束，已有未执行的约束时先执行，新约束在其结果上进一步收窄
func (c *Collection) SetConstraints(ctx context.Context, constraints any) error {
	cs, err := c.normalize(constraints)
	if err != nil {
		return err
	}
	if c.constraints != nil {
		if err := c.refreshIndex(ctx); err != nil {
			return err
		}
	}
	c.constraints = cs
	c.dirtyData = true
	return nil
}

func (c *Collection) SetSortOrder(orders ...query.Order) error {
	for _, o := range orders {
		if !c.schema.Has(o.Field) {
			return errors.Wrapf(ErrUnknownAttribute, "sort field [%s] of table [%s]", o.Field, c.table)
		}
	}
	c.sort = orders
	c.dirtyData = true
	return nil
}

// SetLimit 限制结果行数，offset 只作用于下一次查询
func (c *Collection) SetLimit(limit int, offset int) error {
	if limit < 1 {
		return errors.Wrapf(ErrInvalidArgument, "limit must be greater than 0, got %d", limit)
	}
	if offset < 0 {
		return errors.Wrapf(ErrInvalidArgument, "offset must not be negative, got %d", offset)
	}
	c.limit = limit
	c.offset = offset
	c.dirtyData = true
	return nil
}

// Collect 对每个实体调用 fn，结果以集合的键为键
func (c *Collection) Collect(ctx context.Context, fn func(ctx context.Context, m Model) (any, error)) (map[any]any, error) {
	out := map[any]any{}
	err := c.Each(ctx, func(key any, m Model) error {
		v, err := fn(ctx, m)
		if err != nil {
			return err
		}
		out[key] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CollectBy 以属性名或注册的方法名收集，先匹配属性
func (c *Collection) CollectBy(ctx context.Context, name string) (map[any]any, error) {
	if c.schema.Has(name) {
		return c.Collect(ctx, func(_ context.Context, m Model) (any, error) {
			return m.Base().GetAttribute(name)
		})
	}
	if method, ok := c.session.registry.Method(c.table, name); ok {
		return c.Collect(ctx, func(ctx context.Context, m Model) (any, error) {
			return method(ctx, m)
		})
	}
	return nil, errors.Wrapf(ErrInvalidCallback, "[%s] is neither an attribute nor a method of table [%s]", name, c.table)
}

// Iterator 集合上的游标
//
//	it := c.Iterator(ctx)
//	for it.Next() {
//		m := it.Entity()
//	}
//	if err := it.Err(); err != nil {
//	}
type Iterator struct {
	ctx     context.Context
	c       *Collection
	pos     int
	key     any
	current Model
	err     error
}

func (c *Collection) Iterator(ctx context.Context) *Iterator {
	return &Iterator{ctx: ctx, c: c, pos: -1}
}

// Rewind 回到第一个实体之前
func (it *Iterator) Rewind() {
	it.pos = -1
	it.key = nil
	it.current = nil
	it.err = nil
}

func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.err = it.c.refreshIndex(it.ctx); it.err != nil {
		return false
	}

	it.pos++
	if it.pos >= len(it.c.index) {
		it.key, it.current = nil, nil
		return false
	}
	row := it.c.index[it.pos]
	it.key = it.c.rows[row][it.c.keyBy]
	if it.current, it.err = it.c.materialize(it.ctx, row); it.err != nil {
		return false
	}
	return true
}

func (it *Iterator) Key() any {
	return it.key
}

func (it *Iterator) Entity() Model {
	return it.current
}

func (it *Iterator) Err() error {
	return it.err
}
