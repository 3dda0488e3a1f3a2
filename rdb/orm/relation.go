package orm

import (
	"context"
	"strings"

	"github.com/hatlonely/dbo/rdb/query"
	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
)

type relationKind int

const (
	hasOne relationKind = iota
	hasMany
	belongsTo
)

func (k relationKind) String() string {
	switch k {
	case hasOne:
		return "has_one"
	case hasMany:
		return "has_many"
	default:
		return "belongs_to"
	}
}

// relation 以关联表名为键的关系声明
// has one / has many 的外键在关联表上，belongs to 的外键在当前表上
type relation struct {
	table      string
	kind       relationKind
	foreignKey string
}

func declare(relations []relation, r relation) []relation {
	for i := range relations {
		if relations[i].table == r.table {
			relations[i] = r
			return relations
		}
	}
	return append(relations, r)
}

// HasOne 在注册表上声明一对一子关系，foreignKey 为空时使用 {table}_id
func (r *Registry) HasOne(table string, child string, foreignKey string) {
	r.declareRelation(table, relation{table: child, kind: hasOne, foreignKey: foreignKey})
}

// HasMany 在注册表上声明一对多子关系
func (r *Registry) HasMany(table string, child string, foreignKey string) {
	r.declareRelation(table, relation{table: child, kind: hasMany, foreignKey: foreignKey})
}

// BelongsTo 在注册表上声明父关系，foreignKey 为空时使用 {parent}_id
func (r *Registry) BelongsTo(table string, parent string, foreignKey string) {
	r.declareRelation(table, relation{table: parent, kind: belongsTo, foreignKey: foreignKey})
}

func (r *Registry) declareRelation(table string, rel relation) {
	if rel.foreignKey == "" {
		if rel.kind == belongsTo {
			rel.foreignKey = rel.table + "_id"
		} else {
			rel.foreignKey = table + "_id"
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.relations[table] = declare(r.relations[table], rel)
}

func (r *Registry) relationsOf(table string) []relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range candidates(table) {
		if rels, ok := r.relations[name]; ok {
			return append([]relation(nil), rels...)
		}
	}
	return nil
}

// HasOne 声明一对一子关系，foreignKey 为空时使用 {当前表}_id
func (e *Entity) HasOne(table string, foreignKey string) {
	if foreignKey == "" {
		foreignKey = e.table + "_id"
	}
	e.relations = declare(e.relations, relation{table: table, kind: hasOne, foreignKey: foreignKey})
}

// HasMany 声明一对多子关系，foreignKey 为空时使用 {当前表}_id
func (e *Entity) HasMany(table string, foreignKey string) {
	if foreignKey == "" {
		foreignKey = e.table + "_id"
	}
	e.relations = declare(e.relations, relation{table: table, kind: hasMany, foreignKey: foreignKey})
}

// BelongsTo 声明父关系，foreignKey 为空时使用 {table}_id，该列不存在时忽略声明
func (e *Entity) BelongsTo(table string, foreignKey string) {
	if foreignKey == "" {
		foreignKey = table + "_id"
		if !e.schema.Has(foreignKey) {
			return
		}
	}
	e.relations = declare(e.relations, relation{table: table, kind: belongsTo, foreignKey: foreignKey})
}

func (e *Entity) relationOf(table string) (relation, bool) {
	for _, r := range e.relations {
		if r.table == table {
			return r, true
		}
	}
	return relation{}, false
}

type parentOptions struct {
	table string
	value any
}

type ParentOption func(*parentOptions)

// ParentTable 指定父表，不再根据属性名推断
func ParentTable(table string) ParentOption {
	return func(o *parentOptions) {
		o.table = table
	}
}

// ParentValue 使用指定的外键值代替当前属性值
func ParentValue(value any) ParentOption {
	return func(o *parentOptions) {
		o.value = value
	}
}

// Parent 通过外键属性获取父实体，外键值为空时第二个返回值为 false
//
// 父表依次通过 belongs to 声明、去掉 _id 后缀推断，推断的表不存在时再尝试复数形式。
// 结果来自实体缓存
func (e *Entity) Parent(ctx context.Context, attribute string, opts ...ParentOption) (Model, bool, error) {
	o := &parentOptions{}
	for _, opt := range opts {
		opt(o)
	}

	value := o.value
	if isEmpty(value) {
		v, err := e.GetAttribute(attribute)
		if err != nil {
			return nil, false, err
		}
		value = v
	}
	if isEmpty(value) {
		return nil, false, nil
	}

	table := o.table
	if table == "" {
		table = e.parentTable(ctx, attribute)
	}
	if table == "" {
		return nil, false, errors.Wrapf(ErrInvalidArgument, "cannot resolve a parent table from attribute [%s]", attribute)
	}

	m, err := e.session.cached(ctx, table, value)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (e *Entity) parentTable(ctx context.Context, attribute string) string {
	for _, r := range e.relations {
		if r.kind == belongsTo && r.foreignKey == attribute {
			return r.table
		}
	}

	table, ok := strings.CutSuffix(attribute, "_id")
	if !ok || table == "" {
		return ""
	}
	if _, err := e.session.schemas.Get(ctx, table); errors.Is(err, schema.ErrSchemaUnavailable) {
		if plural := inflection.Plural(table); plural != table {
			if _, err := e.session.schemas.Get(ctx, plural); err == nil {
				return plural
			}
		}
	}
	return table
}

type childOptions struct {
	foreignKey     string
	constraints    map[string]any
	forceOne       bool
	forceMany      bool
	includeDeleted bool
}

type ChildOption func(*childOptions)

// ForeignKey 关联表上指向当前实体的外键
func ForeignKey(name string) ChildOption {
	return func(o *childOptions) {
		o.foreignKey = name
	}
}

// WithConstraints 附加到子关系查询上的约束
func WithConstraints(constraints map[string]any) ChildOption {
	return func(o *childOptions) {
		o.constraints = constraints
	}
}

// ForceOne 总是返回第一个子实体
func ForceOne() ChildOption {
	return func(o *childOptions) {
		o.forceOne = true
		o.forceMany = false
	}
}

// ForceMany 总是返回集合
func ForceMany() ChildOption {
	return func(o *childOptions) {
		o.forceMany = true
		o.forceOne = false
	}
}

// IncludeDeletedChildren 子关系查询包括软删除的行
func IncludeDeletedChildren() ChildOption {
	return func(o *childOptions) {
		o.includeDeleted = true
	}
}

// Related 子关系的结果，One 和 Many 只有一个非空
type Related struct {
	One  Model
	Many *Collection
}

// Child 获取外键指向当前实体的子实体
//
// 声明为 has one 的关系返回单个实体，has many 返回集合；
// 没有声明时一个匹配返回实体，多个匹配返回集合。没有匹配时返回 nil
func (e *Entity) Child(ctx context.Context, table string, opts ...ChildOption) (*Related, error) {
	if e.ID() == nil {
		return nil, nil
	}

	o := &childOptions{}
	if r, ok := e.relationOf(table); ok && r.kind != belongsTo {
		o.foreignKey = r.foreignKey
		o.forceOne = r.kind == hasOne
		o.forceMany = r.kind == hasMany
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.foreignKey == "" {
		o.foreignKey = e.table + "_id"
	}

	constraints := map[string]any{o.foreignKey: e.ID()}
	for k, v := range o.constraints {
		constraints[k] = v
	}
	copts := []CollectionOption{}
	if o.includeDeleted {
		copts = append(copts, IncludeDeleted())
	}
	c, err := e.session.Collection(ctx, table, constraints, copts...)
	if err != nil {
		return nil, err
	}
	if err := c.SetSortOrder(query.Asc(c.pk)); err != nil {
		return nil, err
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	switch {
	case o.forceOne:
		m, err := e.session.cached(ctx, table, keys[0])
		if err != nil {
			return nil, err
		}
		return &Related{One: m}, nil
	case o.forceMany || len(keys) > 1:
		return &Related{Many: c}, nil
	default:
		m, err := e.session.Load(ctx, table, keys[0])
		if err != nil {
			return nil, err
		}
		return &Related{One: m}, nil
	}
}

// Call 按名字分派操作，依次尝试：
//   - 注册表中该表的方法
//   - find_by_{attribute}，参数为属性值，返回是否找到
//   - 声明的关系名
//   - {name}_id 外键对应的父实体
//   - 以 {当前表}_id 指向当前实体的子表
//
// 都不匹配时返回 ErrUnknownOperation
func (e *Entity) Call(ctx context.Context, name string, args ...any) (any, error) {
	if method, ok := e.session.registry.Method(e.table, name); ok {
		return method(ctx, e.Model())
	}

	if field, ok := strings.CutPrefix(name, "find_by_"); ok {
		if len(args) == 0 {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s requires a value", name)
		}
		return e.Find(ctx, map[string]any{field: args[0]})
	}

	var constraints map[string]any
	if len(args) > 0 {
		if m, ok := args[0].(map[string]any); ok && len(m) > 0 {
			constraints = m
		}
	}

	if r, ok := e.relationOf(name); ok {
		if r.kind == belongsTo {
			return e.parentResult(ctx, r.foreignKey, r.table)
		}
		return e.childResult(ctx, name, WithConstraints(constraints))
	}

	if fk := name + "_id"; e.IsAcceptableAttribute(fk, true) {
		return e.parentResult(ctx, fk, "")
	}

	related, err := e.Child(ctx, name, WithConstraints(constraints))
	if errors.Is(err, schema.ErrSchemaUnavailable) || errors.Is(err, ErrUnknownAttribute) {
		return nil, errors.Wrapf(ErrUnknownOperation, "operation [%s] on table [%s]", name, e.table)
	}
	if err != nil || related == nil {
		return nil, err
	}
	return related, nil
}

// parentResult table 为空时按属性名推断父表
func (e *Entity) parentResult(ctx context.Context, attribute string, table string) (any, error) {
	m, ok, err := e.Parent(ctx, attribute, ParentTable(table))
	if err != nil || !ok {
		return nil, err
	}
	return m, nil
}

func (e *Entity) childResult(ctx context.Context, table string, opts ...ChildOption) (any, error) {
	related, err := e.Child(ctx, table, opts...)
	if err != nil || related == nil {
		return nil, err
	}
	return related, nil
}
