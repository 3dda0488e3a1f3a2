package orm

import (
	"context"
	"strings"

	"github.com/hatlonely/dbo/rdb/database"
	"github.com/hatlonely/dbo/rdb/filter"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/pkg/errors"
)

// Entity 表中的一行
//
// 新实体（IsNew）从未成功持久化，没有有效的主键。
// modified 记录被修改的属性及其修改前的值，每个键都是 attributes 中的键。
type Entity struct {
	session *Session
	table   string
	schema  *schema.TableSchema
	pk      string
	pkErr   error

	attributes map[string]any
	modified   map[string]any
	isNew      bool
	destroyed  bool

	metadataFields   []string
	metadataOverride map[string]bool

	contentTypes     map[string]string
	forceNoFiltering bool

	relations []relation
	hooks     map[HookEvent][]Hook
	audit     bool

	model Model
}

func newEntity(s *Session, sc *schema.TableSchema) *Entity {
	e := &Entity{
		session:          s,
		table:            sc.Table,
		schema:           sc,
		attributes:       make(map[string]any, len(sc.Columns)),
		modified:         map[string]any{},
		metadataOverride: map[string]bool{},
		contentTypes:     map[string]string{},
		hooks:            map[HookEvent][]Hook{},
		relations:        s.registry.relationsOf(sc.Table),
	}
	e.pk, e.pkErr = sc.PrimaryKey()

	for _, name := range s.metadata.names() {
		if sc.Has(name) {
			e.metadataFields = append(e.metadataFields, name)
		}
	}
	for _, c := range sc.Columns {
		e.attributes[c.Name] = nil
	}

	switch s.defaultContentType {
	case filter.Raw:
	case "infer":
		_ = e.FilterAllAttributes("")
	default:
		_ = e.FilterAllAttributes(s.defaultContentType)
	}
	return e
}

func (e *Entity) initDefaults() {
	for _, c := range e.schema.Columns {
		e.attributes[c.Name] = c.Default
	}
	e.modified = map[string]any{}
	e.metadataOverride = map[string]bool{}
	e.isNew = true
	e.destroyed = false
}

func (e *Entity) initRow(row map[string]any) {
	for _, c := range e.schema.Columns {
		e.attributes[c.Name] = row[c.Name]
	}
	e.modified = map[string]any{}
	e.metadataOverride = map[string]bool{}
	e.isNew = false
	e.destroyed = false
}

// fetch 按主键读取一行并重新初始化，不过滤软删除的行
func (e *Entity) fetch(ctx context.Context, id any) error {
	if e.pkErr != nil {
		return e.pkErr
	}
	rows, err := e.query(ctx, &query.Select{
		Table: e.table,
		Where: &query.TermQuery{Field: e.pk, Value: id},
		Limit: 1,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.Wrapf(ErrNotFound, "table [%s] id [%v]", e.table, id)
	}
	e.initRow(rows[0])
	return nil
}

// Base 实现 Model
func (e *Entity) Base() *Entity {
	return e
}

// Model 实体的类型化包装，没有注册工厂时为实体本身
func (e *Entity) Model() Model {
	if e.model != nil {
		return e.model
	}
	return e
}

func (e *Entity) Session() *Session {
	return e.session
}

func (e *Entity) Table() string {
	return e.table
}

func (e *Entity) Schema() *schema.TableSchema {
	return e.schema
}

func (e *Entity) PrimaryKey() (string, error) {
	return e.pk, e.pkErr
}

func (e *Entity) IsNew() bool {
	return e.isNew
}

// ID 主键值，新实体或已物理删除的实体返回 nil
func (e *Entity) ID() any {
	if e.isNew || e.destroyed || e.pkErr != nil {
		return nil
	}
	return e.attributes[e.pk]
}

func (e *Entity) GetAttribute(name string) (any, error) {
	if !e.schema.Has(name) {
		return nil, errors.Wrapf(ErrUnknownAttribute, "attribute [%s] of table [%s]", name, e.table)
	}
	return e.attributes[name], nil
}

// Attributes 当前属性的副本
func (e *Entity) Attributes() map[string]any {
	out := make(map[string]any, len(e.attributes))
	for k, v := range e.attributes {
		out[k] = v
	}
	return out
}

func (e *Entity) Modified() bool {
	return len(e.modified) > 0
}

// ModifiedAttributes 按列顺序返回被修改的属性名
func (e *Entity) ModifiedAttributes() []string {
	var names []string
	for _, c := range e.schema.Columns {
		if _, ok := e.modified[c.Name]; ok {
			names = append(names, c.Name)
		}
	}
	return names
}

func (e *Entity) MetadataFields() []string {
	return append([]string(nil), e.metadataFields...)
}

func (e *Entity) isMetadata(name string) bool {
	for _, f := range e.metadataFields {
		if f == name {
			return true
		}
	}
	return false
}

// IsAcceptableAttribute 是否为表中的列，allowMetadata 为 false 时元数据列不可接受
func (e *Entity) IsAcceptableAttribute(name string, allowMetadata bool) bool {
	if !e.schema.Has(name) {
		return false
	}
	return allowMetadata || !e.isMetadata(name)
}

func (e *Entity) AcceptableAttributes() []string {
	return e.schema.Names()
}

// AttributeType 属性的 SQL 类型，complete 为 false 时去掉长度和修饰
func (e *Entity) AttributeType(name string, complete bool) (string, error) {
	c, ok := e.schema.Column(name)
	if !ok {
		return "", errors.Wrapf(ErrUnknownAttribute, "attribute [%s] of table [%s]", name, e.table)
	}
	if complete {
		return c.Type, nil
	}
	t := c.Type
	if idx := strings.Index(t, "("); idx >= 0 {
		t = t[:idx]
	}
	return t, nil
}

// NotEmpty 属性存在且值不为空
func (e *Entity) NotEmpty(name string) bool {
	v, ok := e.attributes[name]
	return ok && !isEmpty(v)
}

func (e *Entity) evict(ctx context.Context) {
	e.session.cache.Evict(ctx, e.table, e.ID())
}

type setOptions struct {
	persist       bool
	validateName  bool
	trackOverride bool
}

type SetOption func(*setOptions)

// WithoutPersist 只修改内存中的值，不立即执行 UPDATE
func WithoutPersist() SetOption {
	return func(o *setOptions) {
		o.persist = false
	}
}

// SkipNameValidation 不校验属性名
func SkipNameValidation() SetOption {
	return func(o *setOptions) {
		o.validateName = false
	}
}

// WithoutMetadataOverride 设置元数据列时不标记为调用方覆盖
func WithoutMetadataOverride() SetOption {
	return func(o *setOptions) {
		o.trackOverride = false
	}
}

func applySetOptions(opts []SetOption) *setOptions {
	o := &setOptions{persist: true, validateName: true, trackOverride: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetAttribute 设置属性
//
// 文本列的字符串值会去除首尾空白；与当前值相同时不标记修改；
// 已持久化的实体默认立即执行一次只包含已修改列的 UPDATE，批量修改使用 WithoutPersist
func (e *Entity) SetAttribute(ctx context.Context, name string, value any, opts ...SetOption) error {
	if e.destroyed {
		return errors.Wrapf(ErrInvalidState, "set attribute [%s] of a deleted entity of table [%s]", name, e.table)
	}
	o := applySetOptions(opts)
	e.evict(ctx)
	if err := e.setAttribute(name, value, o); err != nil {
		return err
	}

	if o.persist && !e.isNew && e.Modified() {
		if err := e.Update(ctx); err != nil {
			return persistFailed(err, "forced update of attribute [%s]", name)
		}
	}
	return nil
}

func (e *Entity) setAttribute(name string, value any, o *setOptions) error {
	column, ok := e.schema.Column(name)
	if o.validateName && !ok {
		return errors.Wrapf(ErrUnknownAttribute, "attribute [%s] of table [%s]", name, e.table)
	}

	if o.trackOverride && e.isMetadata(name) {
		e.metadataOverride[name] = true
	}

	if s, isString := value.(string); isString && column != nil && column.IsText() {
		value = strings.TrimSpace(s)
	}

	current := e.attributes[name]
	if equalValues(current, value) {
		return nil
	}

	stored := value
	if ct, ok := e.contentTypes[name]; ok && ct != filter.Raw && !e.forceNoFiltering {
		filtered, err := e.session.filters.Filter(ct, value, column)
		if err != nil {
			return errors.WithMessagef(err, "filter attribute [%s]", name)
		}
		stored = filtered
	}

	if _, ok := e.modified[name]; !ok {
		e.modified[name] = current
	}
	e.attributes[name] = stored
	return nil
}

// SetAttributes 先校验所有属性名，再逐个设置，最后最多执行一次 UPDATE
func (e *Entity) SetAttributes(ctx context.Context, attributes map[string]any, opts ...SetOption) error {
	if e.destroyed {
		return errors.Wrapf(ErrInvalidState, "set attributes of a deleted entity of table [%s]", e.table)
	}
	for name := range attributes {
		if !e.schema.Has(name) {
			return errors.Wrapf(ErrUnknownAttribute, "attribute [%s] of table [%s]", name, e.table)
		}
	}

	o := applySetOptions(opts)
	e.evict(ctx)
	for _, c := range e.schema.Columns {
		value, ok := attributes[c.Name]
		if !ok {
			continue
		}
		if err := e.setAttribute(c.Name, value, &setOptions{validateName: false, trackOverride: o.trackOverride}); err != nil {
			return err
		}
	}

	if o.persist && !e.isNew && e.Modified() {
		if err := e.Update(ctx); err != nil {
			return persistFailed(err, "forced update of table [%s]", e.table)
		}
	}
	return nil
}

// SetAttributesIfDefault 只设置当前值仍为列默认值的属性
func (e *Entity) SetAttributesIfDefault(ctx context.Context, attributes map[string]any, opts ...SetOption) error {
	remaining := map[string]any{}
	for name, value := range attributes {
		c, ok := e.schema.Column(name)
		if !ok {
			return errors.Wrapf(ErrUnknownAttribute, "attribute [%s] of table [%s]", name, e.table)
		}
		if valueString(c.Default) == valueString(e.attributes[name]) {
			remaining[name] = value
		}
	}
	return e.SetAttributes(ctx, remaining, opts...)
}

// FilterAttributeAs 设置属性的内容类型，contentType 为空时按列类型推断
func (e *Entity) FilterAttributeAs(name string, contentType string) error {
	c, ok := e.schema.Column(name)
	if !ok {
		return errors.Wrapf(ErrUnknownAttribute, "attribute [%s] of table [%s]", name, e.table)
	}
	if contentType == "" {
		contentType = filter.ContentTypeForSQLType(c.Type)
	}
	if !e.session.filters.Valid(contentType) {
		return errors.Wrapf(filter.ErrUnknownContentType, "content type [%s]", contentType)
	}
	e.contentTypes[name] = contentType
	return nil
}

// FilterAllAttributes 为所有属性设置内容类型，contentType 为空时逐列推断
func (e *Entity) FilterAllAttributes(contentType string) error {
	if contentType != "" && !e.session.filters.Valid(contentType) {
		return errors.Wrapf(filter.ErrUnknownContentType, "content type [%s]", contentType)
	}
	for _, c := range e.schema.Columns {
		ct := contentType
		if ct == "" {
			ct = filter.ContentTypeForSQLType(c.Type)
		}
		e.contentTypes[c.Name] = ct
	}
	return nil
}

// ContentType 属性当前的内容类型
func (e *Entity) ContentType(name string) (string, bool) {
	ct, ok := e.contentTypes[name]
	return ct, ok
}

// ForceNoFiltering 开启后所有属性按原值保存
func (e *Entity) ForceNoFiltering(on bool) {
	e.forceNoFiltering = on
}

// On 注册生命周期钩子
func (e *Entity) On(event HookEvent, hook Hook) {
	e.hooks[event] = append(e.hooks[event], hook)
}

// EnableAudit 开启后每次提交的属性变更都会调用会话的 AuditHook
func (e *Entity) EnableAudit(on bool) {
	e.audit = on
}

func (e *Entity) runHooks(ctx context.Context, events ...HookEvent) error {
	for _, event := range events {
		for _, hook := range e.hooks[event] {
			if err := hook(ctx, e); err != nil {
				return errors.WithMessagef(err, "%s hook of table [%s]", event, e.table)
			}
		}
	}
	return nil
}

func (e *Entity) query(ctx context.Context, stmt database.Statement) ([]database.Row, error) {
	rows, err := database.QueryStatement(ctx, e.session.executor, stmt)
	if err != nil {
		return nil, errors.WithMessagef(err, "query table [%s] failed", e.table)
	}
	return rows, nil
}
