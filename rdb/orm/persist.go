package orm

import (
	"context"

	"github.com/hatlonely/dbo/rdb/database"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/pkg/errors"
)

type writeOptions struct {
	force bool
	hard  bool
}

type WriteOption func(*writeOptions)

// Force 跳过未修改检查，Add 时同时跳过软删除记录的恢复
func Force() WriteOption {
	return func(o *writeOptions) {
		o.force = true
	}
}

// Hard 物理删除，即使表中有软删除标记列
func Hard() WriteOption {
	return func(o *writeOptions) {
		o.hard = true
	}
}

func applyWriteOptions(opts []WriteOption) *writeOptions {
	o := &writeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type change struct {
	name     string
	old, new any
}

// changes 已修改的非元数据属性
func (e *Entity) changes() []change {
	var out []change
	for _, name := range e.ModifiedAttributes() {
		if e.isMetadata(name) {
			continue
		}
		out = append(out, change{name: name, old: e.modified[name], new: e.attributes[name]})
	}
	return out
}

func (e *Entity) emitAudit(ctx context.Context, changes []change) {
	if !e.audit || e.session.audit == nil || len(changes) == 0 {
		return
	}

	actor, _ := e.session.actor.CurrentActorID(ctx)
	now := e.session.now()
	events := make([]AuditEvent, len(changes))
	for i, c := range changes {
		events[i] = AuditEvent{
			Table:     e.table,
			RecordID:  e.ID(),
			Attribute: c.name,
			OldValue:  c.old,
			NewValue:  c.new,
			Actor:     actor,
			Timestamp: now,
		}
	}
	if err := e.session.audit.Audit(ctx, events); err != nil {
		e.session.logger.WarnContext(ctx, "audit hook failed", "table", e.table, "id", e.ID(), "error", err)
	}
}

// stampMetadata 填充时间、操作者和客户端地址元数据，任意一列被调用方覆盖时全部跳过
func (e *Entity) stampMetadata(ctx context.Context, on, by, ip string) error {
	if e.metadataOverride[on] || e.metadataOverride[by] || e.metadataOverride[ip] {
		return nil
	}

	o := &setOptions{}
	if e.isMetadata(on) {
		if err := e.setAttribute(on, e.session.now().Format(e.session.timeFormat), o); err != nil {
			return err
		}
	}
	if e.isMetadata(by) {
		if id, ok := e.session.actor.CurrentActorID(ctx); ok && isNumeric(id) {
			if err := e.setAttribute(by, id, o); err != nil {
				return err
			}
		}
	}
	if e.isMetadata(ip) {
		if addr := e.session.request.CurrentClientAddress(ctx); addr != "" {
			if err := e.setAttribute(ip, addr, o); err != nil {
				return err
			}
		}
	}
	return nil
}

// persistedID 数据库中当前行的主键，主键属性被修改时使用修改前的值
func (e *Entity) persistedID() any {
	if old, ok := e.modified[e.pk]; ok {
		return old
	}
	return e.attributes[e.pk]
}

func (e *Entity) deletedColumn() (string, bool) {
	name := e.session.metadata.Deleted
	return name, e.isMetadata(name)
}

func (e *Entity) exec(ctx context.Context, stmt database.Statement) (database.Result, error) {
	return database.ExecStatement(ctx, e.session.executor, stmt)
}

// Add 插入新行
//
// 存在属性完全相同的软删除行时恢复该行而不是插入；只插入非 nil 的列
func (e *Entity) Add(ctx context.Context, opts ...WriteOption) error {
	o := applyWriteOptions(opts)
	if e.destroyed {
		return errors.Wrapf(ErrInvalidState, "add a deleted entity of table [%s]", e.table)
	}
	if e.pkErr != nil {
		return e.pkErr
	}

	if !o.force {
		_, found, err := e.HasSoftDeletedEntry(ctx)
		if err != nil {
			return err
		}
		if found {
			_, err := e.Undelete(ctx)
			return err
		}
	}

	if !e.isNew && !o.force {
		return errors.Wrapf(ErrInvalidState, "add an existing entity of table [%s]", e.table)
	}
	if !e.Modified() && !o.force {
		return errors.Wrapf(ErrUnmodified, "add an unmodified entity of table [%s]", e.table)
	}

	m := e.session.metadata
	if err := e.stampMetadata(ctx, m.InsertedOn, m.InsertedBy, m.InsertedIP); err != nil {
		return err
	}
	if err := e.runHooks(ctx, BeforeSave, BeforeAdd); err != nil {
		return err
	}

	stmt := &query.Insert{Table: e.table}
	for _, c := range e.schema.Columns {
		if v := e.attributes[c.Name]; v != nil {
			stmt.Columns = append(stmt.Columns, c.Name)
			stmt.Values = append(stmt.Values, v)
		}
	}

	id := e.attributes[e.pk]
	if id == nil && e.session.executor.Dialect().SupportsReturning() {
		stmt.Returning = e.pk
		rows, err := database.QueryStatement(ctx, e.session.executor, stmt)
		if err != nil {
			return persistFailed(err, "insert into [%s]", e.table)
		}
		if len(rows) > 0 {
			id = rows[0][e.pk]
		}
	} else {
		res, err := e.exec(ctx, stmt)
		if err != nil {
			return persistFailed(err, "insert into [%s]", e.table)
		}
		if id == nil {
			id = res.LastInsertID
		}
	}

	changes := e.changes()
	e.attributes[e.pk] = id
	e.modified = map[string]any{}
	e.isNew = false

	if err := e.runHooks(ctx, AfterAdd, AfterSave); err != nil {
		return err
	}
	e.emitAudit(ctx, changes)
	return nil
}

// Update 将已修改的列写回数据库
func (e *Entity) Update(ctx context.Context, opts ...WriteOption) error {
	o := applyWriteOptions(opts)
	if e.isNew || e.destroyed {
		return errors.Wrapf(ErrInvalidState, "update an unpersisted entity of table [%s]", e.table)
	}
	if e.pkErr != nil {
		return e.pkErr
	}
	if !e.Modified() && !o.force {
		return errors.Wrapf(ErrUnmodified, "update an unmodified entity of table [%s]", e.table)
	}

	m := e.session.metadata
	if err := e.stampMetadata(ctx, m.UpdatedOn, m.UpdatedBy, m.UpdatedIP); err != nil {
		return err
	}
	if err := e.runHooks(ctx, BeforeSave, BeforeUpdate); err != nil {
		return err
	}

	columns := e.ModifiedAttributes()
	if len(columns) > 0 {
		values := make([]any, len(columns))
		for i, name := range columns {
			values[i] = e.attributes[name]
		}
		if _, err := e.exec(ctx, &query.Update{
			Table:   e.table,
			Columns: columns,
			Values:  values,
			Where:   &query.TermQuery{Field: e.pk, Value: e.persistedID()},
		}); err != nil {
			return persistFailed(err, "update [%s] id [%v]", e.table, e.persistedID())
		}
	}

	changes := e.changes()
	e.modified = map[string]any{}

	if err := e.runHooks(ctx, AfterUpdate, AfterSave); err != nil {
		return err
	}
	e.emitAudit(ctx, changes)
	return nil
}

// Delete 删除实体并级联删除声明的子关系
//
// 有软删除标记列时只设置标记，否则物理删除一行并清空属性。
// 级联没有事务保护，子实体删除失败时已删除的部分不会回滚
func (e *Entity) Delete(ctx context.Context, opts ...WriteOption) error {
	o := applyWriteOptions(opts)
	if e.isNew || e.destroyed {
		return errors.Wrapf(ErrInvalidState, "delete an unpersisted entity of table [%s]", e.table)
	}
	if e.pkErr != nil {
		return e.pkErr
	}
	if e.Modified() && !o.force {
		return errors.Wrapf(ErrPendingModifications, "delete a modified entity of table [%s]", e.table)
	}

	e.evict(ctx)
	if err := e.runHooks(ctx, BeforeDelete); err != nil {
		return err
	}

	if err := e.cascade(ctx, false, func(child Model) error {
		return child.Base().Delete(ctx, opts...)
	}); err != nil {
		return err
	}

	if deleted, ok := e.deletedColumn(); ok && !o.hard {
		c, _ := e.schema.Column(deleted)
		if err := e.SetAttribute(ctx, deleted, c.FlagValue(true), WithoutMetadataOverride()); err != nil {
			return err
		}
		return e.runHooks(ctx, AfterDelete)
	}

	if _, err := e.exec(ctx, &query.Delete{
		Table: e.table,
		Where: &query.TermQuery{Field: e.pk, Value: e.ID()},
		Limit: 1,
	}); err != nil {
		return persistFailed(err, "delete [%s] id [%v]", e.table, e.ID())
	}

	err := e.runHooks(ctx, AfterDelete)
	e.attributes = map[string]any{}
	e.modified = map[string]any{}
	e.destroyed = true
	return err
}

// HasSoftDeletedEntry 查找所有非元数据属性都与当前实体相同的软删除行
// 新实体不参与主键匹配，nil 按 IS NULL 匹配，多行匹配时返回主键最小的一行
func (e *Entity) HasSoftDeletedEntry(ctx context.Context) (any, bool, error) {
	deleted, ok := e.deletedColumn()
	if !ok {
		return nil, false, nil
	}
	if e.pkErr != nil {
		return nil, false, e.pkErr
	}

	where := &query.BoolQuery{}
	for _, c := range e.schema.Columns {
		if e.isMetadata(c.Name) || (c.Name == e.pk && e.isNew) {
			continue
		}
		if v := e.attributes[c.Name]; v == nil {
			where.Must = append(where.Must, &query.NullQuery{Field: c.Name})
		} else {
			where.Must = append(where.Must, &query.TermQuery{Field: c.Name, Value: v})
		}
	}
	c, _ := e.schema.Column(deleted)
	where.Must = append(where.Must, &query.TermQuery{Field: deleted, Value: c.FlagValue(true)})

	rows, err := e.query(ctx, &query.Select{
		Table:   e.table,
		Fields:  []string{e.pk},
		Where:   where,
		OrderBy: []query.Order{query.Asc(e.pk)},
		Limit:   1,
	})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0][e.pk], true, nil
}

// Undelete 恢复匹配的软删除行并级联恢复子关系，随后以该行重新初始化当前实体
// 没有匹配的行时返回 false
func (e *Entity) Undelete(ctx context.Context) (bool, error) {
	id, found, err := e.HasSoftDeletedEntry(ctx)
	if err != nil || !found {
		return false, err
	}

	target, err := e.session.load(ctx, e.table, id)
	if err != nil {
		return false, err
	}
	target.relations = e.relations

	if err := target.cascade(ctx, true, func(child Model) error {
		_, err := child.Base().Undelete(ctx)
		return err
	}); err != nil {
		return false, err
	}

	deleted, _ := e.deletedColumn()
	c, _ := e.schema.Column(deleted)
	if err := target.SetAttribute(ctx, deleted, c.FlagValue(false), WithoutMetadataOverride()); err != nil {
		return false, err
	}

	e.evict(ctx)
	if err := e.fetch(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// cascade 对声明的 has one / has many 子关系执行 fn，belongs to 不级联
func (e *Entity) cascade(ctx context.Context, includeDeleted bool, fn func(child Model) error) error {
	for _, r := range e.relations {
		var opts []ChildOption
		switch r.kind {
		case hasOne:
			opts = append(opts, ForceOne())
		case hasMany:
			opts = append(opts, ForceMany())
		default:
			continue
		}
		if includeDeleted {
			opts = append(opts, IncludeDeletedChildren())
		}

		related, err := e.Child(ctx, r.table, opts...)
		if err != nil {
			return err
		}
		if related == nil {
			continue
		}
		e.session.logger.DebugContext(ctx, "cascade", "table", e.table, "id", e.ID(), "child", r.table)

		if related.One != nil {
			if err := fn(related.One); err != nil {
				return err
			}
			continue
		}
		if err := related.Many.Each(ctx, func(_ any, child Model) error {
			return fn(child)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Find 按属性查找一行（包括软删除的行）并以其重新初始化，只能在新实体上调用
func (e *Entity) Find(ctx context.Context, columns map[string]any) (bool, error) {
	if !e.isNew {
		return false, errors.Wrapf(ErrInvalidState, "find on a persisted entity of table [%s]", e.table)
	}
	if e.pkErr != nil {
		return false, e.pkErr
	}
	for name := range columns {
		if !e.schema.Has(name) {
			return false, errors.Wrapf(ErrUnknownAttribute, "find by attribute [%s] of table [%s]", name, e.table)
		}
	}

	id, found, err := e.session.SingleFieldValue(ctx, e.table, e.pk, columns)
	if err != nil || !found {
		return false, err
	}
	if err := e.fetch(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// Duplicate 复制除主键和元数据以外的属性插入新行，可选地复制子关系，返回新行的主键
func (e *Entity) Duplicate(ctx context.Context, withHasOne, withHasMany bool) (any, error) {
	if e.isNew || e.destroyed || e.Modified() {
		return nil, errors.Wrapf(ErrInvalidState, "duplicate an unstable entity of table [%s]", e.table)
	}

	dup, err := e.session.newEntity(ctx, e.table)
	if err != nil {
		return nil, err
	}
	dup.initDefaults()
	dup.ForceNoFiltering(true)
	for _, c := range e.schema.Columns {
		if c.Name == e.pk || e.isMetadata(c.Name) {
			continue
		}
		if err := dup.setAttribute(c.Name, e.attributes[c.Name], &setOptions{}); err != nil {
			return nil, err
		}
	}
	if err := dup.Add(ctx, Force()); err != nil {
		return nil, err
	}
	newID := dup.ID()

	for _, r := range e.relations {
		if (r.kind == hasOne && !withHasOne) || (r.kind == hasMany && !withHasMany) || r.kind == belongsTo {
			continue
		}
		opt := ForceMany()
		if r.kind == hasOne {
			opt = ForceOne()
		}
		related, err := e.Child(ctx, r.table, opt)
		if err != nil {
			return nil, err
		}
		if related == nil {
			continue
		}

		relink := func(_ any, child Model) error {
			childID, err := child.Base().Duplicate(ctx, false, false)
			if err != nil {
				return err
			}
			copied, err := e.session.load(ctx, r.table, childID)
			if err != nil {
				return err
			}
			return copied.SetAttribute(ctx, r.foreignKey, newID)
		}
		if related.One != nil {
			if err := relink(nil, related.One); err != nil {
				return nil, err
			}
			continue
		}
		if err := related.Many.Each(ctx, relink); err != nil {
			return nil, err
		}
	}

	return newID, nil
}
