package orm

import (
	"context"
	"time"

	"github.com/spf13/cast"
)

// Inserter 创建该行的用户，来自用户表中 inserted_by 对应的行
func (e *Entity) Inserter(ctx context.Context) (Model, bool, error) {
	return e.user(ctx, e.session.metadata.InsertedBy)
}

// Updater 最后修改该行的用户
func (e *Entity) Updater(ctx context.Context) (Model, bool, error) {
	return e.user(ctx, e.session.metadata.UpdatedBy)
}

// Editor 最后编辑该行的用户，没有修改过时为创建者
func (e *Entity) Editor(ctx context.Context) (Model, bool, error) {
	if m, ok, err := e.Updater(ctx); err != nil || ok {
		return m, ok, err
	}
	return e.Inserter(ctx)
}

func (e *Entity) user(ctx context.Context, column string) (Model, bool, error) {
	if !e.isMetadata(column) {
		return nil, false, nil
	}
	return e.Parent(ctx, column, ParentTable(e.session.userTable))
}

// EditedAt 最后编辑时间，优先 updated_on，其次 inserted_on
func (e *Entity) EditedAt() (time.Time, bool) {
	for _, column := range []string{e.session.metadata.UpdatedOn, e.session.metadata.InsertedOn} {
		if !e.isMetadata(column) {
			continue
		}
		if t, ok := e.parseTime(e.attributes[column]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e *Entity) parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case string:
		if t, err := time.ParseInLocation(e.session.timeFormat, x, time.Local); err == nil {
			return t, true
		}
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
