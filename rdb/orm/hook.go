package orm

import (
	"context"
	"time"

	"github.com/hatlonely/dbo/log"
)

// HookEvent 生命周期事件
type HookEvent string

const (
	BeforeSave   HookEvent = "before_save"
	BeforeAdd    HookEvent = "before_add"
	BeforeUpdate HookEvent = "before_update"
	BeforeDelete HookEvent = "before_delete"
	AfterAdd     HookEvent = "after_add"
	AfterUpdate  HookEvent = "after_update"
	AfterSave    HookEvent = "after_save"
	AfterDelete  HookEvent = "after_delete"
)

// Hook 生命周期钩子，before 钩子返回错误时中止当前操作
type Hook func(ctx context.Context, e *Entity) error

// AuditEvent 一次已提交的属性变更
type AuditEvent struct {
	Table     string
	RecordID  any
	Attribute string
	OldValue  any
	NewValue  any
	Actor     any
	Timestamp time.Time
}

// AuditHook 变更审计，失败只记录告警日志，不影响已提交的写入
type AuditHook interface {
	Audit(ctx context.Context, events []AuditEvent) error
}

type AuditHookFunc func(ctx context.Context, events []AuditEvent) error

func (f AuditHookFunc) Audit(ctx context.Context, events []AuditEvent) error {
	return f(ctx, events)
}

// LogAuditHook 将变更写入日志
type LogAuditHook struct {
	logger log.Logger
}

func NewLogAuditHook(logger log.Logger) *LogAuditHook {
	if logger == nil {
		logger = log.Default()
	}
	return &LogAuditHook{logger: logger.WithGroup("audit")}
}

func (h *LogAuditHook) Audit(ctx context.Context, events []AuditEvent) error {
	for _, ev := range events {
		h.logger.InfoContext(ctx, "attribute changed",
			"table", ev.Table,
			"id", ev.RecordID,
			"attribute", ev.Attribute,
			"old", ev.OldValue,
			"new", ev.NewValue,
			"actor", ev.Actor,
			"time", ev.Timestamp,
		)
	}
	return nil
}
