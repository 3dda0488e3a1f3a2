package log

import (
	"context"
	"log/slog"
)

// Logger dbo 使用的日志接口，所有调用都带 ctx，便于 handler 取出链路信息
type Logger interface {
	// Enabled 用于在拼装开销较大的字段前判断级别
	Enabled(ctx context.Context, level slog.Level) bool

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}
