package log

import (
	"context"
	"log/slog"
)

type discardLogger struct{}

func (discardLogger) Enabled(context.Context, slog.Level) bool     { return false }
func (discardLogger) DebugContext(context.Context, string, ...any) {}
func (discardLogger) InfoContext(context.Context, string, ...any)  {}
func (discardLogger) WarnContext(context.Context, string, ...any)  {}
func (discardLogger) ErrorContext(context.Context, string, ...any) {}
func (d discardLogger) With(...any) Logger                         { return d }
func (d discardLogger) WithGroup(string) Logger                    { return d }
