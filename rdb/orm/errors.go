package orm

import (
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/pkg/errors"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnknownAttribute     = errors.New("unknown attribute")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrInvalidState         = errors.New("invalid state")
	ErrUnmodified           = errors.New("unmodified")
	ErrPendingModifications = errors.New("pending modifications")
	ErrPersistFailed        = errors.New("persist failed")
	ErrInvalidCallback      = errors.New("invalid callback")
	ErrUnsupported          = errors.New("unsupported")

	ErrInvalidConstraint = query.ErrInvalidConstraint
	ErrInvalidArgument   = query.ErrInvalidArgument
)

// persistError 同时匹配 ErrPersistFailed 和原始错误
type persistError struct {
	cause error
}

func (e *persistError) Error() string {
	return ErrPersistFailed.Error() + ": " + e.cause.Error()
}

func (e *persistError) Is(target error) bool {
	return target == ErrPersistFailed
}

func (e *persistError) Unwrap() error {
	return e.cause
}

// persistFailed 将语句执行失败归类为 ErrPersistFailed，保留原始错误链，已归类的错误只追加上下文
func persistFailed(err error, format string, args ...any) error {
	if errors.Is(err, ErrPersistFailed) {
		return errors.WithMessagef(err, format, args...)
	}
	return errors.WithMessagef(&persistError{cause: err}, format, args...)
}
