package database

import (
	"context"

	"github.com/hatlonely/dbo/rdb/query"
)

// Row 一行查询结果，列名到值
type Row map[string]any

// Result 写语句的执行结果
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Executor 语句执行器
// SQL 使用 ? 占位符，由实现按驱动改写
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) ([]Row, error)
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
	Dialect() query.Dialect
	Close() error
}

// Statement 可以按方言生成 SQL 的语句
type Statement interface {
	ToSQL(d query.Dialect) (string, []any, error)
}

// QueryStatement 生成并执行查询语句
func QueryStatement(ctx context.Context, e Executor, stmt Statement) ([]Row, error) {
	sql, args, err := stmt.ToSQL(e.Dialect())
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, sql, args...)
}

// ExecStatement 生成并执行写语句
func ExecStatement(ctx context.Context, e Executor, stmt Statement) (Result, error) {
	sql, args, err := stmt.ToSQL(e.Dialect())
	if err != nil {
		return Result{}, err
	}
	return e.Exec(ctx, sql, args...)
}

// normalizeValue mysql 驱动对文本列返回 []byte，统一转换为 string
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
