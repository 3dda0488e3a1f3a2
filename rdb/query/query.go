package query

import "github.com/pkg/errors"

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool    QueryType = "bool"
	QueryTypeTerm    QueryType = "term"
	QueryTypeIn      QueryType = "in"
	QueryTypeNull    QueryType = "null"
	QueryTypeCompare QueryType = "compare"
	QueryTypeRaw     QueryType = "raw"
)

var (
	ErrInvalidConstraint = errors.New("invalid constraint")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Query 谓词节点接口
// ToSQL 返回带 ? 占位符的 SQL 片段和参数，占位符由执行器按驱动改写
type Query interface {
	Type() QueryType
	ToSQL() (string, []any, error)
}

// DialectQuery 生成的 SQL 依赖方言的谓词节点
type DialectQuery interface {
	Query
	ToDialectSQL(d Dialect) (string, []any, error)
}

// ToDialectSQL 节点实现了 DialectQuery 时按方言生成，否则退回 ToSQL
func ToDialectSQL(q Query, d Dialect) (string, []any, error) {
	if dq, ok := q.(DialectQuery); ok {
		return dq.ToDialectSQL(d)
	}
	return q.ToSQL()
}
