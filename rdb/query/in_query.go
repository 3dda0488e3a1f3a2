package query

import (
	"fmt"
	"strings"
)

// InQuery 集合成员查询
// 空集合生成一个空字符串的 IN 列表，不匹配任何行，而不是省略该条件；
// postgres 不会把空字符串隐式转换为数值，该方言下字段先转为文本再比较
type InQuery struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
	Not    bool   `json:"not,omitempty"`
}

func (q *InQuery) Type() QueryType {
	return QueryTypeIn
}

func (q *InQuery) ToSQL() (string, []any, error) {
	return q.ToDialectSQL("")
}

func (q *InQuery) ToDialectSQL(d Dialect) (string, []any, error) {
	op := "IN"
	if q.Not {
		op = "NOT IN"
	}

	if len(q.Values) == 0 {
		if d == Postgres {
			return fmt.Sprintf("CAST(%s AS TEXT) %s ('')", q.Field, op), nil, nil
		}
		return fmt.Sprintf("%s %s ('')", q.Field, op), nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.Values)), ", ")
	args := make([]any, len(q.Values))
	copy(args, q.Values)
	return fmt.Sprintf("%s %s (%s)", q.Field, op, placeholders), args, nil
}
