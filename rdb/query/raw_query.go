package query

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// RawQuery 原样拼接的比较片段，例如 inserted_on > 'NOW() - INTERVAL 1 DAY'
// Fragment 不会被转义，调用方负责其安全性
type RawQuery struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Fragment string `json:"fragment"`
}

func (q *RawQuery) Type() QueryType {
	return QueryTypeRaw
}

func (q *RawQuery) ToSQL() (string, []any, error) {
	op, err := NormalizeOperator(q.Operator)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s %s", q.Field, op, q.Fragment), nil, nil
}

// Suspicious 使用 libinjection 检测片段，返回是否疑似注入及其指纹
func (q *RawQuery) Suspicious() (bool, string) {
	return libinjection.IsSQLi(q.Fragment)
}
