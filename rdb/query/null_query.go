package query

import "fmt"

// NullQuery 空值查询
type NullQuery struct {
	Field string `json:"field"`
	Not   bool   `json:"not,omitempty"`
}

func (q *NullQuery) Type() QueryType {
	return QueryTypeNull
}

func (q *NullQuery) ToSQL() (string, []any, error) {
	if q.Not {
		return fmt.Sprintf("%s IS NOT NULL", q.Field), nil, nil
	}
	return fmt.Sprintf("%s IS NULL", q.Field), nil, nil
}
