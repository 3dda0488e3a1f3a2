package query

import (
	"strings"
)

// BoolQuery 布尔查询，Must 之间为 AND，Should 之间为 OR
type BoolQuery struct {
	Must   []Query `json:"must,omitempty"`
	Should []Query `json:"should,omitempty"`
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

func (q *BoolQuery) ToSQL() (string, []any, error) {
	return q.ToDialectSQL("")
}

func (q *BoolQuery) ToDialectSQL(d Dialect) (string, []any, error) {
	var conditions []string
	var args []any

	for _, query := range q.Must {
		sql, queryArgs, err := ToDialectSQL(query, d)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, sql)
		args = append(args, queryArgs...)
	}

	if len(q.Should) > 0 {
		shouldConditions := make([]string, 0, len(q.Should))
		for _, query := range q.Should {
			sql, queryArgs, err := ToDialectSQL(query, d)
			if err != nil {
				return "", nil, err
			}
			shouldConditions = append(shouldConditions, sql)
			args = append(args, queryArgs...)
		}
		conditions = append(conditions, "("+strings.Join(shouldConditions, " OR ")+")")
	}

	if len(conditions) == 0 {
		return "1=1", nil, nil
	}

	return strings.Join(conditions, " AND "), args, nil
}
