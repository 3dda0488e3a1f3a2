package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var operators = map[string]bool{
	"=":        true,
	"!=":       true,
	"<>":       true,
	"<":        true,
	"<=":       true,
	">":        true,
	">=":       true,
	"LIKE":     true,
	"NOT LIKE": true,
}

// NormalizeOperator 返回大写的比较运算符，不支持的运算符返回 ErrInvalidConstraint
func NormalizeOperator(op string) (string, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if !operators[normalized] {
		return "", errors.Wrapf(ErrInvalidConstraint, "unsupported operator %q", op)
	}
	return normalized, nil
}

// CompareQuery 比较查询，例如 age >= ?
type CompareQuery struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

func (q *CompareQuery) Type() QueryType {
	return QueryTypeCompare
}

func (q *CompareQuery) ToSQL() (string, []any, error) {
	op, err := NormalizeOperator(q.Operator)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s %s ?", q.Field, op), []any{q.Value}, nil
}
