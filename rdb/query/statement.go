package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Select 单表查询语句
type Select struct {
	Table   string
	Fields  []string
	Where   Query
	OrderBy []Order
	// Limit 为 0 表示不限制
	Limit  int
	Offset int
}

func (s *Select) ToSQL(d Dialect) (string, []any, error) {
	if s.Table == "" {
		return "", nil, errors.Wrap(ErrInvalidArgument, "table is required")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(s.Fields) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(d.quoteAll(s.Fields))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(d.Quote(s.Table))

	var args []any
	if s.Where != nil {
		where, whereArgs, err := ToDialectSQL(s.Where, d)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		args = whereArgs
	}

	if len(s.OrderBy) > 0 {
		orders := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			orders[i] = d.Quote(o.Field) + " " + o.direction()
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}

	if s.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", s.Limit)
		if s.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", s.Offset)
		}
	}

	return sb.String(), args, nil
}

// Insert 单行插入语句，Columns 为空时插入一行全默认值
type Insert struct {
	Table     string
	Columns   []string
	Values    []any
	Returning string
}

func (s *Insert) ToSQL(d Dialect) (string, []any, error) {
	if s.Table == "" {
		return "", nil, errors.Wrap(ErrInvalidArgument, "table is required")
	}
	if len(s.Columns) != len(s.Values) {
		return "", nil, errors.Wrap(ErrInvalidArgument, "columns and values length mismatch")
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.Quote(s.Table))
	switch {
	case len(s.Columns) > 0:
		sb.WriteString(" (")
		sb.WriteString(d.quoteAll(s.Columns))
		sb.WriteString(") VALUES (")
		sb.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(s.Values)), ", "))
		sb.WriteString(")")
	case d == MySQL:
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}

	if s.Returning != "" && d.SupportsReturning() {
		sb.WriteString(" RETURNING ")
		sb.WriteString(d.Quote(s.Returning))
	}

	args := make([]any, len(s.Values))
	copy(args, s.Values)
	return sb.String(), args, nil
}

// Update 更新语句
type Update struct {
	Table   string
	Columns []string
	Values  []any
	Where   Query
}

func (s *Update) ToSQL(d Dialect) (string, []any, error) {
	if s.Table == "" {
		return "", nil, errors.Wrap(ErrInvalidArgument, "table is required")
	}
	if len(s.Columns) == 0 || len(s.Columns) != len(s.Values) {
		return "", nil, errors.Wrap(ErrInvalidArgument, "columns and values mismatch")
	}
	if s.Where == nil {
		return "", nil, errors.Wrap(ErrInvalidArgument, "update without where clause")
	}

	sets := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		sets[i] = d.Quote(c) + " = ?"
	}
	where, whereArgs, err := ToDialectSQL(s.Where, d)
	if err != nil {
		return "", nil, err
	}

	args := make([]any, 0, len(s.Values)+len(whereArgs))
	args = append(args, s.Values...)
	args = append(args, whereArgs...)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", d.Quote(s.Table), strings.Join(sets, ", "), where), args, nil
}

// Delete 删除语句，Limit 只在方言支持时生效
type Delete struct {
	Table string
	Where Query
	Limit int
}

func (s *Delete) ToSQL(d Dialect) (string, []any, error) {
	if s.Table == "" {
		return "", nil, errors.Wrap(ErrInvalidArgument, "table is required")
	}
	if s.Where == nil {
		return "", nil, errors.Wrap(ErrInvalidArgument, "delete without where clause")
	}

	where, args, err := ToDialectSQL(s.Where, d)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Quote(s.Table), where)
	if s.Limit > 0 && d.SupportsDeleteLimit() {
		sql += fmt.Sprintf(" LIMIT %d", s.Limit)
	}
	return sql, args, nil
}
