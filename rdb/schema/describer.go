package schema

import (
	"context"
	"strings"

	"github.com/hatlonely/dbo/rdb/database"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Describer 表结构描述能力
type Describer interface {
	DescribeTable(ctx context.Context, table string) (*TableSchema, error)
}

// DescriberFunc 函数形式的 Describer，便于测试时提供合成的表结构
type DescriberFunc func(ctx context.Context, table string) (*TableSchema, error)

func (f DescriberFunc) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	return f(ctx, table)
}

// NewDescriber 根据执行器的方言选择实现
func NewDescriber(executor database.Executor) (Describer, error) {
	switch executor.Dialect() {
	case query.SQLite:
		return &SQLiteDescriber{executor: executor}, nil
	case query.MySQL:
		return &MySQLDescriber{executor: executor}, nil
	case query.Postgres:
		return &PostgresDescriber{executor: executor}, nil
	}
	return nil, errors.Errorf("unsupported dialect: %s", executor.Dialect())
}

// SQLiteDescriber 基于 PRAGMA table_info
type SQLiteDescriber struct {
	executor database.Executor
}

func (d *SQLiteDescriber) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	rows, err := d.executor.Query(ctx, "SELECT name, type, \"notnull\", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe table %s failed", table)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrSchemaUnavailable, "table %s does not exist", table)
	}

	s := &TableSchema{Table: table}
	for _, row := range rows {
		s.Columns = append(s.Columns, &Column{
			Name:       cast.ToString(row["name"]),
			Type:       cast.ToString(row["type"]),
			Nullable:   cast.ToInt(row["notnull"]) == 0,
			Default:    unquoteDefault(row["dflt_value"]),
			PrimaryKey: cast.ToInt(row["pk"]) > 0,
		})
	}
	return s, nil
}

// MySQLDescriber 基于 information_schema.COLUMNS
type MySQLDescriber struct {
	executor database.Executor
}

func (d *MySQLDescriber) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	rows, err := d.executor.Query(ctx, `SELECT COLUMN_NAME AS name, COLUMN_TYPE AS type, IS_NULLABLE AS nullable,
		COLUMN_DEFAULT AS dflt, COLUMN_KEY AS ckey
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe table %s failed", table)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrSchemaUnavailable, "table %s does not exist", table)
	}

	s := &TableSchema{Table: table}
	for _, row := range rows {
		s.Columns = append(s.Columns, &Column{
			Name:       cast.ToString(row["name"]),
			Type:       cast.ToString(row["type"]),
			Nullable:   strings.EqualFold(cast.ToString(row["nullable"]), "YES"),
			Default:    unquoteDefault(row["dflt"]),
			PrimaryKey: cast.ToString(row["ckey"]) == "PRI",
		})
	}
	return s, nil
}

// PostgresDescriber 基于 information_schema.columns 和主键约束
type PostgresDescriber struct {
	executor database.Executor
}

func (d *PostgresDescriber) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	rows, err := d.executor.Query(ctx, `SELECT c.column_name AS name, c.data_type AS type, c.is_nullable AS nullable,
		c.column_default AS dflt,
		EXISTS (
			SELECT 1 FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage k
				ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name AND k.column_name = c.column_name
		) AS pk
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = ?
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe table %s failed", table)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrSchemaUnavailable, "table %s does not exist", table)
	}

	s := &TableSchema{Table: table}
	for _, row := range rows {
		s.Columns = append(s.Columns, &Column{
			Name:       cast.ToString(row["name"]),
			Type:       cast.ToString(row["type"]),
			Nullable:   strings.EqualFold(cast.ToString(row["nullable"]), "YES"),
			Default:    unquoteDefault(row["dflt"]),
			PrimaryKey: cast.ToBool(row["pk"]),
		})
	}
	return s, nil
}

// unquoteDefault 将默认值表达式转换为字面值
// 'abc' -> abc, 'abc'::character varying -> abc, NULL 和 nextval(...) -> nil
func unquoteDefault(v any) any {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "'") {
		if idx := strings.LastIndex(s, "'::"); idx > 0 {
			s = s[:idx+1]
		}
	}
	switch {
	case strings.EqualFold(s, "NULL"), strings.HasPrefix(strings.ToLower(s), "nextval("):
		return nil
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
