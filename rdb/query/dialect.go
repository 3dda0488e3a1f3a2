package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Dialect SQL 方言，只覆盖生成语句时的差异
type Dialect string

const (
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// DialectFromDriver 根据 database/sql 驱动名推断方言
func DialectFromDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return MySQL, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", errors.Wrapf(ErrInvalidArgument, "unsupported driver [%s]", driver)
}

// Quote 引用标识符
func (d Dialect) Quote(ident string) string {
	if d == Postgres {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// SupportsDeleteLimit DELETE 是否支持 LIMIT
func (d Dialect) SupportsDeleteLimit() bool {
	return d == MySQL
}

// SupportsReturning INSERT 是否通过 RETURNING 获取生成的主键
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

func (d Dialect) quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = d.Quote(ident)
	}
	return strings.Join(quoted, ", ")
}
