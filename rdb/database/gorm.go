package database

import (
	"context"
	"database/sql"

	"github.com/hatlonely/dbo/rdb/query"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormOptions struct {
	// 驱动：mysql, sqlite3
	Driver   string `cfg:"driver" def:"sqlite3" validate:"oneof=mysql sqlite3"`
	DSN      string `cfg:"dsn"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
	// gorm 日志级别：silent, error, warn, info
	LogLevel string `cfg:"logLevel" def:"silent" validate:"omitempty,oneof=silent error warn info"`
}

// Gorm 复用 gorm 连接池执行原始 SQL 的执行器，适合与已有 gorm 代码共享连接
type Gorm struct {
	db      *gorm.DB
	dialect query.Dialect
}

func NewGormWithOptions(options *GormOptions) (*Gorm, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.DSN == "" {
		return nil, errors.New("dsn is required")
	}

	var dialector gorm.Dialector
	var dialect query.Dialect
	switch options.Driver {
	case "mysql":
		dialector, dialect = mysql.Open(options.DSN), query.MySQL
	case "sqlite3", "sqlite":
		dialector, dialect = sqlite.Open(options.DSN), query.SQLite
	default:
		return nil, errors.Errorf("unsupported driver: %s", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(parseGormLogLevel(options.LogLevel)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Open failed")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "db.DB failed")
	}
	sqlDB.SetMaxOpenConns(options.MaxConns)
	sqlDB.SetMaxIdleConns(options.MaxIdle)

	return NewGorm(db, dialect), nil
}

// NewGorm 包装已有的 gorm 连接
func NewGorm(db *gorm.DB, dialect query.Dialect) *Gorm {
	return &Gorm{db: db, dialect: dialect}
}

func parseGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

func (g *Gorm) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := g.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Raw failed")
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return result, nil
}

func (g *Gorm) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	// 直接使用连接池执行，gorm.Exec 不返回 LastInsertId
	res, err := g.db.WithContext(ctx).ConnPool.ExecContext(ctx, sql, args...)
	if err != nil {
		return Result{}, errors.Wrap(err, "ConnPool.ExecContext failed")
	}

	var result Result
	if result.RowsAffected, err = res.RowsAffected(); err != nil {
		return Result{}, errors.Wrap(err, "RowsAffected failed")
	}
	if result.LastInsertID, err = res.LastInsertId(); err != nil {
		return Result{}, errors.Wrap(err, "LastInsertId failed")
	}
	return result, nil
}

func (g *Gorm) Dialect() query.Dialect {
	return g.dialect
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "db.DB failed")
	}
	return sqlDB.Close()
}

func scanRow(rows *sql.Rows) (Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "rows.Columns failed")
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, errors.Wrap(err, "rows.Scan failed")
	}

	row := make(Row, len(columns))
	for i, col := range columns {
		row[col] = normalizeValue(values[i])
	}
	return row, nil
}
