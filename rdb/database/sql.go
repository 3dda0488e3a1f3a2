package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hatlonely/dbo/rdb/query"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLOptions struct {
	// 驱动：mysql, sqlite3, postgres
	Driver   string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3 postgres pgx"`
	DSN      string `cfg:"dsn" env:"DBO_DATABASE_DSN"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password" env:"DBO_DATABASE_PASSWORD"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
	// 连接最长复用时间，0 表示不限制
	ConnMaxLifetime time.Duration `cfg:"connMaxLifetime"`
}

// SQL 基于 sqlx 的执行器
type SQL struct {
	db      *sqlx.DB
	dialect query.Dialect
}

func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	dialect, err := query.DialectFromDriver(options.Driver)
	if err != nil {
		return nil, err
	}

	driver := options.Driver
	dsn := options.DSN
	switch dialect {
	case query.MySQL:
		if dsn == "" {
			port := options.Port
			if port == "" {
				port = "3306"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
				options.Username, options.Password, options.Host, port, options.Database, options.Charset)
		}
	case query.SQLite:
		driver = "sqlite3"
		if dsn == "" {
			dsn = options.Database
		}
		if dsn == "" {
			dsn = ":memory:"
		}
	case query.Postgres:
		driver = "pgx"
		if dsn == "" {
			port := options.Port
			if port == "" {
				port = "5432"
			}
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
				options.Username, options.Password, options.Host, port, options.Database)
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlx.Open %s failed", driver)
	}

	db.SetMaxOpenConns(options.MaxConns)
	db.SetMaxIdleConns(options.MaxIdle)
	if options.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(options.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db.Ping failed")
	}

	return &SQL{db: db, dialect: dialect}, nil
}

func (s *SQL) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(sql), args...)
	if err != nil {
		return nil, errors.Wrap(err, "db.QueryxContext failed")
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, errors.Wrap(err, "rows.MapScan failed")
		}
		row := make(Row, len(m))
		for k, v := range m {
			row[k] = normalizeValue(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return result, nil
}

func (s *SQL) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(sql), args...)
	if err != nil {
		return Result{}, errors.Wrap(err, "db.ExecContext failed")
	}

	var result Result
	if result.RowsAffected, err = res.RowsAffected(); err != nil {
		return Result{}, errors.Wrap(err, "RowsAffected failed")
	}
	// postgres 不支持 LastInsertId，通过 RETURNING 获取
	if s.dialect != query.Postgres {
		if result.LastInsertID, err = res.LastInsertId(); err != nil {
			return Result{}, errors.Wrap(err, "LastInsertId failed")
		}
	}
	return result, nil
}

func (s *SQL) Dialect() query.Dialect {
	return s.dialect
}

func (s *SQL) Close() error {
	return s.db.Close()
}
