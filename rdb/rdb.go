package rdb

import (
	"github.com/hatlonely/dbo/cfg"
	"github.com/hatlonely/dbo/log"
	"github.com/hatlonely/dbo/rdb/database"
	"github.com/hatlonely/dbo/rdb/orm"
	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/pkg/errors"
)

type DatabaseOptions struct {
	// 执行器：sql 基于 sqlx，gorm 复用 gorm 连接池
	Backend string               `cfg:"backend" def:"sql" validate:"oneof=sql gorm"`
	SQL     database.SQLOptions  `cfg:"sql"`
	Gorm    database.GormOptions `cfg:"gorm"`
}

// Options 一个会话需要的全部配置
//
//	database:
//	  backend: sql
//	  sql:
//	    driver: sqlite3
//	    dsn: ":memory:"
//	observability:
//	  name: dbo
//	schema:
//	  store:
//	    type: redis
//	session:
//	  defaultContentType: name
type Options struct {
	Database      DatabaseOptions            `cfg:"database"`
	Observability database.ObservableOptions `cfg:"observability"`
	Schema        schema.CacheOptions        `cfg:"schema"`
	Session       orm.SessionOptions         `cfg:"session"`
	Logger        log.Options                `cfg:"logger"`
}

// NewSessionFromFile 从 yaml/json/toml/ini 配置文件创建会话
func NewSessionFromFile(filename string, opts ...orm.SessionOption) (*orm.Session, error) {
	options := &Options{}
	if err := cfg.LoadFile(filename, options); err != nil {
		return nil, err
	}
	return NewSessionWithOptions(options, opts...)
}

// NewSessionWithOptions 按配置组装日志、执行器、表结构缓存和会话
// 执行器总是包装为可观测执行器，指标、日志和追踪分别由 observability 中的开关控制；
// opts 中的 WithLogger 优先于配置中的日志
func NewSessionWithOptions(options *Options, opts ...orm.SessionOption) (*orm.Session, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	logger, err := log.NewLoggerWithOptions(&options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}

	inner, err := newExecutor(&options.Database)
	if err != nil {
		return nil, err
	}
	executor, err := database.NewObservableExecutorWithOptions(inner, &options.Observability, logger, nil)
	if err != nil {
		_ = inner.Close()
		return nil, errors.WithMessage(err, "create observable executor failed")
	}

	describer, err := schema.NewDescriber(executor)
	if err != nil {
		_ = executor.Close()
		return nil, err
	}
	schemas, err := schema.NewCacheWithOptions(describer, &options.Schema, logger)
	if err != nil {
		_ = executor.Close()
		return nil, err
	}

	opts = append([]orm.SessionOption{orm.WithLogger(logger)}, opts...)
	session, err := orm.NewSessionWithOptions(executor, schemas, &options.Session, opts...)
	if err != nil {
		_ = executor.Close()
		return nil, err
	}
	return session, nil
}

func newExecutor(options *DatabaseOptions) (database.Executor, error) {
	switch options.Backend {
	case "sql", "":
		e, err := database.NewSQLWithOptions(&options.SQL)
		if err != nil {
			return nil, errors.WithMessage(err, "create sql executor failed")
		}
		return e, nil
	case "gorm":
		e, err := database.NewGormWithOptions(&options.Gorm)
		if err != nil {
			return nil, errors.WithMessage(err, "create gorm executor failed")
		}
		return e, nil
	}
	return nil, errors.Errorf("unsupported backend: %s", options.Backend)
}
