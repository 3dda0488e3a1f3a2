package orm

import (
	"context"
	"strings"
	"time"

	"github.com/hatlonely/dbo/log"
	"github.com/hatlonely/dbo/rdb/database"
	. "github.com/smartystreets/goconvey/convey"
)

var fixtureDDL = []string{
	`CREATE TABLE farm (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(64) NOT NULL DEFAULT '',
		acres REAL,
		inserted_on DATETIME,
		inserted_by INTEGER,
		inserted_ip VARCHAR(45),
		updated_on DATETIME,
		updated_by INTEGER,
		updated_ip VARCHAR(45),
		deleted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE animals (
		animal_id INTEGER PRIMARY KEY AUTOINCREMENT,
		farm_id INTEGER,
		name VARCHAR(64) NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE barn (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		farm_id INTEGER,
		user_id INTEGER,
		color VARCHAR(16) NOT NULL DEFAULT 'red',
		deleted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE fruit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(32) NOT NULL DEFAULT '',
		color VARCHAR(16)
	)`,
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(64)
	)`,
	`CREATE TABLE tag (
		label VARCHAR(16)
	)`,
}

var fixtureDML = []string{
	`INSERT INTO farm (id, name, acres) VALUES (1, 'eSchool Farms', 12.5), (2, 'Green Acres', NULL)`,
	`INSERT INTO animals (animal_id, farm_id, name) VALUES (1, 1, 'Horse'), (2, 2, 'Cow'), (3, 1, 'Pig')`,
	`INSERT INTO barn (id, farm_id, user_id, color) VALUES (1, 1, 7, 'red')`,
	`INSERT INTO fruit (id, name, color) VALUES (1, 'strawberry', 'red'), (2, 'banana', 'yellow'), (3, 'apple', 'red'), (4, 'kiwi', 'green')`,
	`INSERT INTO users (id, name) VALUES (7, 'alice')`,
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

// spyExecutor 记录执行过的语句
type spyExecutor struct {
	database.Executor
	statements []string
	queries    []string
}

func (s *spyExecutor) Query(ctx context.Context, sql string, args ...any) ([]database.Row, error) {
	s.queries = append(s.queries, sql)
	return s.Executor.Query(ctx, sql, args...)
}

func (s *spyExecutor) Exec(ctx context.Context, sql string, args ...any) (database.Result, error) {
	s.statements = append(s.statements, sql)
	return s.Executor.Exec(ctx, sql, args...)
}

func (s *spyExecutor) reset() {
	s.statements = nil
	s.queries = nil
}

func (s *spyExecutor) count(prefix string) int {
	n := 0
	for _, stmt := range s.statements {
		if strings.HasPrefix(stmt, prefix) {
			n++
		}
	}
	return n
}

// newTestSession 每次调用都创建一个新的内存数据库
func newTestSession(opts ...SessionOption) (*Session, *spyExecutor) {
	ctx := context.Background()

	inner, err := database.NewSQLWithOptions(&database.SQLOptions{Driver: "sqlite3", DSN: ":memory:", MaxConns: 1, MaxIdle: 1})
	So(err, ShouldBeNil)
	for _, stmt := range append(append([]string{}, fixtureDDL...), fixtureDML...) {
		_, err := inner.Exec(ctx, stmt)
		So(err, ShouldBeNil)
	}

	spy := &spyExecutor{Executor: inner}
	opts = append([]SessionOption{WithLogger(log.Discard()), WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := NewSessionWithOptions(spy, nil, &SessionOptions{}, opts...)
	So(err, ShouldBeNil)
	return s, spy
}

type Farm struct {
	*Entity
}

func (f *Farm) Name() string {
	v, _ := f.GetAttribute("name")
	s, _ := v.(string)
	return s
}

type Animal struct {
	*Entity
}

func farmRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("farm", func(e *Entity) (Model, error) {
		e.HasMany("animals", "")
		e.HasOne("barn", "")
		return &Farm{Entity: e}, nil
	})
	r.MustRegister("animal", func(e *Entity) (Model, error) {
		return &Animal{Entity: e}, nil
	})
	return r
}
