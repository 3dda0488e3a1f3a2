package database

import (
	"context"
	"testing"

	"github.com/hatlonely/dbo/log"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

const farmDDL = `CREATE TABLE farm (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(64) NOT NULL DEFAULT '',
	acres REAL,
	deleted INTEGER NOT NULL DEFAULT 0
)`

func testExecutor(e Executor) {
	ctx := context.Background()

	_, err := e.Exec(ctx, farmDDL)
	So(err, ShouldBeNil)

	Convey("插入返回 LastInsertID 和影响行数", func() {
		res, err := ExecStatement(ctx, e, &query.Insert{Table: "farm", Columns: []string{"name", "acres"}, Values: []any{"eSchool Farms", 12.5}})
		So(err, ShouldBeNil)
		So(res.RowsAffected, ShouldEqual, 1)
		So(res.LastInsertID, ShouldEqual, 1)

		res, err = ExecStatement(ctx, e, &query.Insert{Table: "farm"})
		So(err, ShouldBeNil)
		So(res.LastInsertID, ShouldEqual, 2)

		Convey("查询结果为列名到值的映射，文本列为 string", func() {
			rows, err := QueryStatement(ctx, e, &query.Select{
				Table:   "farm",
				Where:   &query.InQuery{Field: "id", Values: []any{1, 2}},
				OrderBy: []query.Order{query.Desc("id")},
			})
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 2)
			So(rows[0]["id"], ShouldEqual, int64(2))
			So(rows[0]["name"], ShouldEqual, "")
			So(rows[0]["acres"], ShouldBeNil)
			So(rows[1]["name"], ShouldEqual, "eSchool Farms")
			So(rows[1]["acres"], ShouldEqual, 12.5)
		})

		Convey("空集合不匹配任何行", func() {
			rows, err := QueryStatement(ctx, e, &query.Select{Table: "farm", Where: &query.InQuery{Field: "id"}})
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("更新和删除", func() {
			res, err := ExecStatement(ctx, e, &query.Update{Table: "farm", Columns: []string{"deleted"}, Values: []any{1}, Where: &query.TermQuery{Field: "id", Value: 1}})
			So(err, ShouldBeNil)
			So(res.RowsAffected, ShouldEqual, 1)

			res, err = ExecStatement(ctx, e, &query.Delete{Table: "farm", Where: &query.TermQuery{Field: "id", Value: 2}, Limit: 1})
			So(err, ShouldBeNil)
			So(res.RowsAffected, ShouldEqual, 1)

			rows, err := e.Query(ctx, "SELECT deleted FROM farm")
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []Row{{"deleted": int64(1)}})
		})
	})

	Convey("语法错误返回错误", func() {
		_, err := e.Query(ctx, "SELEC * FROM farm")
		So(err, ShouldNotBeNil)
		_, err = e.Exec(ctx, "INSERT INTO missing (a) VALUES (?)", 1)
		So(err, ShouldNotBeNil)
	})
}

func TestSQL(t *testing.T) {
	Convey("测试 sqlx 执行器", t, func() {
		e, err := NewSQLWithOptions(&SQLOptions{Driver: "sqlite3", DSN: ":memory:", MaxConns: 1, MaxIdle: 1})
		So(err, ShouldBeNil)
		defer e.Close()
		So(e.Dialect(), ShouldEqual, query.SQLite)
		testExecutor(e)
	})

	Convey("不支持的驱动", t, func() {
		_, err := NewSQLWithOptions(&SQLOptions{Driver: "oracle"})
		So(err, ShouldNotBeNil)
		_, err = NewSQLWithOptions(nil)
		So(err, ShouldNotBeNil)
	})
}

func TestGorm(t *testing.T) {
	Convey("测试 gorm 执行器", t, func() {
		e, err := NewGormWithOptions(&GormOptions{Driver: "sqlite3", DSN: ":memory:", MaxConns: 1, MaxIdle: 1})
		So(err, ShouldBeNil)
		defer e.Close()
		So(e.Dialect(), ShouldEqual, query.SQLite)
		testExecutor(e)
	})

	Convey("不支持的驱动", t, func() {
		_, err := NewGormWithOptions(&GormOptions{Driver: "postgres", DSN: "x"})
		So(err, ShouldNotBeNil)
	})
}

func TestObservableExecutor(t *testing.T) {
	Convey("测试可观测执行器", t, func() {
		inner, err := NewSQLWithOptions(&SQLOptions{Driver: "sqlite3", DSN: ":memory:", MaxConns: 1, MaxIdle: 1})
		So(err, ShouldBeNil)

		registry := prometheus.NewRegistry()
		e, err := NewObservableExecutorWithOptions(inner, &ObservableOptions{
			Name:          "dbo_test",
			EnableMetrics: true,
			EnableLogging: true,
			EnableTracing: true,
		}, log.Discard(), registry)
		So(err, ShouldBeNil)
		defer e.Close()

		testExecutor(e)

		So(testutil.ToFloat64(e.metrics.statementCounter.WithLabelValues("create", "success")), ShouldEqual, 1)
		So(testutil.ToFloat64(e.metrics.activeStatements), ShouldEqual, 0)

		Convey("同名指标重复注册时复用", func() {
			other, err := NewObservableExecutorWithOptions(inner, &ObservableOptions{Name: "dbo_test", EnableMetrics: true}, nil, registry)
			So(err, ShouldBeNil)
			So(other.metrics.statementCounter, ShouldEqual, e.metrics.statementCounter)
		})

		Convey("操作名取语句首个关键字", func() {
			So(operationOf("  SELECT * FROM farm"), ShouldEqual, "select")
			So(operationOf(""), ShouldEqual, "unknown")
		})
	})
}
