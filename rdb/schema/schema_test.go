package schema

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hatlonely/dbo/kv/store"
	"github.com/hatlonely/dbo/log"
	"github.com/hatlonely/dbo/rdb/database"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestColumn(t *testing.T) {
	Convey("测试列类型解析", t, func() {
		So((&Column{Type: "VARCHAR(64)"}).BaseType(), ShouldEqual, "varchar")
		So((&Column{Type: "int unsigned"}).BaseType(), ShouldEqual, "int")
		So((&Column{Type: "varchar(64)"}).IsText(), ShouldBeTrue)
		So((&Column{Type: "mediumtext"}).IsText(), ShouldBeTrue)
		So((&Column{Type: "int(11)"}).IsText(), ShouldBeFalse)
		So((&Column{Type: "blob"}).IsText(), ShouldBeFalse)

		Convey("enum 取值", func() {
			c := &Column{Type: "enum('small','it''s large')"}
			So(c.EnumValues(), ShouldResemble, []string{"small", "it's large"})
			So((&Column{Type: "varchar(8)"}).EnumValues(), ShouldBeNil)
		})

		Convey("标记列取值", func() {
			So((&Column{Type: "boolean"}).FlagValue(true), ShouldEqual, true)
			So((&Column{Type: "tinyint(1)"}).FlagValue(true), ShouldEqual, 1)
			So((&Column{Type: "INTEGER"}).FlagValue(false), ShouldEqual, 0)
		})
	})
}

func TestTableSchema(t *testing.T) {
	Convey("测试表结构", t, func() {
		s := &TableSchema{Table: "farm", Columns: []*Column{
			{Name: "id", Type: "int", PrimaryKey: true},
			{Name: "name", Type: "varchar(64)"},
		}}
		So(s.Names(), ShouldResemble, []string{"id", "name"})
		So(s.Has("name"), ShouldBeTrue)
		So(s.Has("acres"), ShouldBeFalse)
		c, ok := s.Column("name")
		So(ok, ShouldBeTrue)
		So(c.Type, ShouldEqual, "varchar(64)")

		pk, err := s.PrimaryKey()
		So(err, ShouldBeNil)
		So(pk, ShouldEqual, "id")

		Convey("没有主键", func() {
			_, err := (&TableSchema{Table: "log", Columns: []*Column{{Name: "msg"}}}).PrimaryKey()
			So(errors.Is(err, ErrNoPrimaryKey), ShouldBeTrue)
		})

		Convey("联合主键", func() {
			s.Columns[1].PrimaryKey = true
			_, err := s.PrimaryKey()
			So(errors.Is(err, ErrNoPrimaryKey), ShouldBeTrue)
		})
	})
}

func TestUnquoteDefault(t *testing.T) {
	Convey("测试默认值转换", t, func() {
		So(unquoteDefault(nil), ShouldBeNil)
		So(unquoteDefault("NULL"), ShouldBeNil)
		So(unquoteDefault("''"), ShouldEqual, "")
		So(unquoteDefault("'it''s'"), ShouldEqual, "it's")
		So(unquoteDefault("'pending'::character varying"), ShouldEqual, "pending")
		So(unquoteDefault("nextval('farm_id_seq'::regclass)"), ShouldBeNil)
		So(unquoteDefault("0"), ShouldEqual, "0")
		So(unquoteDefault(int64(3)), ShouldEqual, int64(3))
	})
}

func newSQLite() database.Executor {
	e, err := database.NewSQLWithOptions(&database.SQLOptions{Driver: "sqlite3", DSN: ":memory:", MaxConns: 1, MaxIdle: 1})
	So(err, ShouldBeNil)
	_, err = e.Exec(context.Background(), `CREATE TABLE farm (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(64) NOT NULL DEFAULT '',
		acres REAL,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		deleted INTEGER NOT NULL DEFAULT 0
	)`)
	So(err, ShouldBeNil)
	return e
}

func TestSQLiteDescriber(t *testing.T) {
	Convey("测试 sqlite 表结构加载", t, func() {
		e := newSQLite()
		defer e.Close()

		d, err := NewDescriber(e)
		So(err, ShouldBeNil)

		s, err := d.DescribeTable(context.Background(), "farm")
		So(err, ShouldBeNil)
		So(s.Names(), ShouldResemble, []string{"id", "name", "acres", "status", "deleted"})

		pk, err := s.PrimaryKey()
		So(err, ShouldBeNil)
		So(pk, ShouldEqual, "id")

		name, _ := s.Column("name")
		So(name.Nullable, ShouldBeFalse)
		So(name.Default, ShouldEqual, "")
		So(name.IsText(), ShouldBeTrue)

		acres, _ := s.Column("acres")
		So(acres.Nullable, ShouldBeTrue)
		So(acres.Default, ShouldBeNil)

		status, _ := s.Column("status")
		So(status.Default, ShouldEqual, "active")

		deleted, _ := s.Column("deleted")
		So(deleted.Default, ShouldEqual, "0")

		Convey("表不存在", func() {
			_, err := d.DescribeTable(context.Background(), "missing")
			So(errors.Is(err, ErrSchemaUnavailable), ShouldBeTrue)
		})
	})
}

func testCache(cache *Cache, calls *int) {
	ctx := context.Background()

	s, err := cache.Get(ctx, "farm")
	So(err, ShouldBeNil)
	So(s.Table, ShouldEqual, "farm")
	So(*calls, ShouldEqual, 1)

	s, err = cache.Get(ctx, "farm")
	So(err, ShouldBeNil)
	So(s.Names(), ShouldResemble, []string{"id", "name"})
	So(*calls, ShouldEqual, 1)

	Convey("失效后重新加载", func() {
		So(cache.Invalidate(ctx, "farm"), ShouldBeNil)
		_, err := cache.Get(ctx, "farm")
		So(err, ShouldBeNil)
		So(*calls, ShouldEqual, 2)
	})

	Convey("加载失败不写入缓存", func() {
		_, err := cache.Get(ctx, "missing")
		So(errors.Is(err, ErrSchemaUnavailable), ShouldBeTrue)
		_, err = cache.Get(ctx, "missing")
		So(err, ShouldNotBeNil)
		So(*calls, ShouldEqual, 3)
	})

	Convey("预先写入的表结构不触发加载", func() {
		So(cache.Put(ctx, &TableSchema{Table: "crop", Columns: []*Column{{Name: "id", PrimaryKey: true}}}), ShouldBeNil)
		s, err := cache.Get(ctx, "crop")
		So(err, ShouldBeNil)
		So(s.Names(), ShouldResemble, []string{"id"})
		So(*calls, ShouldEqual, 1)
	})
}

func newCountingDescriber(calls *int) Describer {
	return DescriberFunc(func(ctx context.Context, table string) (*TableSchema, error) {
		*calls++
		if table != "farm" {
			return nil, errors.Wrapf(ErrSchemaUnavailable, "table %s does not exist", table)
		}
		return &TableSchema{Table: "farm", Columns: []*Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "VARCHAR(64)", Default: ""},
		}}, nil
	})
}

func TestCache(t *testing.T) {
	Convey("测试进程内表结构缓存", t, func() {
		calls := 0
		cache, err := NewCacheWithOptions(newCountingDescriber(&calls), nil, log.Discard())
		So(err, ShouldBeNil)
		defer cache.Close()
		testCache(cache, &calls)
	})

	Convey("测试 redis 表结构缓存", t, func() {
		mr := miniredis.RunT(t)
		calls := 0
		cache, err := NewCacheWithOptions(newCountingDescriber(&calls), &CacheOptions{
			Store: store.Options{
				Type: "redis",
				Redis: store.RedisStoreOptions{
					Endpoint:      mr.Addr(),
					KeyPrefix:     "schema:",
					KeySerializer: "json",
					ValSerializer: "msgpack",
				},
			},
		}, log.Discard())
		So(err, ShouldBeNil)
		defer cache.Close()
		testCache(cache, &calls)
	})

	Convey("不支持的存储类型", t, func() {
		_, err := NewCacheWithOptions(nil, &CacheOptions{Store: store.Options{Type: "etcd"}}, nil)
		So(err, ShouldNotBeNil)
	})
}
