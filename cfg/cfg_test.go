package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type testPoolOptions struct {
	MaxConns int           `cfg:"maxConns" def:"10"`
	Timeout  time.Duration `cfg:"timeout" def:"3s"`
}

type testOptions struct {
	Driver   string            `cfg:"driver" def:"sqlite3" validate:"oneof=mysql sqlite3 postgres"`
	DSN      string            `cfg:"dsn" env:"DBO_TEST_DSN"`
	Debug    bool              `cfg:"debug"`
	Tables   []string          `cfg:"tables"`
	Labels   map[string]string `cfg:"labels"`
	Pool     testPoolOptions   `cfg:"pool"`
	Ratio    float64           `cfg:"ratio" def:"0.5"`
	Internal string            `cfg:"-"`
}

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)
	return path
}

func TestLoadFile(t *testing.T) {
	Convey("测试从不同格式的配置文件加载选项", t, func() {
		dir := t.TempDir()

		Convey("yaml 格式", func() {
			path := writeFile(dir, "dbo.yaml", `
driver: mysql
dsn: "root:@tcp(localhost:3306)/farm"
debug: true
tables: [farm, animals]
labels:
  env: test
pool:
  maxConns: 3
  timeout: 1m
`)
			var options testOptions
			So(LoadFile(path, &options), ShouldBeNil)
			So(options.Driver, ShouldEqual, "mysql")
			So(options.DSN, ShouldEqual, "root:@tcp(localhost:3306)/farm")
			So(options.Debug, ShouldBeTrue)
			So(options.Tables, ShouldResemble, []string{"farm", "animals"})
			So(options.Labels, ShouldResemble, map[string]string{"env": "test"})
			So(options.Pool.MaxConns, ShouldEqual, 3)
			So(options.Pool.Timeout, ShouldEqual, time.Minute)
			So(options.Ratio, ShouldEqual, 0.5)
		})

		Convey("json 格式，字段名忽略大小写", func() {
			path := writeFile(dir, "dbo.json", `{"Driver": "postgres", "POOL": {"maxconns": "7"}}`)
			var options testOptions
			So(LoadFile(path, &options), ShouldBeNil)
			So(options.Driver, ShouldEqual, "postgres")
			So(options.Pool.MaxConns, ShouldEqual, 7)
			So(options.Pool.Timeout, ShouldEqual, 3*time.Second)
		})

		Convey("toml 格式", func() {
			path := writeFile(dir, "dbo.toml", `
driver = "sqlite3"
tables = "farm, animals"

[pool]
maxConns = 1
`)
			var options testOptions
			So(LoadFile(path, &options), ShouldBeNil)
			So(options.Tables, ShouldResemble, []string{"farm", "animals"})
			So(options.Pool.MaxConns, ShouldEqual, 1)
		})

		Convey("ini 格式，section 支持嵌套", func() {
			path := writeFile(dir, "dbo.ini", `
driver = mysql
debug = true

[pool]
maxConns = 4
timeout = 500ms
`)
			var options testOptions
			So(LoadFile(path, &options), ShouldBeNil)
			So(options.Driver, ShouldEqual, "mysql")
			So(options.Debug, ShouldBeTrue)
			So(options.Pool.MaxConns, ShouldEqual, 4)
			So(options.Pool.Timeout, ShouldEqual, 500*time.Millisecond)
		})

		Convey("环境变量覆盖配置文件", func() {
			t.Setenv("DBO_TEST_DSN", "file::memory:")
			path := writeFile(dir, "env.yaml", "dsn: ignored\n")
			var options testOptions
			So(LoadFile(path, &options), ShouldBeNil)
			So(options.DSN, ShouldEqual, "file::memory:")
		})

		Convey("校验失败", func() {
			path := writeFile(dir, "bad.yaml", "driver: oracle\n")
			var options testOptions
			So(LoadFile(path, &options), ShouldNotBeNil)
		})

		Convey("不支持的格式", func() {
			path := writeFile(dir, "dbo.xml", "<driver/>")
			var options testOptions
			So(LoadFile(path, &options), ShouldNotBeNil)
		})

		Convey("文件不存在", func() {
			var options testOptions
			So(LoadFile(filepath.Join(dir, "missing.yaml"), &options), ShouldNotBeNil)
		})
	})
}

func TestSetDefaults(t *testing.T) {
	Convey("测试 def tag 默认值", t, func() {
		Convey("零值字段被填充，已有值保持不变", func() {
			options := &testOptions{Driver: "mysql"}
			So(SetDefaults(options), ShouldBeNil)
			So(options.Driver, ShouldEqual, "mysql")
			So(options.Pool.MaxConns, ShouldEqual, 10)
			So(options.Pool.Timeout, ShouldEqual, 3*time.Second)
		})

		Convey("无效输入", func() {
			So(SetDefaults(nil), ShouldNotBeNil)
			So(SetDefaults(testOptions{}), ShouldNotBeNil)
			var options *testOptions
			So(SetDefaults(options), ShouldNotBeNil)
		})

		Convey("非法的默认值", func() {
			type bad struct {
				N int `def:"ten"`
			}
			So(SetDefaults(&bad{}), ShouldNotBeNil)
		})
	})
}
