package serializer

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type column struct {
	Name     string
	Type     string
	Nullable bool
	Default  any
}

func TestNewByteSerializer(t *testing.T) {
	Convey("测试按名称创建序列化器", t, func() {
		for _, name := range []string{"", "msgpack", "json"} {
			s, err := NewByteSerializer[*column](name)
			So(err, ShouldBeNil)

			data, err := s.Serialize(&column{Name: "name", Type: "varchar(64)", Default: "unknown"})
			So(err, ShouldBeNil)
			c, err := s.Deserialize(data)
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, "name")
			So(c.Type, ShouldEqual, "varchar(64)")
			So(c.Default, ShouldEqual, "unknown")
		}

		_, err := NewByteSerializer[string]("bson")
		So(err, ShouldNotBeNil)
	})

	Convey("msgpack 将 interface 中的整数解码为 int64", t, func() {
		s := NewMsgPackSerializer[*column]()
		data, err := s.Serialize(&column{Name: "acres", Default: 3})
		So(err, ShouldBeNil)
		c, err := s.Deserialize(data)
		So(err, ShouldBeNil)
		So(c.Default, ShouldEqual, int64(3))

		_, err = s.Deserialize([]byte{0xc1})
		So(err, ShouldNotBeNil)
	})
}
