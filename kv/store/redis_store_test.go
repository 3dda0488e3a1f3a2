package store

import (
	"context"
	"errors"
	"testing"

	. "github.com/bytedance/mockey"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewRedisStoreWithOptions(t *testing.T) {
	PatchConvey("NewRedisStoreWithOptions", t, func() {
		Convey("Ping 失败时返回错误", func() {
			cmd := redis.NewStatusCmd(context.Background())
			cmd.SetErr(errors.New("connection refused"))
			Mock((*redis.Client).Ping).Return(cmd).Build()

			store, err := NewRedisStoreWithOptions[string, string](&RedisStoreOptions{
				Endpoint: "localhost:6379",
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Ping failed")
			So(store, ShouldBeNil)
		})

		Convey("未配置地址", func() {
			_, err := NewRedisStoreWithOptions[string, string](&RedisStoreOptions{})
			So(err, ShouldNotBeNil)
		})

		Convey("不支持的序列化器", func() {
			_, err := NewRedisStoreWithOptions[string, string](&RedisStoreOptions{
				Endpoint:      "localhost:6379",
				KeySerializer: "bson",
			})
			So(err, ShouldNotBeNil)
		})
	})
}
