package orm

import (
	"context"
	"testing"

	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParent(t *testing.T) {
	Convey("测试父实体", t, func() {
		ctx := context.Background()
		s, spy := newTestSession(WithRegistry(farmRegistry()))

		horse, err := Load[*Animal](ctx, s, "animals", 1)
		So(err, ShouldBeNil)

		Convey("通过外键加载父实体并缓存", func() {
			m, ok, err := horse.Parent(ctx, "farm_id")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			farm, isFarm := m.(*Farm)
			So(isFarm, ShouldBeTrue)
			So(farm.Name(), ShouldEqual, "eSchool Farms")

			spy.reset()
			again, _, err := horse.Parent(ctx, "farm_id")
			So(err, ShouldBeNil)
			So(again.(*Farm), ShouldPointTo, farm)
			So(spy.queries, ShouldBeEmpty)

			Convey("修改后从缓存中淘汰", func() {
				So(farm.SetAttribute(ctx, "name", "Sunny Farms"), ShouldBeNil)
				fresh, _, err := horse.Parent(ctx, "farm_id")
				So(err, ShouldBeNil)
				So(fresh.(*Farm), ShouldNotPointTo, farm)
				So(fresh.(*Farm).Name(), ShouldEqual, "Sunny Farms")
			})
		})

		Convey("外键为空时没有父实体", func() {
			m, err := s.New(ctx, "animals")
			So(err, ShouldBeNil)
			parent, ok, err := m.Base().Parent(ctx, "farm_id")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(parent, ShouldBeNil)

			parent, ok, err = m.Base().Parent(ctx, "farm_id", ParentValue(2))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(parent.(*Farm).Name(), ShouldEqual, "Green Acres")
		})

		Convey("推断的表不存在时尝试复数形式", func() {
			barn, err := s.Load(ctx, "barn", 1)
			So(err, ShouldBeNil)
			user, ok, err := barn.Base().Parent(ctx, "user_id")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(user.Base().Table(), ShouldEqual, "users")
			name, _ := user.Base().GetAttribute("name")
			So(name, ShouldEqual, "alice")
		})

		Convey("无法推断父表", func() {
			_, _, err := horse.Parent(ctx, "name")
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			_, _, err = horse.Parent(ctx, "owner_id")
			So(errors.Is(err, ErrUnknownAttribute), ShouldBeTrue)
		})

		Convey("声明的父关系", func() {
			barn, err := s.Load(ctx, "barn", 1)
			So(err, ShouldBeNil)
			barn.Base().BelongsTo("owner", "user_id")
			barn.Base().BelongsTo("tractor", "")
			_, ok := barn.Base().relationOf("tractor")
			So(ok, ShouldBeFalse)

			So(barn.Base().parentTable(ctx, "user_id"), ShouldEqual, "owner")

			owner, err := barn.Base().Call(ctx, "owner")
			So(errors.Is(err, schema.ErrSchemaUnavailable), ShouldBeTrue)
			So(owner, ShouldBeNil)

			barn.Base().BelongsTo("users", "user_id")
			user, err := barn.Base().Call(ctx, "users")
			So(err, ShouldBeNil)
			So(user.(Model).Base().ID(), ShouldEqual, int64(7))
		})
	})
}

func TestChild(t *testing.T) {
	Convey("测试子实体", t, func() {
		ctx := context.Background()
		s, _ := newTestSession()

		farm1, err := s.Load(ctx, "farm", 1)
		So(err, ShouldBeNil)
		farm2, err := s.Load(ctx, "farm", 2)
		So(err, ShouldBeNil)

		Convey("多个匹配返回集合，一个匹配返回实体", func() {
			related, err := farm1.Base().Child(ctx, "animals")
			So(err, ShouldBeNil)
			So(related.One, ShouldBeNil)
			keys, err := related.Many.Keys(ctx)
			So(err, ShouldBeNil)
			So(keys, ShouldResemble, []any{int64(1), int64(3)})

			related, err = farm2.Base().Child(ctx, "animals")
			So(err, ShouldBeNil)
			So(related.Many, ShouldBeNil)
			name, _ := related.One.Base().GetAttribute("name")
			So(name, ShouldEqual, "Cow")

			related, err = farm2.Base().Child(ctx, "barn")
			So(err, ShouldBeNil)
			So(related, ShouldBeNil)
		})

		Convey("新实体没有子实体", func() {
			m, err := s.New(ctx, "farm")
			So(err, ShouldBeNil)
			related, err := m.Base().Child(ctx, "animals")
			So(err, ShouldBeNil)
			So(related, ShouldBeNil)
		})

		Convey("附加约束", func() {
			related, err := farm1.Base().Child(ctx, "animals", WithConstraints(map[string]any{"name": "Pig"}))
			So(err, ShouldBeNil)
			So(related.One.Base().ID(), ShouldEqual, int64(3))
		})

		Convey("强制结果形式", func() {
			related, err := farm2.Base().Child(ctx, "animals", ForceMany())
			So(err, ShouldBeNil)
			n, err := related.Many.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			related, err = farm1.Base().Child(ctx, "animals", ForceOne())
			So(err, ShouldBeNil)
			So(related.One.Base().ID(), ShouldEqual, int64(1))
			cached, ok := s.Cache().Get(ctx, "animals", 1)
			So(ok, ShouldBeTrue)
			So(cached, ShouldEqual, related.One)
		})

		Convey("指定外键", func() {
			user, err := s.Load(ctx, "users", 7)
			So(err, ShouldBeNil)
			related, err := user.Base().Child(ctx, "barn", ForeignKey("user_id"))
			So(err, ShouldBeNil)
			color, _ := related.One.Base().GetAttribute("color")
			So(color, ShouldEqual, "red")
		})

		Convey("默认排除软删除的子实体", func() {
			_, err := s.Executor().Exec(ctx, "UPDATE animals SET deleted = 1 WHERE animal_id = 3")
			So(err, ShouldBeNil)

			related, err := farm1.Base().Child(ctx, "animals")
			So(err, ShouldBeNil)
			So(related.One.Base().ID(), ShouldEqual, int64(1))

			related, err = farm1.Base().Child(ctx, "animals", IncludeDeletedChildren())
			So(err, ShouldBeNil)
			n, _ := related.Many.Count(ctx)
			So(n, ShouldEqual, 2)
		})
	})
}

func TestCall(t *testing.T) {
	Convey("测试按名字分派", t, func() {
		ctx := context.Background()
		r := farmRegistry()
		r.RegisterMethod("farm", "size", func(ctx context.Context, m Model) (any, error) {
			return m.Base().GetAttribute("acres")
		})
		s, _ := newTestSession(WithRegistry(r))

		farm1, err := Load[*Farm](ctx, s, "farm", 1)
		So(err, ShouldBeNil)
		farm2, err := Load[*Farm](ctx, s, "farm", 2)
		So(err, ShouldBeNil)

		Convey("注册的方法", func() {
			v, err := farm1.Call(ctx, "size")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 12.5)
		})

		Convey("find_by_", func() {
			animal, err := New[*Animal](ctx, s, "animals")
			So(err, ShouldBeNil)
			found, err := animal.Call(ctx, "find_by_name", "Cow")
			So(err, ShouldBeNil)
			So(found, ShouldEqual, true)
			So(animal.ID(), ShouldEqual, int64(2))

			_, err = animal.Call(ctx, "find_by_name")
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("声明的关系", func() {
			v, err := farm1.Call(ctx, "animals")
			So(err, ShouldBeNil)
			related := v.(*Related)
			n, _ := related.Many.Count(ctx)
			So(n, ShouldEqual, 2)

			v, err = farm2.Call(ctx, "animals")
			So(err, ShouldBeNil)
			So(v.(*Related).Many, ShouldNotBeNil)

			v, err = farm1.Call(ctx, "animals", map[string]any{"name": "Horse"})
			So(err, ShouldBeNil)
			n, _ = v.(*Related).Many.Count(ctx)
			So(n, ShouldEqual, 1)

			v, err = farm1.Call(ctx, "barn")
			So(err, ShouldBeNil)
			So(v.(*Related).One.Base().ID(), ShouldEqual, int64(1))

			v, err = farm2.Call(ctx, "barn")
			So(err, ShouldBeNil)
			So(v, ShouldBeNil)
		})

		Convey("外键约定的父实体", func() {
			horse, err := s.Load(ctx, "animals", 1)
			So(err, ShouldBeNil)
			v, err := horse.Base().Call(ctx, "farm")
			So(err, ShouldBeNil)
			So(v.(*Farm).Name(), ShouldEqual, "eSchool Farms")

			barn, err := s.Load(ctx, "barn", 1)
			So(err, ShouldBeNil)
			v, err = barn.Base().Call(ctx, "user")
			So(err, ShouldBeNil)
			So(v.(Model).Base().Table(), ShouldEqual, "users")
		})

		Convey("子表约定", func() {
			g, _ := newTestSession()
			farm, err := g.Load(ctx, "farm", 1)
			So(err, ShouldBeNil)
			v, err := farm.Base().Call(ctx, "barn")
			So(err, ShouldBeNil)
			So(v.(*Related).One.Base().ID(), ShouldEqual, int64(1))

			v, err = farm.Base().Call(ctx, "barn", map[string]any{"color": "blue"})
			So(err, ShouldBeNil)
			So(v, ShouldBeNil)

			user, err := g.Load(ctx, "users", 7)
			So(err, ShouldBeNil)
			_, err = user.Base().Call(ctx, "barn")
			So(errors.Is(err, ErrUnknownOperation), ShouldBeTrue)
		})

		Convey("未知操作", func() {
			_, err := farm1.Call(ctx, "tractors")
			So(errors.Is(err, ErrUnknownOperation), ShouldBeTrue)
			_, err = farm1.Call(ctx, "fruit")
			So(errors.Is(err, ErrUnknownOperation), ShouldBeTrue)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("测试注册表", t, func() {
		ctx := context.Background()
		r := farmRegistry()

		Convey("重复注册", func() {
			err := r.Register("farm", func(e *Entity) (Model, error) { return e, nil })
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			So(func() { r.MustRegister("farm", func(e *Entity) (Model, error) { return e, nil }) }, ShouldPanic)
			So(errors.Is(r.Register("", nil), ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("按单数和复数形式查找", func() {
			_, ok := r.Factory("farms")
			So(ok, ShouldBeTrue)
			_, ok = r.Factory("animals")
			So(ok, ShouldBeTrue)
			_, ok = r.Factory("fruit")
			So(ok, ShouldBeFalse)
		})

		Convey("工厂必须包装传入的实体", func() {
			r.MustRegister("fruit", func(e *Entity) (Model, error) {
				return &Entity{}, nil
			})
			s, _ := newTestSession(WithRegistry(r))
			_, err := s.Load(ctx, "fruit", 1)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)

			_, err = Load[*Farm](ctx, s, "animals", 1)
			So(err, ShouldNotBeNil)
		})

		Convey("注册表上声明的关系", func() {
			r.HasMany("users", "barn", "user_id")
			r.BelongsTo("barn", "users", "user_id")
			s, _ := newTestSession(WithRegistry(r))

			user, err := s.Load(ctx, "users", 7)
			So(err, ShouldBeNil)
			v, err := user.Base().Call(ctx, "barn")
			So(err, ShouldBeNil)
			n, _ := v.(*Related).Many.Count(ctx)
			So(n, ShouldEqual, 1)

			barn, err := s.Load(ctx, "barn", 1)
			So(err, ShouldBeNil)
			v, err = barn.Base().Call(ctx, "users")
			So(err, ShouldBeNil)
			So(v.(Model).Base().ID(), ShouldEqual, int64(7))
		})
	})
}
