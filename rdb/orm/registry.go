package orm

import (
	"context"
	"sync"

	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
)

// Model 类型化的实体，通常是内嵌 *Entity 的结构体
//
//	type Farm struct{ *orm.Entity }
type Model interface {
	Base() *Entity
}

// Factory 将加载好的通用实体包装为具体类型，可以在其中声明关系和钩子
type Factory func(e *Entity) (Model, error)

// Method 注册到表上的无参方法，供 Call 和 Collection.CollectBy 使用
type Method func(ctx context.Context, m Model) (any, error)

// Registry 表名到具体类型的映射，启动时注册
// 查找时依次尝试原表名、单数形式和复数形式
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	methods   map[string]map[string]Method
	relations map[string][]relation
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		methods:   map[string]map[string]Method{},
		relations: map[string][]relation{},
	}
}

func (r *Registry) Register(table string, factory Factory) error {
	if table == "" || factory == nil {
		return errors.Wrap(ErrInvalidArgument, "table and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[table]; ok {
		return errors.Wrapf(ErrInvalidArgument, "table [%s] is already registered", table)
	}
	r.factories[table] = factory
	return nil
}

func (r *Registry) MustRegister(table string, factory Factory) {
	if err := r.Register(table, factory); err != nil {
		panic(err)
	}
}

func (r *Registry) RegisterMethod(table string, name string, method Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.methods[table] == nil {
		r.methods[table] = map[string]Method{}
	}
	r.methods[table][name] = method
}

func candidates(table string) []string {
	names := []string{table}
	if s := inflection.Singular(table); s != table {
		names = append(names, s)
	}
	if p := inflection.Plural(table); p != table {
		names = append(names, p)
	}
	return names
}

func (r *Registry) Factory(table string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range candidates(table) {
		if f, ok := r.factories[name]; ok {
			return f, true
		}
	}
	return nil, false
}

func (r *Registry) Method(table string, name string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range candidates(table) {
		if m, ok := r.methods[t][name]; ok {
			return m, true
		}
	}
	return nil, false
}
