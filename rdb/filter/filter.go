package filter

import (
	"strings"
	"sync"

	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/pkg/errors"
)

var ErrUnknownContentType = errors.New("unknown content type")

// 内容类型
const (
	Char    = "char"
	Int     = "int"
	Float   = "float"
	Email   = "email"
	URL     = "url"
	Enum    = "enum"
	Date    = "date"
	Name    = "name"
	Raw     = "raw"
	Journal = "journal"
)

// Filter 对写入属性的值进行清洗，value 不会为 nil
type Filter interface {
	Filter(value any, column *schema.Column) (any, error)
}

type FilterFunc func(value any, column *schema.Column) (any, error)

func (f FilterFunc) Filter(value any, column *schema.Column) (any, error) {
	return f(value, column)
}

// Registry 内容类型到清洗规则的映射，可以注册自定义类型或覆盖内置类型
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

func NewRegistry() *Registry {
	r := &Registry{filters: map[string]Filter{}}
	r.Register(Char, FilterFunc(filterChar))
	r.Register(Int, FilterFunc(filterInt))
	r.Register(Float, FilterFunc(filterFloat))
	r.Register(Email, FilterFunc(filterEmail))
	r.Register(URL, FilterFunc(filterURL))
	r.Register(Enum, FilterFunc(filterEnum))
	r.Register(Date, FilterFunc(filterDate))
	r.Register(Name, FilterFunc(filterName))
	r.Register(Journal, FilterFunc(filterJournal))
	return r
}

func (r *Registry) Register(contentType string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[contentType] = f
}

// Valid 内容类型是否可用，raw 总是可用
func (r *Registry) Valid(contentType string) bool {
	if contentType == Raw {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.filters[contentType]
	return ok
}

// Filter 按内容类型清洗 value
// nil 在可为空的列上原样返回，否则返回列的默认值
func (r *Registry) Filter(contentType string, value any, column *schema.Column) (any, error) {
	if contentType == Raw {
		return value, nil
	}

	r.mu.RLock()
	f, ok := r.filters[contentType]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownContentType, "content type [%s]", contentType)
	}

	if value == nil {
		if column == nil || column.Nullable {
			return nil, nil
		}
		return column.Default, nil
	}

	return f.Filter(value, column)
}

// ContentTypeForSQLType 根据列的 SQL 类型推断内容类型
func ContentTypeForSQLType(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if idx := strings.Index(t, " "); idx >= 0 {
		t = t[:idx]
	}
	if idx := strings.Index(t, "("); idx >= 0 {
		t = t[:idx]
	}

	switch {
	case strings.HasSuffix(t, "int") || t == "integer":
		return Int
	case strings.HasSuffix(t, "char") || strings.HasPrefix(t, "char") || strings.HasSuffix(t, "text"):
		return Char
	case t == "float" || t == "decimal" || t == "double" || t == "real" || t == "numeric":
		return Float
	case t == "time" || strings.HasPrefix(t, "date") || strings.HasPrefix(t, "timestamp"):
		return Date
	case t == "enum":
		return Enum
	case strings.Contains(t, "blob") || t == "bytea":
		return Raw
	}
	return Name
}
