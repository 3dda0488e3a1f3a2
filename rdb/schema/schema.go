package schema

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrSchemaUnavailable = errors.New("schema unavailable")
	ErrNoPrimaryKey      = errors.New("no primary key")
)

// Column 列定义
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Default    any    `json:"default"`
	PrimaryKey bool   `json:"primaryKey"`
}

var textTypes = map[string]bool{
	"varchar":    true,
	"char":       true,
	"enum":       true,
	"set":        true,
	"tinytext":   true,
	"text":       true,
	"mediumtext": true,
	"longtext":   true,
}

// BaseType 小写的基础类型，例如 varchar(64) -> varchar, int unsigned -> int
func (c *Column) BaseType() string {
	t := strings.ToLower(strings.TrimSpace(c.Type))
	if idx := strings.IndexAny(t, "( "); idx >= 0 {
		t = t[:idx]
	}
	return t
}

// IsText 是否为需要去除首尾空白的文本类型
func (c *Column) IsText() bool {
	return textTypes[c.BaseType()]
}

var enumTokenRegex = regexp.MustCompile(`'((?:[^']|'')*)'`)

// EnumValues 解析 enum('a','b') / set('a','b') 中的取值
func (c *Column) EnumValues() []string {
	base := c.BaseType()
	if base != "enum" && base != "set" {
		return nil
	}
	start := strings.Index(c.Type, "(")
	end := strings.LastIndex(c.Type, ")")
	if start < 0 || end <= start {
		return nil
	}

	matches := enumTokenRegex.FindAllStringSubmatch(c.Type[start+1:end], -1)
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		values = append(values, strings.ReplaceAll(m[1], "''", "'"))
	}
	return values
}

// FlagValue 布尔标记列的取值，boolean 列使用 true/false，其他使用 1/0
func (c *Column) FlagValue(on bool) any {
	switch c.BaseType() {
	case "bool", "boolean":
		return on
	}
	if on {
		return 1
	}
	return 0
}

// TableSchema 表结构，加载后不可修改
type TableSchema struct {
	Table   string    `json:"table"`
	Columns []*Column `json:"columns"`
}

// Column 按名称查找列
func (s *TableSchema) Column(name string) (*Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (s *TableSchema) Has(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// Names 按定义顺序返回列名
func (s *TableSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey 唯一的主键列名，没有主键或联合主键时返回 ErrNoPrimaryKey
func (s *TableSchema) PrimaryKey() (string, error) {
	var pk string
	for _, c := range s.Columns {
		if !c.PrimaryKey {
			continue
		}
		if pk != "" {
			return "", errors.Wrapf(ErrNoPrimaryKey, "table %s has a multi-column primary key", s.Table)
		}
		pk = c.Name
	}
	if pk == "" {
		return "", errors.Wrapf(ErrNoPrimaryKey, "table %s", s.Table)
	}
	return pk, nil
}
