package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Constraint 规范化后的约束：字段、可选运算符和值
// Value 为 nil、标量或 []any
type Constraint struct {
	Field    string `json:"field"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value"`
}

// Constraints 有序的约束列表，条件之间为 AND
type Constraints []Constraint

// Normalize 将调用方传入的约束规范化
//
// 支持三种形式：
//   - 值列表（[]int, []string, []any ...）：主键成员关系，空列表匹配零行
//   - map[string]V：字段到标量、列表或 nil 的映射
//   - 键中带运算符的 map，例如 {"age >=": 18, "status !=": []string{"a", "b"}}
//
// map 按键排序，保证生成的 SQL 稳定
func Normalize(input any, primaryKey string) (Constraints, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case Constraints:
		return v.clone()
	case []Constraint:
		return Constraints(v).clone()
	case Constraint:
		return Constraints{v}.clone()
	case string, []byte:
		return nil, errors.Wrapf(ErrInvalidArgument, "unsupported constraints type %T", input)
	}

	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if primaryKey == "" {
			return nil, errors.Wrap(ErrInvalidArgument, "primary key is required for a value list")
		}
		return Constraints{{Field: primaryKey, Value: listValue(rv)}}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.Wrapf(ErrInvalidArgument, "constraint keys must be strings, got %v", rv.Type().Key())
		}
		if rv.Len() == 0 {
			if primaryKey == "" {
				return nil, errors.Wrap(ErrInvalidArgument, "primary key is required for empty constraints")
			}
			return Constraints{{Field: primaryKey, Value: []any{}}}, nil
		}

		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)

		constraints := make(Constraints, 0, len(keys))
		for _, key := range keys {
			field, op, err := ParseKey(key)
			if err != nil {
				return nil, err
			}
			value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key())).Interface()
			constraints = append(constraints, Constraint{Field: field, Operator: op, Value: normalizeValue(value)})
		}
		return constraints, nil
	}

	return nil, errors.Wrapf(ErrInvalidArgument, "unsupported constraints type %T", input)
}

// ParseKey 拆分 "field [operator]" 形式的键
func ParseKey(key string) (string, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", errors.Wrap(ErrInvalidConstraint, "empty constraint field")
	}
	idx := strings.IndexAny(key, " \t")
	if idx < 0 {
		return key, "", nil
	}
	op, err := NormalizeOperator(key[idx+1:])
	if err != nil {
		return "", "", err
	}
	return key[:idx], op, nil
}

func (cs Constraints) clone() (Constraints, error) {
	out := make(Constraints, 0, len(cs))
	for _, c := range cs {
		if strings.TrimSpace(c.Field) == "" {
			return nil, errors.Wrap(ErrInvalidConstraint, "empty constraint field")
		}
		if c.Operator != "" {
			op, err := NormalizeOperator(c.Operator)
			if err != nil {
				return nil, err
			}
			c.Operator = op
		}
		c.Value = normalizeValue(c.Value)
		out = append(out, c)
	}
	return out, nil
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case []any:
		return v
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return listValue(rv)
	}
	return value
}

func listValue(rv reflect.Value) []any {
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values
}

// Fields 约束涉及的字段
func (cs Constraints) Fields() []string {
	fields := make([]string, 0, len(cs))
	for _, c := range cs {
		fields = append(fields, c.Field)
	}
	return fields
}

// Query 将全部约束翻译为 AND 组合的谓词
func (cs Constraints) Query() (*BoolQuery, error) {
	q := &BoolQuery{}
	for _, c := range cs {
		sub, err := c.Query()
		if err != nil {
			return nil, err
		}
		q.Must = append(q.Must, sub)
	}
	return q, nil
}

// IsRaw 值是否为单引号包围的原始 SQL 片段
func (c Constraint) IsRaw() bool {
	if c.Operator == "" {
		return false
	}
	s, ok := c.Value.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

// Query 将单个约束翻译为谓词
//
// 无运算符：nil 为 IS NULL，列表为 IN，标量为等值
// 有运算符：列表只允许 != 并生成 NOT IN；nil 只允许等值或不等；
// 单引号包围的标量作为原始片段原样拼接
func (c Constraint) Query() (Query, error) {
	list, isList := c.Value.([]any)

	if c.Operator == "" {
		switch {
		case c.Value == nil:
			return &NullQuery{Field: c.Field}, nil
		case isList:
			return &InQuery{Field: c.Field, Values: list}, nil
		default:
			return &TermQuery{Field: c.Field, Value: c.Value}, nil
		}
	}

	op, err := NormalizeOperator(c.Operator)
	if err != nil {
		return nil, err
	}

	switch {
	case isList:
		if op != "!=" {
			return nil, errors.Wrapf(ErrInvalidConstraint, "operator %q cannot be used with a list value on %s", op, c.Field)
		}
		return &InQuery{Field: c.Field, Values: list, Not: true}, nil
	case c.Value == nil:
		switch op {
		case "=":
			return &NullQuery{Field: c.Field}, nil
		case "!=", "<>":
			return &NullQuery{Field: c.Field, Not: true}, nil
		}
		return nil, errors.Wrapf(ErrInvalidConstraint, "operator %q cannot be used with null on %s", op, c.Field)
	case c.IsRaw():
		return &RawQuery{Field: c.Field, Operator: op, Fragment: strings.TrimSpace(c.Value.(string))}, nil
	}

	value := c.Value
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return &CompareQuery{Field: c.Field, Operator: op, Value: value}, nil
}

func (c Constraint) String() string {
	if c.Operator == "" {
		return fmt.Sprintf("%s: %v", c.Field, c.Value)
	}
	return fmt.Sprintf("%s %s: %v", c.Field, c.Operator, c.Value)
}
