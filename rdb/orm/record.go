package orm

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// fieldName 结构体字段对应的列名，优先 db 标签，其次 json 标签，"-" 表示忽略
func fieldName(field reflect.StructField) (string, bool) {
	for _, key := range []string{"db", "json"} {
		tag := field.Tag.Get(key)
		if tag == "-" {
			return "", false
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name, true
		}
	}
	return field.Name, true
}

func structToMap(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrInvalidArgument, "expect a struct, got %T", v)
	}

	result := map[string]any{}
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := fieldName(field)
		if !ok {
			continue
		}
		result[name] = rv.Field(i).Interface()
	}
	return result, nil
}

func mapToStruct(data map[string]any, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Wrapf(ErrInvalidArgument, "dest must be a pointer to struct, got %T", dest)
	}

	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := fieldName(field)
		if !ok {
			continue
		}
		value, exists := data[name]
		if !exists || value == nil {
			continue
		}
		if err := setFieldValue(rv.Field(i), value); err != nil {
			return errors.WithMessagef(err, "set field [%s]", field.Name)
		}
	}
	return nil
}

// setFieldValue 数据库驱动返回的类型和结构体字段不一定一致，例如 sqlite 的 int64 和 mysql 的 []byte
func setFieldValue(fieldValue reflect.Value, value any) error {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	fieldType := fieldValue.Type()
	valueType := reflect.TypeOf(value)
	if valueType.AssignableTo(fieldType) {
		fieldValue.Set(reflect.ValueOf(value))
		return nil
	}

	var converted any
	var err error
	switch fieldType.Kind() {
	case reflect.String:
		converted, err = cast.ToStringE(value)
	case reflect.Bool:
		converted, err = cast.ToBoolE(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		converted, err = cast.ToInt64E(value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		converted, err = cast.ToUint64E(value)
	case reflect.Float32, reflect.Float64:
		converted, err = cast.ToFloat64E(value)
	case reflect.Struct:
		if fieldType == reflect.TypeOf(time.Time{}) {
			converted, err = cast.ToTimeE(value)
			break
		}
		fallthrough
	default:
		if valueType.ConvertibleTo(fieldType) {
			fieldValue.Set(reflect.ValueOf(value).Convert(fieldType))
			return nil
		}
		return errors.Wrapf(ErrInvalidArgument, "cannot convert %v to %v", valueType, fieldType)
	}
	if err != nil {
		return errors.Wrapf(ErrInvalidArgument, "cannot convert %v to %v: %v", valueType, fieldType, err)
	}
	fieldValue.Set(reflect.ValueOf(converted).Convert(fieldType))
	return nil
}

// Scan 将属性按 db 或 json 标签复制到结构体，nil 属性保持字段原值
func (e *Entity) Scan(dest any) error {
	return mapToStruct(e.attributes, dest)
}

// SetStruct 以结构体字段设置属性，零值字段和不是列的字段被忽略
func (e *Entity) SetStruct(ctx context.Context, v any, opts ...SetOption) error {
	fields, err := structToMap(v)
	if err != nil {
		return err
	}
	attributes := map[string]any{}
	for name, value := range fields {
		if value == nil || reflect.ValueOf(value).IsZero() || !e.schema.Has(name) {
			continue
		}
		attributes[name] = value
	}
	return e.SetAttributes(ctx, attributes, opts...)
}
