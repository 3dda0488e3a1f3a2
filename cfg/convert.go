package cfg

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ConvertTo 将解码得到的通用数据树转换为目标结构体
// 字段名优先使用 cfg tag，匹配时忽略大小写
func ConvertTo(src any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convertValue(src, rv.Elem())
}

var durationType = reflect.TypeOf(time.Duration(0))

func convertValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	if dst.Type() == durationType {
		d, err := cast.ToDurationE(src)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to duration", src)
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		return convertToStruct(src, dst)
	case reflect.Map:
		return convertToMap(src, dst)
	case reflect.Slice:
		return convertToSlice(src, dst)
	case reflect.Interface:
		dst.Set(reflect.ValueOf(src))
		return nil
	case reflect.String:
		s, err := cast.ToStringE(src)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to string", src)
		}
		dst.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(src)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to bool", src)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := cast.ToInt64E(src)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to int", src)
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := cast.ToUint64E(src)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to uint", src)
		}
		dst.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(src)
		if err != nil {
			return errors.Wrapf(err, "cannot convert %v to float", src)
		}
		dst.SetFloat(f)
	default:
		return errors.Errorf("unsupported destination type %v", dst.Type())
	}
	return nil
}

func convertToStruct(src any, dst reflect.Value) error {
	m, err := cast.ToStringMapE(src)
	if err != nil {
		return errors.Errorf("cannot convert %T to %v", src, dst.Type())
	}

	dstType := dst.Type()
	for i := 0; i < dstType.NumField(); i++ {
		field := dstType.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := strings.Split(field.Tag.Get("cfg"), ",")[0]; tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}

		value, ok := lookupKey(m, name)
		if !ok {
			continue
		}
		if err := convertValue(value, dst.Field(i)); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

func lookupKey(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func convertToMap(src any, dst reflect.Value) error {
	m, err := cast.ToStringMapE(src)
	if err != nil {
		return errors.Errorf("cannot convert %T to %v", src, dst.Type())
	}
	if dst.Type().Key().Kind() != reflect.String {
		return errors.Errorf("unsupported map key type %v", dst.Type().Key())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), len(m)))
	}
	for k, v := range m {
		item := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(v, item); err != nil {
			return errors.WithMessagef(err, "key %s", k)
		}
		dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), item)
	}
	return nil
}

func convertToSlice(src any, dst reflect.Value) error {
	sv := reflect.ValueOf(src)
	if sv.Kind() == reflect.String {
		// 逗号分隔的字符串
		parts := strings.Split(sv.String(), ",")
		items := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		sv = reflect.ValueOf(items)
	}
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %T to %v", src, dst.Type())
	}

	out := reflect.MakeSlice(dst.Type(), sv.Len(), sv.Len())
	for i := 0; i < sv.Len(); i++ {
		if err := convertValue(sv.Index(i).Interface(), out.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(out)
	return nil
}
