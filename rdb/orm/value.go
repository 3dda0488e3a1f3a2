package orm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// valueString 值的字符串形式，用于比较和缓存键
// 数据库返回的 int64 和调用方传入的 int 或 "1" 视为相同
func valueString(v any) string {
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return valueString(a) == valueString(b)
}

// isEmpty nil, "", "0", 0 和 false 视为空
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case bool:
		return !x
	case string:
		return x == "" || x == "0"
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f == 0
	}
	return false
}

// isNumeric 整数、浮点数或可以解析为数字的字符串
func isNumeric(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err == nil
	}
	return false
}
