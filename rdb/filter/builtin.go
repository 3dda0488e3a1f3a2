package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/spf13/cast"
	"golang.org/x/net/html"
)

var (
	nonIntRegex     = regexp.MustCompile(`[^\d.\-]`)
	leadingIntRegex = regexp.MustCompile(`^[-+]?\d+`)
	nonFloatRegex   = regexp.MustCompile(`[^\d.+\-]`)
	nonDateRegex    = regexp.MustCompile(`[^\d\s\-:]`)
	nonEmailRegex   = regexp.MustCompile("[^a-zA-Z0-9!#$%&'*+\\-=?^_`{|}~@.\\[\\]]")
	nonURLRegex     = regexp.MustCompile("[^a-zA-Z0-9$\\-_.+!*'(),{}|\\\\^~\\[\\]`<>#%\";/?:@&=]")
	angleRegex      = regexp.MustCompile(`[<>]`)
)

// stripTags 去除 html 标签和注释，保留文本原文
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var buf strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.TextToken:
			buf.Write(z.Raw())
		}
	}
}

func stripLow(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, s)
}

func filterChar(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	s = stripLow(stripTags(s))
	s = strings.ReplaceAll(s, "&", "&#38;")
	return angleRegex.ReplaceAllString(s, ""), nil
}

func filterName(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return stripLow(stripTags(s)), nil
}

func filterJournal(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return stripTags(s), nil
}

// filterInt 去除非数字字符后取整数前缀，无法解析时为 0
func filterInt(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		if i, err := cast.ToInt64E(value); err == nil {
			return i, nil
		}
		return value, nil
	}

	s = leadingIntRegex.FindString(nonIntRegex.ReplaceAllString(s, ""))
	if s == "" {
		return int64(0), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return int64(0), nil
	}
	return i, nil
}

func filterFloat(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return nonFloatRegex.ReplaceAllString(s, ""), nil
}

func filterDate(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return nonDateRegex.ReplaceAllString(s, ""), nil
}

func filterEmail(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return nonEmailRegex.ReplaceAllString(s, ""), nil
}

func filterURL(value any, _ *schema.Column) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return nonURLRegex.ReplaceAllString(s, ""), nil
}

// filterEnum 不在枚举取值中的值替换为列的默认值
// 列类型中没有枚举取值时（例如 sqlite）不做处理
func filterEnum(value any, column *schema.Column) (any, error) {
	if column == nil {
		return value, nil
	}
	values := column.EnumValues()
	if len(values) == 0 {
		return value, nil
	}
	s := cast.ToString(value)
	for _, v := range values {
		if v == s {
			return value, nil
		}
	}
	return column.Default, nil
}
