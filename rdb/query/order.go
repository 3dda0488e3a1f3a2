package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Order 排序项
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

func Asc(field string) Order {
	return Order{Field: field}
}

func Desc(field string) Order {
	return Order{Field: field, Desc: true}
}

// ParseOrder 解析 "name", "name ASC", "name DESC" 形式的排序
func ParseOrder(order string) (Order, error) {
	parts := strings.Fields(order)
	switch len(parts) {
	case 1:
		return Order{Field: parts[0]}, nil
	case 2:
		switch strings.ToUpper(parts[1]) {
		case "ASC":
			return Order{Field: parts[0]}, nil
		case "DESC":
			return Order{Field: parts[0], Desc: true}, nil
		}
	}
	return Order{}, errors.Wrapf(ErrInvalidArgument, "invalid sort order %q", order)
}

func (o Order) direction() string {
	if o.Desc {
		return "DESC"
	}
	return "ASC"
}
