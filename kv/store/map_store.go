package store

import "context"

// MapStore 非并发安全的内存存储，适合单个请求内使用
// 不支持过期时间
type MapStore[K comparable, V any] struct {
	m map[K]V
}

func NewMapStore[K comparable, V any]() *MapStore[K, V] {
	return &MapStore[K, V]{
		m: make(map[K]V),
	}
}

func (s *MapStore[K, V]) Set(ctx context.Context, key K, value V, opts ...SetOption) error {
	options := applySetOptions(opts)
	if options.IfNotExist {
		if _, exists := s.m[key]; exists {
			return ErrConditionFailed
		}
	}

	s.m[key] = value
	return nil
}

func (s *MapStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	value, exists := s.m[key]
	if !exists {
		var zero V
		return zero, ErrKeyNotFound
	}
	return value, nil
}

func (s *MapStore[K, V]) Del(ctx context.Context, key K) error {
	delete(s.m, key)
	return nil
}

// Len 当前键数量
func (s *MapStore[K, V]) Len() int {
	return len(s.m)
}

func (s *MapStore[K, V]) Close() error {
	s.m = make(map[K]V)
	return nil
}
