package store

import (
	"context"
	"sync"
	"time"
)

type syncMapEntry[V any] struct {
	value    V
	expireAt time.Time
}

// SyncMapStore 并发安全的内存存储，支持过期时间
type SyncMapStore[K comparable, V any] struct {
	m sync.Map
}

func NewSyncMapStore[K comparable, V any]() *SyncMapStore[K, V] {
	return &SyncMapStore[K, V]{}
}

func (s *SyncMapStore[K, V]) Set(ctx context.Context, key K, value V, opts ...SetOption) error {
	options := applySetOptions(opts)

	entry := &syncMapEntry[V]{value: value}
	if options.Expiration > 0 {
		entry.expireAt = time.Now().Add(options.Expiration)
	}

	if options.IfNotExist {
		actual, loaded := s.m.LoadOrStore(key, entry)
		if !loaded {
			return nil
		}
		if !actual.(*syncMapEntry[V]).expired() {
			return ErrConditionFailed
		}
		if s.m.CompareAndSwap(key, actual, entry) {
			return nil
		}
		return ErrConditionFailed
	}

	s.m.Store(key, entry)
	return nil
}

func (s *SyncMapStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V
	value, ok := s.m.Load(key)
	if !ok {
		return zero, ErrKeyNotFound
	}
	entry := value.(*syncMapEntry[V])
	if entry.expired() {
		s.m.CompareAndDelete(key, value)
		return zero, ErrKeyNotFound
	}
	return entry.value, nil
}

func (s *SyncMapStore[K, V]) Del(ctx context.Context, key K) error {
	s.m.Delete(key)
	return nil
}

func (s *SyncMapStore[K, V]) Close() error {
	s.m.Clear()
	return nil
}

func (e *syncMapEntry[V]) expired() bool {
	return !e.expireAt.IsZero() && time.Now().After(e.expireAt)
}
