package registry

import (
	"maps"
	"sync"
)

// Store is a concurrent key-value table shared by the class and object registries.
type Store[K comparable, V any] struct {
	data map[K]V
	mu   sync.RWMutex
}

func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		data: make(map[K]V),
	}
}

func (s *Store[K, V]) Add(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// LoadOrStore returns the existing value for key, or stores and returns the
// value produced by create.
func (s *Store[K, V]) LoadOrStore(key K, create func() V) (V, bool) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, true
	}
	v = create()
	s.data[key] = v
	return v, false
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.data[key]
	return value, exists
}

func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// GetAll returns a copy to prevent external modification.
func (s *Store[K, V]) GetAll() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

func (s *Store[K, V]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// DeleteFunc removes every entry for which del returns true and reports how many were removed.
func (s *Store[K, V]) DeleteFunc(del func(K, V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, v := range s.data {
		if del(k, v) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]V)
}
