package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Backend. Data lives as long as the value does.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

// Scope returns the store for the named scope.
func (m *Memory) Scope(name string) Store {
	return &memoryScope{m: m, scope: name}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

type memoryScope struct {
	m     *Memory
	scope string
}

func (s *memoryScope) Get(_ context.Context, key string) (string, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	v, ok := s.m.data[s.scope][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *memoryScope) Set(_ context.Context, key, value string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.data[s.scope] == nil {
		s.m.data[s.scope] = make(map[string]string)
	}
	s.m.data[s.scope][key] = value
	return nil
}

func (s *memoryScope) Delete(_ context.Context, key string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.data[s.scope], key)
	return nil
}
