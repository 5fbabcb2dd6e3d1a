// Package storage сохраняет описания вторичных миров между перезапусками.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/related-world/internal/relworld"
)

// MemoryWorldStore хранит описания миров в памяти.
// Используется по умолчанию и в тестах. Данные теряются при перезапуске!
type MemoryWorldStore struct {
	mu     sync.RWMutex
	data   map[string]relworld.Descriptor
	closed bool
}

// NewMemoryWorldStore создаёт пустое хранилище
func NewMemoryWorldStore() *MemoryWorldStore {
	return &MemoryWorldStore{data: make(map[string]relworld.Descriptor)}
}

// SaveWorld сохраняет или перезаписывает описание мира
func (s *MemoryWorldStore) SaveWorld(ctx context.Context, d relworld.Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("storage: пустое имя мира")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return relworld.ErrStoreClosed
	}
	s.data[d.Name] = d
	return nil
}

// DeleteWorld удаляет описание; отсутствие записи не ошибка
func (s *MemoryWorldStore) DeleteWorld(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return relworld.ErrStoreClosed
	}
	delete(s.data, name)
	return nil
}

// LoadWorlds возвращает все описания в порядке имён
func (s *MemoryWorldStore) LoadWorlds(ctx context.Context) ([]relworld.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, relworld.ErrStoreClosed
	}

	out := make([]relworld.Descriptor, 0, len(s.data))
	for _, d := range s.data {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close закрывает хранилище
func (s *MemoryWorldStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
