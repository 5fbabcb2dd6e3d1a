package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/annel0/related-world/internal/relworld"
	"github.com/dgraph-io/badger/v3"
)

const badgerWorldPrefix = "relworld:"

// BadgerWorldStore хранит описания миров в BadgerDB
type BadgerWorldStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerWorldStore открывает (или создаёт) базу в dataPath/worlds
func NewBadgerWorldStore(dataPath string) (*BadgerWorldStore, error) {
	dbPath := filepath.Join(dataPath, "worlds")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerWorldStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

func worldKey(name string) []byte {
	return []byte(badgerWorldPrefix + name)
}

// SaveWorld сохраняет описание мира
func (s *BadgerWorldStore) SaveWorld(ctx context.Context, d relworld.Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("storage: пустое имя мира")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return relworld.ErrStoreClosed
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("ошибка сериализации мира: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(worldKey(d.Name), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// DeleteWorld удаляет описание мира
func (s *BadgerWorldStore) DeleteWorld(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return relworld.ErrStoreClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(worldKey(name))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// LoadWorlds читает все описания миров
func (s *BadgerWorldStore) LoadWorlds(ctx context.Context) ([]relworld.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, relworld.ErrStoreClosed
	}

	var out []relworld.Descriptor
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerWorldPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var d relworld.Descriptor
				if err := json.Unmarshal(val, &d); err != nil {
					return fmt.Errorf("ключ %s: %w", item.Key(), err)
				}
				out = append(out, d)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close закрывает базу
func (s *BadgerWorldStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
