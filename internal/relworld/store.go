package relworld

import (
	"context"
	"errors"
)

// ErrStoreClosed хранилище закрыто
var ErrStoreClosed = errors.New("relworld: store closed")

// Store сохраняет описания вторичных миров между перезапусками
type Store interface {
	SaveWorld(ctx context.Context, d Descriptor) error
	DeleteWorld(ctx context.Context, name string) error
	LoadWorlds(ctx context.Context) ([]Descriptor, error)
	Close() error
}
