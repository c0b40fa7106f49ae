package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("Key not found")

// Update is sent to listeners whenever a key is set. Value is the raw JSON
// of the key's new value.
type Update struct {
	Key   []byte
	Value []byte
}

// Store holds a JSON document of the latest value of each key.
type Store interface {
	Set(ctx context.Context, key []byte, value interface{}) error
	Get(ctx context.Context, key []byte) ([]byte, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update

	Close() error
}
