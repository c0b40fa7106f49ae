package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const UpdateBufferSize = 255

type InmemoryStore struct {
	mu          sync.Mutex
	values      []byte
	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for _, updateChan := range i.updateChans {
		close(updateChan)
	}
	i.updateChans = nil

	return nil
}

// Set stores value, marshalled to JSON, under key. Listeners that are not
// keeping up miss the update rather than block the writer.
func (i *InmemoryStore) Set(ctx context.Context, key []byte, value interface{}) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	path := escapePath(key)

	values, err := sjson.SetBytes(i.values, path, value)
	if err != nil {
		return fmt.Errorf("Failed to set %s: %w", key, err)
	}
	i.values = values

	if !i.isRunning() {
		return nil
	}

	raw := []byte(gjson.GetBytes(i.values, path).Raw)

	for _, updateChan := range i.updateChans {
		select {
		case updateChan <- &Update{Key: key, Value: raw}:
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	result := gjson.GetBytes(i.values, escapePath(key))
	if !result.Exists() {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

func (i *InmemoryStore) Restore(values []byte) error {
	if len(values) == 0 {
		values = []byte("{}")
	}

	if !gjson.ValidBytes(values) {
		return fmt.Errorf("Cannot restore from invalid JSON (%d bytes)", len(values))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// escapePath turns key into a gjson/sjson path matching exactly one member.
func escapePath(key []byte) string {
	return pathEscaper.Replace(string(key))
}

var _ Store = (*InmemoryStore)(nil)
