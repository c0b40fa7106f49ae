package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luma/cmdmessenger/protocol"
)

// RecordMessage stores msg as the latest message of its command.
func RecordMessage(ctx context.Context, store Store, msg *protocol.ReceivedMessage) error {
	return store.Set(ctx, []byte(msg.Command), msg)
}

// LatestMessage returns the latest message stored for command.
func LatestMessage(ctx context.Context, store Store, command string) (*protocol.ReceivedMessage, error) {
	raw, err := store.Get(ctx, []byte(command))
	if err != nil {
		return nil, err
	}

	var msg protocol.ReceivedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("Failed to decode stored message for '%s': %w", command, err)
	}

	return &msg, nil
}
