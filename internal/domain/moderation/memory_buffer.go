package moderation

import (
	"context"
	"sync"
)

// MemoryBuffer is an in-process Buffer for tests and single-instance
// development. The mutex held across read-length-then-clear makes the
// drain atomic with respect to concurrent Append/Drain calls.
type MemoryBuffer struct {
	mu    sync.Mutex
	rooms map[string][]string
}

func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{rooms: make(map[string][]string)}
}

func (b *MemoryBuffer) Append(ctx context.Context, roomID, messageID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rooms[roomID] = append(b.rooms[roomID], messageID)
	return len(b.rooms[roomID]), nil
}

func (b *MemoryBuffer) Drain(ctx context.Context, roomID string) ([]string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := b.rooms[roomID]
	if len(ids) == 0 {
		return nil, false, nil
	}
	delete(b.rooms, roomID)
	return ids, true, nil
}
