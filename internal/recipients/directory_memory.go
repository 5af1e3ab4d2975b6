package recipients

import (
	"context"
	"sync"
)

type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[Type]map[string]Recipient
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{entries: make(map[Type]map[string]Recipient)}
}

// Add registers or replaces a recipient.
func (d *MemoryDirectory) Add(r Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byID, ok := d.entries[r.Type]
	if !ok {
		byID = make(map[string]Recipient)
		d.entries[r.Type] = byID
	}
	byID[r.ID] = r
}

func (d *MemoryDirectory) Resolve(ctx context.Context, t Type, id string) (Recipient, error) {
	if err := ctx.Err(); err != nil {
		return Recipient{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.entries[t][id]
	if !ok {
		return Recipient{}, ErrNotFound
	}
	return r, nil
}
