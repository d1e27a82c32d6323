// Package memory has a memory-backed storage provider for testing purposes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jjeffery/ddbsessions/storage"
)

// Provider implements the storage.Provider using memory. It is intended for testing.
type Provider struct {
	// TimeNow is used to obtain the current time.
	TimeNow func() time.Time

	mutex sync.RWMutex
	m     map[string]*storage.Item
}

var _ storage.Provider = (*Provider)(nil)

// New creates a new memory-backed Provider.
func New() *Provider {
	return &Provider{
		TimeNow: time.Now,
	}
}

// WithTimeNow sets the TimeNow function. It returns db.
func (db *Provider) WithTimeNow(timeNow func() time.Time) *Provider {
	if timeNow == nil {
		timeNow = time.Now
	}
	db.TimeNow = timeNow
	return db
}

// Fetch implements the storage.Provider interface. Expired items are
// removed as they are encountered.
func (db *Provider) Fetch(ctx context.Context, key string) (*storage.Item, error) {
	db.mutex.RLock()
	item := cloneItem(db.m[key])
	db.mutex.RUnlock()
	if item != nil && item.Expired(db.TimeNow()) {
		db.mutex.Lock()
		delete(db.m, key)
		db.mutex.Unlock()
		item = nil
	}
	return item, nil
}

// Save implements the storage.Provider interface.
func (db *Provider) Save(ctx context.Context, item *storage.Item) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.m == nil {
		db.m = make(map[string]*storage.Item)
	}
	db.m[item.Key] = cloneItem(item)
	return nil
}

// Len returns the number of items held, including expired items that
// have not yet been fetched.
func (db *Provider) Len() int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.m)
}

func cloneItem(item *storage.Item) *storage.Item {
	if item == nil {
		return nil
	}
	cpy := *item
	return &cpy
}
