// Package storage defines a Provider interface for persistent session item
// storage. Items are addressed by a unique key, replaced in full on every
// save, and may carry a time after which they are treated as absent.
package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	// MaxKeyLength is the maximum allowed length of an Item.Key field.
	MaxKeyLength = 255
)

// Item contains information that is persisted to the Provider.
type Item struct {
	Key       string    // unique key, maximum length 255 bytes
	Data      string    // serialized session payload
	ExpiresAt time.Time // time after which the item is expired, zero for never
}

// Expired reports whether the item has expired at time now.
func (item *Item) Expired(now time.Time) bool {
	return !item.ExpiresAt.IsZero() && !item.ExpiresAt.After(now)
}

// Provider is the interface used by the session store for persisting
// session items to a database.
type Provider interface {
	// Fetch returns an item given its unique key. If there is no matching
	// item, or the matching item has expired, Fetch returns nil and no error.
	Fetch(ctx context.Context, key string) (*Item, error)

	// Save creates the item, or completely replaces an existing item with
	// the same key. No version check is performed: the last writer wins.
	Save(ctx context.Context, item *Item) error
}

// Provisioner is implemented by providers that need their backing table
// to be created before first use. Provision must be idempotent and safe
// to call concurrently from multiple processes.
type Provisioner interface {
	Provision(ctx context.Context) error
}

// ProvisionError is returned when a backing table cannot be created, or
// does not become usable within the allowed time.
type ProvisionError struct {
	Table string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("cannot provision table %q: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisionError) Unwrap() error {
	return e.Err
}
