// Package memorystore provides a session store that keeps sessions in memory.
// It is intended for testing, and for applications that run as a single process.
package memorystore

import (
	"github.com/jjeffery/ddbsessions/sessionstore"
	"github.com/jjeffery/ddbsessions/storage/memory"
)

// New creates a new session store backed by memory.
// Options describe the session cookie.
func New(options sessionstore.Options) *sessionstore.Store {
	return sessionstore.New(memory.New(), options)
}
