package sessionstore

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

var (
	nowFunc  = time.Now
	randRead = rand.Read
)

type sessionID [16]byte

func newSessionID() (sessionID, error) {
	var sid sessionID
	if _, err := randRead(sid[:]); err != nil {
		return sid, err
	}
	return sid, nil
}

func (sid sessionID) String() string {
	return hex.EncodeToString(sid[:])
}

// NewSessionID returns a new session identity made from 128 random bits,
// encoded as 32 lower case hexadecimal characters. It is the default
// value of Options.NewID.
func NewSessionID() (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}
