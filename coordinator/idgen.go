package coordinator

import (
	"crypto/rand"
	"fmt"
	"time"
)

// IDGenerator produces opaque run identifiers for history records.
type IDGenerator interface {
	RunID() string
}

// RandomIDGenerator produces random, prefixed identifiers.
type RandomIDGenerator struct{}

func (RandomIDGenerator) RunID() string { return randomID("run") }

func randomID(prefix string) string {
	var b [10]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%x", prefix, b[:])
}
