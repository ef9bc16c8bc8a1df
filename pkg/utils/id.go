package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// Counter for sequential IDs
	idCounter uint64
)

// GenerateID generates a process-unique ID from the clock and a counter
func GenerateID() string {
	count := atomic.AddUint64(&idCounter, 1)
	return fmt.Sprintf("%x-%x", time.Now().UnixNano(), count)
}

// GenerateSessionID generates a session ID with a timestamp prefix
func GenerateSessionID() string {
	timestamp := time.Now().Format("20060102-150405")
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		count := atomic.AddUint64(&idCounter, 1)
		return fmt.Sprintf("sess-%s-%x", timestamp, count)
	}
	return fmt.Sprintf("sess-%s-%s", timestamp, hex.EncodeToString(b))
}
