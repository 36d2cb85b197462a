package server

import (
	"fmt"
	"sync"
	"time"
)

// logRingSize bounds the discovery log kept per session. Old entries
// are discarded first.
const logRingSize = 100

// LogEntry is one line of the session discovery log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// logRing is a fixed-size ring buffer of log entries, safe for
// concurrent use.
type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func newLogRing() *logRing {
	return &logRing{entries: make([]LogEntry, logRingSize)}
}

func (r *logRing) Addf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = LogEntry{At: time.Now().UTC(), Message: fmt.Sprintf(format, args...)}
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the buffered entries, oldest first.
func (r *logRing) Snapshot() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]LogEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
