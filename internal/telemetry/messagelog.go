package telemetry

import (
	"sync"
	"time"
)

// Entry is one logged message, tagged with the branch that produced it.
type Entry struct {
	BranchID string    `json:"branch_id"`
	Depth    int       `json:"depth"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Time     time.Time `json:"time"`
}

// MessageLog is the append-only run-scoped message record, shared by
// reference across all branches of one call tree.
type MessageLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMessageLog creates an empty run-scoped log.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append records one entry. Safe for concurrent writers.
func (l *MessageLog) Append(branchID string, depth int, role, content string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		BranchID: branchID,
		Depth:    depth,
		Role:     role,
		Content:  content,
		Time:     time.Now().UTC(),
	})
}

// Entries returns a copy of the log in append order.
func (l *MessageLog) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *MessageLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
