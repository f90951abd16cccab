package engine

import (
	"sync"
	"time"
)

// ActivityType groups activity log entries.
type ActivityType string

const (
	ActivityDataFetch ActivityType = "DATA_FETCH"
	ActivityDecision  ActivityType = "AI_DECISION"
	ActivityTrade     ActivityType = "TRADE"
	ActivityRisk      ActivityType = "RISK"
	ActivityError     ActivityType = "ERROR"
	ActivityBotStatus ActivityType = "BOT_STATUS"
)

// DefaultActivityCapacity is the number of entries an ActivityLog keeps.
const DefaultActivityCapacity = 100

// Activity is one human-readable log entry for the status surfaces.
type Activity struct {
	Timestamp time.Time    `json:"timestamp"`
	Type      ActivityType `json:"type"`
	Pair      string       `json:"pair,omitempty"`
	Message   string       `json:"message"`
}

// ActivityLog is a bounded, concurrency-safe ring of recent activity.
type ActivityLog struct {
	mu       sync.RWMutex
	capacity int
	entries  []Activity
	now      func() time.Time
}

// NewActivityLog creates a log holding at most capacity entries.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityLog{capacity: capacity, now: time.Now}
}

// Add appends an entry, dropping the oldest once full.
func (l *ActivityLog) Add(kind ActivityType, pair, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Activity{
		Timestamp: l.now().UTC(),
		Type:      kind,
		Pair:      pair,
		Message:   message,
	})
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all.
func (l *ActivityLog) Recent(limit int) []Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Activity, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Len returns the number of retained entries.
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
