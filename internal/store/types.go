package store

import (
	"time"
)

// AuditEntry records one gated command execution.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at"`
	ActorID  int64     `json:"actor_id"`
	Username string    `json:"username,omitempty"`
	ChatID   int64     `json:"chat_id"`
	Command  string    `json:"command"`
	Target   string    `json:"target,omitempty"`
	Outcome  string    `json:"outcome"` // ok | error | blocked_remote | blocked_local | panic
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}

// ErrorEntry is one record of the bounded rolling error tail.
type ErrorEntry struct {
	At      time.Time `json:"at"`
	Context string    `json:"context"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

// ErrorTailSize bounds the rolling error log; only the most recent entries
// are retained.
const ErrorTailSize = 100

// Config configures the audit/error store.
//
// Driver values:
//   - "file": jsonl audit log + bounded errors.json (default)
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If Driver is "none", the store is disabled.
type Config struct {
	Driver string
	Path   string
}
