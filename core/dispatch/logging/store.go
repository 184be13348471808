// Package logging keeps an append-only journal of committed dispatch commands.
package logging

import (
	"context"
	"slices"
	"time"
)

// LogRecord captures one committed command and its result.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	CallID    string    `json:"call_id,omitempty"`
	UnitIDs   []string  `json:"unit_ids,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Response  Result    `json:"response"`
}

// Result mirrors the command outcome for journaling purposes.
type Result struct {
	Assigned     []string          `json:"assigned,omitempty"`
	Skipped      []string          `json:"skipped,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	StatusID     string            `json:"status_id,omitempty"`
	DepartmentID string            `json:"department_id,omitempty"`
	Panic        string            `json:"panic,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	UnitID  string
	CallID  string
	Command string
}

// Match reports whether r passes every filter of q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Command != "" && r.Command != q.Command {
		return false
	}
	if q.CallID != "" && r.CallID != q.CallID {
		return false
	}
	if q.UnitID != "" && !slices.Contains(r.UnitIDs, q.UnitID) {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
