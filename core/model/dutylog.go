package model

import "time"

// OfficerLog records one continuous on-duty interval.
type OfficerLog struct {
	ID        string     `json:"id"`
	Unit      Ref        `json:"unit"`
	UserID    string     `json:"userId,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Open reports whether the shift is still running.
func (l OfficerLog) Open() bool { return l.EndedAt == nil }

// Duration returns the shift length, measured up to now for open logs.
func (l OfficerLog) Duration(now time.Time) time.Duration {
	end := now
	if l.EndedAt != nil {
		end = *l.EndedAt
	}
	return end.Sub(l.StartedAt)
}
