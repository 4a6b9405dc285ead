package models

import (
	"time"

	id "cityfix/pkg/domain"
)

// Record is one stored audit entry. Fields are copied verbatim from the audit
// envelope; zero UserID and EntityID mean absent.
type Record struct {
	ID         int64
	EventType  string
	UserID     id.UserID
	Username   string
	EntityType string
	EntityID   int64
	Action     string
	Details    string
	IPAddress  string
	Timestamp  time.Time
}

// Filter selects records. Set criteria are combined; Limit caps the result.
// Results are always newest first.
type Filter struct {
	UserID    id.UserID
	EventType string
	From      time.Time
	To        time.Time
	Limit     int
}

// Matches reports whether r satisfies every set criterion of f.
func (f Filter) Matches(r Record) bool {
	if !f.UserID.IsZero() && r.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && r.EventType != f.EventType {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	return true
}
