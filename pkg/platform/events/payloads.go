package events

import (
	"time"

	id "cityfix/pkg/domain"
)

// ReportCreated announces a newly persisted report.
type ReportCreated struct {
	ReportID  id.ReportID `json:"report_id"`
	UserID    id.UserID   `json:"user_id"`
	Title     string      `json:"title"`
	Status    string      `json:"status"`
	Category  string      `json:"category"`
	Priority  string      `json:"priority"`
	CreatedAt time.Time   `json:"created_at"`
}

// Audit source kinds.
const (
	AuditReport = "REPORT"
	AuditUser   = "USER"
)

// Audit is a user-visible action recorded by the log service.
type Audit struct {
	EventType  string    `json:"event_type"`
	UserID     id.UserID `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id,omitempty"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

func NewReportCreatedEnvelope(occurredAt time.Time, p ReportCreated) (Envelope, error) {
	return NewEnvelope(TypeReportCreated, occurredAt, p)
}

func NewAuditEnvelope(occurredAt time.Time, p Audit) (Envelope, error) {
	return NewEnvelope(TypeAudit, occurredAt, p)
}

// DecodeReportCreated validates and extracts a report.created payload.
func DecodeReportCreated(env Envelope) (ReportCreated, error) {
	var p ReportCreated
	if err := decodePayload(env, TypeReportCreated, reportCreatedSchema, &p); err != nil {
		return ReportCreated{}, err
	}
	return p, nil
}

// DecodeAudit validates and extracts an audit payload.
func DecodeAudit(env Envelope) (Audit, error) {
	var p Audit
	if err := decodePayload(env, TypeAudit, auditSchema, &p); err != nil {
		return Audit{}, err
	}
	return p, nil
}
