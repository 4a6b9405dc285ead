package handler

import (
	"time"

	"cityfix/internal/auditlog/models"
)

// AuditLogResponse is one audit entry. Absent user and entity IDs are null.
type AuditLogResponse struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"eventType"`
	UserID     *int64    `json:"userId"`
	Username   string    `json:"username,omitempty"`
	EntityType string    `json:"entityType"`
	EntityID   *int64    `json:"entityId"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func toResponses(records []models.Record) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(records))
	for _, r := range records {
		out = append(out, AuditLogResponse{
			ID:         r.ID,
			EventType:  r.EventType,
			UserID:     optional(int64(r.UserID)),
			Username:   r.Username,
			EntityType: r.EntityType,
			EntityID:   optional(r.EntityID),
			Action:     r.Action,
			Details:    r.Details,
			IPAddress:  r.IPAddress,
			Timestamp:  r.Timestamp,
		})
	}
	return out
}

func optional(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
