package models

import (
	"time"

	id "cityfix/pkg/domain"
)

// Defaults assigned on creation.
const (
	StatusOpen      = "OPEN"
	DefaultPriority = "MEDIUM"
)

// Audit actions published by the report service.
const (
	ActionCreate = "report.create"
	ActionUpdate = "report.update"
	ActionDelete = "report.delete"

	EntityType = "Report"
)

// Report is a citizen's issue report. UserID is the owner.
type Report struct {
	ID          id.ReportID
	UserID      id.UserID
	Title       string
	Description string
	Status      string
	Category    string
	Priority    string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput carries validated fields for a new report.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Latitude    *float64
	Longitude   *float64
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Status      *string
	Category    *string
	Priority    *string
	Latitude    *float64
	Longitude   *float64
}

// New builds an unsaved report owned by owner.
func New(owner id.UserID, in CreateInput) *Report {
	priority := in.Priority
	if priority == "" {
		priority = DefaultPriority
	}
	return &Report{
		UserID:      owner,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusOpen,
		Category:    in.Category,
		Priority:    priority,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
	}
}

// IsOwnedBy reports whether user may modify the report.
func (r *Report) IsOwnedBy(user id.UserID) bool {
	return r.UserID == user
}

// Apply copies the set fields of p onto r.
func (r *Report) Apply(p Patch) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Latitude != nil {
		r.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		r.Longitude = p.Longitude
	}
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r *Report) Clone() *Report {
	c := *r
	if r.Latitude != nil {
		lat := *r.Latitude
		c.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		c.Longitude = &lon
	}
	return &c
}
