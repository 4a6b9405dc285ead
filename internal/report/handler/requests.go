package handler

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"cityfix/internal/report/models"
	dErrors "cityfix/pkg/domain-errors"
)

// Field limits.
const (
	maxTitle       = 255
	maxDescription = 5000
	maxStatus      = 50
	maxCategory    = 100
	maxPriority    = 50
)

// CreateReportRequest is the body of POST /reports.
type CreateReportRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Validate implements httputil.Validatable.
func (r *CreateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	r.Priority = strings.TrimSpace(r.Priority)

	if r.Title == "" {
		return dErrors.New(dErrors.CodeBadRequest, "title is required")
	}
	if r.Category == "" {
		return dErrors.New(dErrors.CodeBadRequest, "category is required")
	}
	if err := checkLengths(&r.Title, &r.Description, nil, &r.Category, &r.Priority); err != nil {
		return err
	}
	return checkCoordinates(r.Latitude, r.Longitude)
}

func (r *CreateReportRequest) Input() models.CreateInput {
	return models.CreateInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Priority:    r.Priority,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
}

// UpdateReportRequest is the body of PUT /reports/{id}. Absent fields keep
// their stored value.
type UpdateReportRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Category    *string  `json:"category"`
	Priority    *string  `json:"priority"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Validate implements httputil.Validatable.
func (r *UpdateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return dErrors.New(dErrors.CodeBadRequest, "title must not be blank")
		}
		r.Title = &title
	}
	if err := checkLengths(r.Title, r.Description, r.Status, r.Category, r.Priority); err != nil {
		return err
	}
	return checkCoordinates(r.Latitude, r.Longitude)
}

func (r *UpdateReportRequest) Patch() models.Patch {
	return models.Patch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Category:    r.Category,
		Priority:    r.Priority,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
}

func checkLengths(title, description, status, category, priority *string) error {
	for _, f := range []struct {
		name  string
		value *string
		max   int
	}{
		{"title", title, maxTitle},
		{"description", description, maxDescription},
		{"status", status, maxStatus},
		{"category", category, maxCategory},
		{"priority", priority, maxPriority},
	} {
		if f.value != nil && utf8.RuneCountInString(*f.value) > f.max {
			return dErrors.New(dErrors.CodeBadRequest, f.name+" must be at most "+strconv.Itoa(f.max)+" characters")
		}
	}
	return nil
}

func checkCoordinates(lat, lon *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return dErrors.New(dErrors.CodeBadRequest, "latitude must be between -90 and 90")
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return dErrors.New(dErrors.CodeBadRequest, "longitude must be between -180 and 180")
	}
	return nil
}
