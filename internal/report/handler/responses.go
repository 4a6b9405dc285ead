package handler

import (
	"time"

	"cityfix/internal/report/models"
)

// ReportResponse is the JSON view of a report.
type ReportResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func toResponse(r *models.Report) ReportResponse {
	return ReportResponse{
		ID:          int64(r.ID),
		UserID:      int64(r.UserID),
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Category:    r.Category,
		Priority:    r.Priority,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toResponses(reports []*models.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, toResponse(r))
	}
	return out
}
