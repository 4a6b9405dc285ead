package handler

import "cityfix/internal/user/models"

// UserResponse is the authenticated user's own profile.
type UserResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	ReportsCount int    `json:"reportsCount"`
}

// PublicUserResponse is what anyone may see about a user.
type PublicUserResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ReportsCount int    `json:"reportsCount"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           int64(u.ID),
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Phone:        u.Phone,
		ReportsCount: u.ReportsCount,
	}
}

func toPublicResponse(u *models.User) PublicUserResponse {
	return PublicUserResponse{
		ID:           int64(u.ID),
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ReportsCount: u.ReportsCount,
	}
}
