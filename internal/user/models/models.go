package models

import (
	"time"

	id "cityfix/pkg/domain"
)

// Audit actions published by the user service.
const (
	ActionRegister    = "register"
	ActionLogin       = "login"
	ActionLoginFailed = "login-log"
	ActionUpdate      = "update"

	EntityType = "User"
)

// User is a registered account. ReportsCount is maintained by the counter
// updater from report.created events.
type User struct {
	ID           id.UserID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	ReportsCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Registration carries validated sign-up fields. Password is plain text and
// never stored.
type Registration struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// ProfileUpdate changes profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// Apply copies the non-empty fields of p onto u.
func (u *User) Apply(p ProfileUpdate) {
	if p.FirstName != "" {
		u.FirstName = p.FirstName
	}
	if p.LastName != "" {
		u.LastName = p.LastName
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.Phone != "" {
		u.Phone = p.Phone
	}
}

func (u *User) Clone() *User {
	c := *u
	return &c
}
