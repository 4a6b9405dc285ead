package handler

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"cityfix/internal/user/models"
	dErrors "cityfix/pkg/domain-errors"
)

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Validate implements httputil.Validatable.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)

	if n := utf8.RuneCountInString(r.Username); n < 3 || n > 50 {
		return dErrors.New(dErrors.CodeBadRequest, "username must be between 3 and 50 characters")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Password) < 6 {
		return dErrors.New(dErrors.CodeBadRequest, "password must be at least 6 characters")
	}
	// bcrypt rejects anything past 72 bytes.
	if len(r.Password) > 72 {
		return dErrors.New(dErrors.CodeBadRequest, "password must be at most 72 bytes")
	}
	return validateProfile(r.FirstName, r.LastName, r.Phone)
}

func (r *RegisterRequest) Registration() models.Registration {
	return models.Registration{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate implements httputil.Validatable.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "username and password are required")
	}
	return nil
}

// UpdateUserRequest is the body of PUT /users/me. Blank fields are ignored.
type UpdateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Validate implements httputil.Validatable.
func (r *UpdateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Email != "" {
		if err := validateEmail(r.Email); err != nil {
			return err
		}
	}
	return validateProfile(r.FirstName, r.LastName, r.Phone)
}

func (r *UpdateUserRequest) Update() models.ProfileUpdate {
	return models.ProfileUpdate{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if utf8.RuneCountInString(email) > 100 {
		return dErrors.New(dErrors.CodeBadRequest, "email must be at most 100 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return dErrors.New(dErrors.CodeBadRequest, "email must be a valid address")
	}
	return nil
}

func validateProfile(firstName, lastName, phone string) error {
	if utf8.RuneCountInString(firstName) > 50 || utf8.RuneCountInString(lastName) > 50 {
		return dErrors.New(dErrors.CodeBadRequest, "names must be at most 50 characters")
	}
	if utf8.RuneCountInString(phone) > 20 {
		return dErrors.New(dErrors.CodeBadRequest, "phone must be at most 20 characters")
	}
	return nil
}
