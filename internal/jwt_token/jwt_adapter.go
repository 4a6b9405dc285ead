package jwttoken

import (
	authmw "cityfix/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes JWTService to the auth filter.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{UserID: claims.UserID, Username: claims.Username()}, nil
}
