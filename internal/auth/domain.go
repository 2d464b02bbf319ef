package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/rbac"
)

// Claims is the bearer token payload.
type Claims struct {
	StaffID int64     `json:"staffId"`
	Role    rbac.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session is returned by a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Staff     party.Staff `json:"staff"`
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
