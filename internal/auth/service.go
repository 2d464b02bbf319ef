package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// StaffDirectory resolves staff for login and token verification.
type StaffDirectory interface {
	Authenticate(ctx context.Context, email, password string) (party.Staff, error)
	Lookup(ctx context.Context, staffID int64) (party.Staff, error)
}

// RevocationPort tracks logged-out tokens.
type RevocationPort interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	Revoked(ctx context.Context, jti string) (bool, error)
}

// Config configures token issuing.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// Service issues and verifies bearer tokens.
type Service struct {
	staff   StaffDirectory
	revoked RevocationPort
	cfg     Config
	now     func() time.Time
}

// NewService constructs a new Service.
func NewService(staff StaffDirectory, revoked RevocationPort, cfg Config) (*Service, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "supplyops"
	}
	return &Service{staff: staff, revoked: revoked, cfg: cfg, now: time.Now}, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	staff, err := s.staff.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	token, claims, err := s.Issue(staff)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Staff: staff}, nil
}

// Issue signs a token for staff.
func (s *Service) Issue(staff party.Staff) (string, Claims, error) {
	now := s.now()
	claims := Claims{
		StaffID: staff.ID,
		Role:    staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   fmt.Sprintf("%d", staff.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify validates a token and resolves the caller. The role is read from the
// staff record so role changes and deactivation apply to live tokens.
func (s *Service) Verify(ctx context.Context, raw string) (rbac.Caller, Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return rbac.Caller{}, Claims{}, fmt.Errorf("%w: invalid token: %v", shared.ErrUnauthorized, err)
	}
	if claims.ID == "" || claims.StaffID <= 0 {
		return rbac.Caller{}, Claims{}, fmt.Errorf("%w: incomplete token", shared.ErrUnauthorized)
	}
	revoked, err := s.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return rbac.Caller{}, Claims{}, fmt.Errorf("auth: check revocation: %w", err)
	}
	if revoked {
		return rbac.Caller{}, Claims{}, fmt.Errorf("%w: token revoked", shared.ErrUnauthorized)
	}
	staff, err := s.staff.Lookup(ctx, claims.StaffID)
	if errors.Is(err, shared.ErrNotFound) {
		return rbac.Caller{}, Claims{}, fmt.Errorf("%w: unknown staff", shared.ErrUnauthorized)
	}
	if err != nil {
		return rbac.Caller{}, Claims{}, err
	}
	if !staff.Active {
		return rbac.Caller{}, Claims{}, fmt.Errorf("%w: account is inactive", shared.ErrUnauthorized)
	}
	return rbac.Caller{StaffID: staff.ID, Role: staff.Role}, claims, nil
}

// Logout revokes the token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims Claims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: incomplete token", shared.ErrUnauthorized)
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
