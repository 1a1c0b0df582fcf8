// Package auth issues and verifies the platform's bearer tokens and hashes
// account passwords.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garnizeh/skilltrials/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("missing or malformed authorization")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Purpose separates session tokens from password reset tokens so one can
// never be used in place of the other.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
)

type Claims struct {
	AccountID int64           `json:"account_id,omitempty"`
	Role      models.Role     `json:"role"`
	Email     string          `json:"email"`
	Name      string          `json:"name,omitempty"`
	Purpose   Purpose         `json:"purpose"`
	Profile   json.RawMessage `json:"profile,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, sessionTTL, resetTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), sessionTTL: sessionTTL, resetTTL: resetTTL, now: time.Now}
}

// IssueSession returns a session token for an account. profile is embedded
// as JSON; callers pass a value whose password field is not serialized.
func (i *Issuer) IssueSession(role models.Role, id int64, email, name string, profile any) (string, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	return i.sign(Claims{
		AccountID: id,
		Role:      role,
		Email:     email,
		Name:      name,
		Purpose:   PurposeSession,
		Profile:   raw,
	}, i.sessionTTL)
}

// IssueReset returns a short-lived token authorizing one password change.
func (i *Issuer) IssueReset(role models.Role, email string) (string, error) {
	return i.sign(Claims{Role: role, Email: email, Purpose: PurposeReset}, i.resetTTL)
}

func (i *Issuer) sign(c Claims, ttl time.Duration) (string, error) {
	now := i.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse verifies signature, expiry and purpose. Every failure wraps
// ErrInvalidToken.
func (i *Issuer) Parse(tokenString string, purpose Purpose) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %q", ErrInvalidToken, c.Purpose)
	}
	if !c.Role.Valid() {
		return nil, fmt.Errorf("%w: role %d", ErrInvalidToken, int(c.Role))
	}
	return &c, nil
}
