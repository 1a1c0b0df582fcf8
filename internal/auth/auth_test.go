package auth

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/skilltrials/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pass123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == "pass123" {
		t.Fatal("expected a non-empty hash distinct from the password")
	}
	if err := CheckPassword(hash, "pass123"); err != nil {
		t.Fatalf("CheckPassword should succeed: %v", err)
	}
	if err := CheckPassword(hash, "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	again, err := HashPassword("pass123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if again == hash {
		t.Fatal("expected salted hashes to differ")
	}
}

func TestCheckMissingAccount(t *testing.T) {
	for _, pw := range []string{"", "pass123", "no account for this email"} {
		if err := CheckMissingAccount(pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("CheckMissingAccount(%q): expected ErrInvalidCredentials, got %v", pw, err)
		}
	}

	cost, err := bcrypt.Cost(dummyHash())
	if err != nil {
		t.Fatalf("dummy hash is not a bcrypt hash: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("dummy hash cost %d, want %d", cost, bcrypt.DefaultCost)
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, 15*time.Minute)
	profile := models.Company{ID: 7, Name: "Acme", Email: "hr@acme.test", PasswordHash: "hash", CompanyName: "Acme Ltd"}

	tok, err := iss.IssueSession(models.RoleCompany, profile.ID, profile.Email, profile.Name, profile)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	claims, err := iss.Parse(tok, PurposeSession)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.AccountID != 7 || claims.Role != models.RoleCompany || claims.Email != "hr@acme.test" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Hour {
		t.Fatalf("expected 1h lifetime, got %+v", claims.RegisteredClaims)
	}

	var raw map[string]any
	if err := json.Unmarshal(claims.Profile, &raw); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if _, ok := raw["password"]; ok {
		t.Fatalf("profile leaks password: %v", raw)
	}
	if raw["company_name"] != "Acme Ltd" {
		t.Fatalf("unexpected profile: %v", raw)
	}
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, 15*time.Minute)

	reset, err := iss.IssueReset(models.RoleCandidate, "a@b.test")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	session, err := iss.IssueSession(models.RoleCandidate, 1, "a@b.test", "A", models.Candidate{ID: 1})
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	expired := NewIssuer("secret", time.Hour, 15*time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.IssueSession(models.RoleCandidate, 1, "a@b.test", "A", nil)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	other := NewIssuer("other-secret", time.Hour, time.Hour)
	foreign, err := other.IssueSession(models.RoleCandidate, 1, "a@b.test", "A", nil)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"purpose": "session", "role": 2, "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		purpose Purpose
	}{
		{name: "reset used as session", token: reset, purpose: PurposeSession},
		{name: "session used as reset", token: session, purpose: PurposeReset},
		{name: "expired", token: old, purpose: PurposeSession},
		{name: "wrong secret", token: foreign, purpose: PurposeSession},
		{name: "alg none", token: unsigned, purpose: PurposeSession},
		{name: "garbage", token: "not-a-token", purpose: PurposeSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := iss.Parse(tt.token, tt.purpose); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestResetTokensAreUnique(t *testing.T) {
	iss := NewIssuer("secret", time.Hour, 15*time.Minute)
	a, err := iss.IssueReset(models.RoleCompany, "x@y.test")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	b, err := iss.IssueReset(models.RoleCompany, "x@y.test")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct reset tokens for repeated requests")
	}

	claims, err := iss.Parse(a, PurposeReset)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Email != "x@y.test" || claims.Role != models.RoleCompany {
		t.Fatalf("unexpected reset claims: %+v", claims)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) != 15*time.Minute {
		t.Fatalf("expected 15m lifetime")
	}
}
