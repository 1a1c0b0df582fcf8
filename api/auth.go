package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/jobs"
	"github.com/garnizeh/skilltrials/internal/mail"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/internal/validator"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

type AuthHandler struct {
	accounts repository.AccountRepo
	tests    repository.TestRepo
	queue    jobs.Queue
	issuer   *auth.Issuer
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(accounts repository.AccountRepo, tests repository.TestRepo, queue jobs.Queue, issuer *auth.Issuer) *AuthHandler {
	return &AuthHandler{accounts: accounts, tests: tests, queue: queue, issuer: issuer}
}

type companySignupRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Website     string `json:"website" validate:"max=500"`
	Phone       string `json:"phone" validate:"max=50"`
	CompanyName string `json:"company_name" validate:"max=200"`
}

type candidateSignupRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	Phone      string `json:"phone" validate:"max=50"`
	Skills     string `json:"skills" validate:"max=2000"`
	Experience string `json:"experience" validate:"max=2000"`
	Location   string `json:"location" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (h *AuthHandler) CompanySignup(w http.ResponseWriter, r *http.Request) {
	var req companySignupRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := h.accounts.CreateCompany(r.Context(), &models.Company{
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Website:      req.Website,
		Phone:        req.Phone,
		CompanyName:  req.CompanyName,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"id": id})
}

func (h *AuthHandler) CandidateSignup(w http.ResponseWriter, r *http.Request) {
	var req candidateSignupRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	email := normalizeEmail(req.Email)
	id, err := h.accounts.CreateCandidate(ctx, &models.Candidate{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Skills:       req.Skills,
		Experience:   req.Experience,
		Location:     req.Location,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Tests assigned before the account existed are linked now; the account
	// stays created if this fails.
	if n, err := h.tests.ResolveCandidate(ctx, id, email); err != nil {
		logger.Warn("resolve pending tests", slog.Int64("candidate_id", id), slog.Any("err", err))
	} else if n > 0 {
		logger.Info("linked pending tests", slog.Int64("candidate_id", id), slog.Int64("tests", n))
	}

	writeOK(w, http.StatusCreated, envelope{"id": id})
}

func (h *AuthHandler) CompanyLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	c, err := h.accounts.GetCompanyByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if c == nil {
		writeErr(w, r, auth.CheckMissingAccount(req.Password))
		return
	}
	if err := auth.CheckPassword(c.PasswordHash, req.Password); err != nil {
		writeErr(w, r, err)
		return
	}

	token, err := h.issuer.IssueSession(models.RoleCompany, c.ID, c.Email, c.Name, c)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"token": token, "user": c})
}

func (h *AuthHandler) CandidateLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	c, err := h.accounts.GetCandidateByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if c == nil {
		writeErr(w, r, auth.CheckMissingAccount(req.Password))
		return
	}
	if err := auth.CheckPassword(c.PasswordHash, req.Password); err != nil {
		writeErr(w, r, err)
		return
	}

	token, err := h.issuer.IssueSession(models.RoleCandidate, c.ID, c.Email, c.Name, c)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"token": token, "user": c})
}

// ForgotPassword stores a reset token and queues the reset email. Unknown
// addresses get the same response as known ones.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		writeErr(w, r, &validator.ValidationError{Errors: map[string]string{"role": "must be one of [company candidate]"}})
		return
	}

	ctx := r.Context()
	email := normalizeEmail(req.Email)
	token, err := h.issuer.IssueReset(role, email)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	updated, err := h.accounts.SetResetToken(ctx, role, email, token)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	if updated {
		payload := mail.ResetPayload{Email: email, Role: role.String(), Token: token}
		if _, err := jobs.Enqueue(ctx, h.queue, jobs.TypePasswordResetMail, payload, 0, 1); err != nil {
			logger.Error("enqueue reset mail", slog.String("role", role.String()), slog.Any("err", err))
		}
	}

	writeOK(w, http.StatusOK, envelope{"message": "if the account exists, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	claims, err := h.issuer.Parse(req.Token, auth.PurposeReset)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ok, err := h.accounts.ResetPassword(r.Context(), claims.Role, claims.Email, req.Token, hash)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !ok {
		writeErr(w, r, auth.ErrForbidden)
		return
	}

	writeOK(w, http.StatusOK, envelope{"message": "password updated"})
}
