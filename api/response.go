package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/skilltrials/internal/ai"
	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/validator"
	"github.com/garnizeh/skilltrials/pkg/ollama"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

const maxBodySize = 1 << 20

var errBadRequest = errors.New("invalid request body")

var validate = validator.New()

// envelope is the top-level shape of every JSON response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeOK adds "success": true to body and writes it.
func writeOK(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, body, status)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, envelope{"success": false, "error": msg}, status)
}

// writeErr maps err to a status code. Unknown errors are logged and reported
// with a generic message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, envelope{"success": false, "error": "validation failed", "fields": verr.Errors}, http.StatusBadRequest)
		return
	}

	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Any("err", err),
		)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrEmptySubmission):
		return http.StatusBadRequest, repository.ErrEmptySubmission.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, auth.ErrUnauthorized.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusForbidden, auth.ErrInvalidToken.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, auth.ErrForbidden.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, repository.ErrNotFound.Error()
	case errors.Is(err, repository.ErrDuplicateEmail):
		return http.StatusConflict, repository.ErrDuplicateEmail.Error()
	case errors.Is(err, repository.ErrInvalidTransition):
		return http.StatusConflict, repository.ErrInvalidTransition.Error()
	case errors.Is(err, ai.ErrInvalidOutput):
		return http.StatusBadGateway, ai.ErrInvalidOutput.Error()
	case errors.Is(err, ollama.ErrCircuitOpen),
		errors.Is(err, ai.ErrTemplateNotFound),
		errors.Is(err, ai.ErrSchemaNotFound):
		return http.StatusServiceUnavailable, "question generator unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(body) > maxBodySize {
		return fmt.Errorf("%w: too large", errBadRequest)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errBadRequest
	}
	return validate.Validate(dst)
}

// pathID parses the named mux variable as a positive id.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}
