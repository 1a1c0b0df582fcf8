package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/models"
)

type ctxKey string

const (
	ctxClaims    ctxKey = "claims"
	ctxRequestID ctxKey = "request_id"
)

const requestIDHeader = "X-Request-ID"

// package-level logger used by middleware and helpers; can be set via SetLogger from caller
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the api package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxClaims).(*auth.Claims)
	return c, ok
}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, ctxClaims, c)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// RequestIDMiddleware keeps a client supplied X-Request-ID or generates one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote", r.RemoteAddr),
			slog.String("request_id", RequestIDFrom(r.Context())),
		)
	})
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic",
					slog.Any("err", err),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFrom(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware requires a valid session token and stores its claims in the
// request context. A missing or malformed header is 401, a bad token 403.
func AuthMiddleware(issuer *auth.Issuer) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeErr(w, r, auth.ErrUnauthorized)
				return
			}

			claims, err := issuer.Parse(strings.TrimSpace(token), auth.PurposeSession)
			if err != nil {
				logger.Debug("rejected token", slog.Any("err", err), slog.String("request_id", RequestIDFrom(r.Context())))
				writeErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole wraps h so only the given roles reach it.
func RequireRole(h http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		if !ok {
			writeErr(w, r, auth.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if c.Role == role {
				h(w, r)
				return
			}
		}
		writeErr(w, r, auth.ErrForbidden)
	}
}

// RequireAdmin only lets company accounts listed in admins through. The
// generator's prompt templates and output schemas are shared by every tenant.
func RequireAdmin(h http.HandlerFunc, admins []string) http.HandlerFunc {
	allowed := make(map[string]struct{}, len(admins))
	for _, e := range admins {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return RequireRole(func(w http.ResponseWriter, r *http.Request) {
		c, _ := ClaimsFrom(r.Context())
		if _, ok := allowed[strings.ToLower(c.Email)]; !ok {
			writeErr(w, r, auth.ErrForbidden)
			return
		}
		h(w, r)
	}, models.RoleCompany)
}

// mustClaims is used by handlers mounted behind AuthMiddleware.
func mustClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	c, ok := ClaimsFrom(r.Context())
	if !ok {
		writeErr(w, r, auth.ErrUnauthorized)
	}
	return c, ok
}

// TimeoutMiddleware bounds the request context so slow queries are canceled.
func TimeoutMiddleware(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
