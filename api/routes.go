package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/config"
	"github.com/garnizeh/skilltrials/internal/db"
	"github.com/garnizeh/skilltrials/internal/jobs"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/internal/repository/sqlite"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

// Deps is everything the router needs. Generator and DB may be nil.
type Deps struct {
	Accounts  repository.AccountRepo
	Jobs      repository.JobRepo
	Questions repository.QuestionRepo
	Tests     repository.TestRepo
	Support   repository.SupportRepo
	Schemas   repository.SchemaRepo
	Templates repository.TemplateRepo
	Queue     jobs.Queue
	Issuer    *auth.Issuer
	Generator QuestionGenerator
	// AdminEmails may change the generator's templates and schemas.
	AdminEmails []string
	DB          Pinger
	Timeout     time.Duration
	Version     string
	BuildTime   string
}

// SetupRoutes wires the SQLite repository into every handler.
func SetupRoutes(cfg *config.Config, version, buildTime string, conn *db.DB, generator QuestionGenerator) *mux.Router {
	repo := sqlite.New(conn, logger)
	return NewRouter(Deps{
		Accounts:    repo,
		Jobs:        repo,
		Questions:   repo,
		Tests:       repo,
		Support:     repo,
		Schemas:     repo,
		Templates:   repo,
		Queue:       repo,
		Issuer:      auth.NewIssuer(cfg.JWTSecret, cfg.TokenDuration, cfg.ResetTokenDuration),
		Generator:   generator,
		AdminEmails: cfg.AdminEmails,
		DB:          conn,
		Timeout:     cfg.APITimeout,
		Version:     version,
		BuildTime:   buildTime,
	})
}

func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Middleware chain
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	if d.Timeout > 0 {
		r.Use(TimeoutMiddleware(d.Timeout))
	}

	// Preflight requests are answered by CORSMiddleware. A MatcherFunc is used
	// instead of Methods so other methods on unknown paths still get 404.
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Create handlers
	systemHandler := NewSystemHandler(d.DB)
	authHandler := NewAuthHandler(d.Accounts, d.Tests, d.Queue, d.Issuer)
	jobsHandler := NewJobsHandler(d.Jobs)
	questionsHandler := NewQuestionsHandler(d.Jobs, d.Questions, d.Tests, d.Generator)
	testsHandler := NewTestsHandler(d.Jobs, d.Tests)
	supportHandler := NewSupportHandler(d.Support)
	aiHandler := NewAIHandler(d.Generator, d.Schemas, d.Templates)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(d.Version, d.BuildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/company/signup", authHandler.CompanySignup).Methods(http.MethodPost)
	r.HandleFunc("/auth/company/login", authHandler.CompanyLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/candidate/signup", authHandler.CandidateSignup).Methods(http.MethodPost)
	r.HandleFunc("/auth/candidate/login", authHandler.CandidateLogin).Methods(http.MethodPost)
	r.HandleFunc("/forgotpassword", authHandler.ForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/resetpassword", authHandler.ResetPassword).Methods(http.MethodPost)

	// Protected routes
	p := r.NewRoute().Subrouter()
	p.Use(AuthMiddleware(d.Issuer))

	company := func(h http.HandlerFunc) http.HandlerFunc { return RequireRole(h, models.RoleCompany) }
	candidate := func(h http.HandlerFunc) http.HandlerFunc { return RequireRole(h, models.RoleCandidate) }
	anyone := func(h http.HandlerFunc) http.HandlerFunc {
		return RequireRole(h, models.RoleCompany, models.RoleCandidate)
	}

	// Jobs
	p.HandleFunc("/addjobs", company(jobsHandler.CreateJob)).Methods(http.MethodPost)
	p.HandleFunc("/jobs/{id:[0-9]+}", company(jobsHandler.UpdateJob)).Methods(http.MethodPut)
	p.HandleFunc("/jobs/{id:[0-9]+}", company(jobsHandler.ListJobs)).Methods(http.MethodGet)
	p.HandleFunc("/job/delete/{id:[0-9]+}", company(jobsHandler.DeleteJob)).Methods(http.MethodGet)

	// Questions
	p.HandleFunc("/question", company(questionsHandler.CreateQuestion)).Methods(http.MethodPost)
	p.HandleFunc("/question/delete", company(questionsHandler.DeleteQuestions)).Methods(http.MethodPost)
	p.HandleFunc("/question/generate", company(questionsHandler.GenerateQuestions)).Methods(http.MethodPost)
	p.HandleFunc("/question/{job_id:[0-9]+}", anyone(questionsHandler.ListQuestions)).Methods(http.MethodGet)

	// Tests
	p.HandleFunc("/test", company(testsHandler.AssignCandidates)).Methods(http.MethodPost)
	p.HandleFunc("/test/candidate", candidate(testsHandler.CandidateTests)).Methods(http.MethodPost)
	p.HandleFunc("/getCandidatesForJob/{id:[0-9]+}", company(testsHandler.CandidatesForJob)).Methods(http.MethodGet)
	p.HandleFunc("/test/deleteCandidates", company(testsHandler.DeleteCandidates)).Methods(http.MethodPost)
	p.HandleFunc("/test/start/{id:[0-9]+}", candidate(testsHandler.StartTest)).Methods(http.MethodGet)
	p.HandleFunc("/test/end/{id:[0-9]+}", candidate(testsHandler.EndTest)).Methods(http.MethodGet)
	p.HandleFunc("/submitanswers", candidate(testsHandler.SubmitAnswers)).Methods(http.MethodPost)

	// Support
	p.HandleFunc("/support", anyone(supportHandler.CreateTicket)).Methods(http.MethodPost)
	p.HandleFunc("/getsupport/{id:[0-9]+}", anyone(supportHandler.ListTickets)).Methods(http.MethodGet)

	// AI administration
	aiRoutes := p.PathPrefix("/ai").Subrouter()
	admin := func(h http.HandlerFunc) http.HandlerFunc { return RequireAdmin(h, d.AdminEmails) }
	aiRoutes.HandleFunc("/reload", admin(aiHandler.ReloadHandler)).Methods(http.MethodPost)
	aiRoutes.HandleFunc("/schemas", company(aiHandler.ListSchemasHandler)).Methods(http.MethodGet)
	aiRoutes.HandleFunc("/schemas", admin(aiHandler.CreateOrUpdateSchemaHandler)).Methods(http.MethodPost)
	aiRoutes.HandleFunc("/schemas", admin(aiHandler.DeleteSchemaHandler)).Methods(http.MethodDelete)
	aiRoutes.HandleFunc("/templates", company(aiHandler.ListTemplatesHandler)).Methods(http.MethodGet)
	aiRoutes.HandleFunc("/templates", admin(aiHandler.CreateOrUpdateTemplateHandler)).Methods(http.MethodPost)
	aiRoutes.HandleFunc("/templates", admin(aiHandler.DeleteTemplateHandler)).Methods(http.MethodDelete)

	logger.Debug("routes registered", slog.Bool("generator", d.Generator != nil))

	return r
}
