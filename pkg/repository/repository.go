package repository

import (
	"context"
	"errors"

	"github.com/garnizeh/skilltrials/internal/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Single-row getters return (nil, nil) when nothing matches. Mutations that
// target a missing row return ErrNotFound.

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInvalidTransition = errors.New("invalid test status transition")
	ErrEmptySubmission   = errors.New("submission has no answers")
)

type AccountRepo interface {
	CreateCompany(ctx context.Context, c *models.Company) (int64, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) (int64, error)
	GetCompanyByEmail(ctx context.Context, email string) (*models.Company, error)
	GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error)
	// SetResetToken stores token on the account with email. It reports whether
	// an account was updated.
	SetResetToken(ctx context.Context, role models.Role, email, token string) (bool, error)
	// ResetPassword replaces the password hash and clears the reset token, but
	// only when the stored token equals token. It reports whether a row changed.
	ResetPassword(ctx context.Context, role models.Role, email, token, passwordHash string) (bool, error)
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	UpdateJob(ctx context.Context, j *models.Job) error
	ListJobsByCompany(ctx context.Context, companyID int64) ([]models.Job, error)
	// DeleteJob removes the job and its questions atomically.
	DeleteJob(ctx context.Context, companyID, id int64) error
}

type QuestionRepo interface {
	CreateQuestion(ctx context.Context, q *models.Question) (int64, error)
	CreateQuestions(ctx context.Context, qs []models.Question) ([]int64, error)
	ListQuestionsByJob(ctx context.Context, jobID int64) ([]models.Question, error)
	DeleteQuestions(ctx context.Context, companyID int64, ids []int64) (int64, error)
}

type TestRepo interface {
	// AssignCandidates creates one test per email for the job in a single
	// transaction. Existing (job, email) pairs are skipped. It returns the
	// number of new tests.
	AssignCandidates(ctx context.Context, jobID int64, emails []string) (int64, error)
	// ResolveCandidate links unresolved tests for email to candidateID.
	ResolveCandidate(ctx context.Context, candidateID int64, email string) (int64, error)
	GetTest(ctx context.Context, id int64) (*models.Test, error)
	// IsAssigned reports whether email has a test for jobID.
	IsAssigned(ctx context.Context, jobID int64, email string) (bool, error)
	ListTestsByCandidateEmail(ctx context.Context, email string) ([]models.CandidateTest, error)
	ListTestsByJob(ctx context.Context, jobID int64) ([]models.JobAttempt, error)
	DeleteTests(ctx context.Context, companyID int64, ids []int64) (int64, error)
	StartTest(ctx context.Context, id int64, candidateEmail string) error
	EndTest(ctx context.Context, id int64, candidateEmail string) error
	// SubmitAnswers grades every answer and finalizes the test in one
	// transaction. Duplicate (test, question, candidate) answers are ignored.
	SubmitAnswers(ctx context.Context, candidateID, testID int64, answers []models.AnswerSubmission) (*models.SubmissionResult, error)
	ListAnswers(ctx context.Context, testID, candidateID int64) ([]models.Answer, error)
}

type SupportRepo interface {
	CreateTicket(ctx context.Context, t *models.SupportTicket) (int64, error)
	ListTickets(ctx context.Context, userID int64, userType models.Role) ([]models.SupportTicket, error)
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error)
	GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, version string) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error)
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, name, version string) error
}

// QueueRepo persists background jobs for the worker pool.
type QueueRepo interface {
	EnqueueJob(ctx context.Context, j *models.BackgroundJob) (int64, error)
	// ClaimNextJob marks the next runnable job as running and returns it, or
	// (nil, nil) when the queue is empty.
	ClaimNextJob(ctx context.Context) (*models.BackgroundJob, error)
	UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
	CountJobs(ctx context.Context, typ, status string) (int64, error)
}
