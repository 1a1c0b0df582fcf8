package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

// TestsHandler serves assignment, the candidate test lifecycle and submission.
type TestsHandler struct {
	jobs  repository.JobRepo
	tests repository.TestRepo
}

func NewTestsHandler(jobs repository.JobRepo, tests repository.TestRepo) *TestsHandler {
	return &TestsHandler{jobs: jobs, tests: tests}
}

type assignRequest struct {
	JobID  int64    `json:"job_id" validate:"required,gt=0"`
	Emails []string `json:"emails" validate:"required,min=1,max=500,dive,required,email"`
}

type submitRequest struct {
	TestID  int64                     `json:"test_id" validate:"required,gt=0"`
	Answers []models.AnswerSubmission `json:"answers" validate:"required,min=1,dive"`
}

func (h *TestsHandler) AssignCandidates(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := ownedJob(ctx, h.jobs, c.AccountID, req.JobID); err != nil {
		writeErr(w, r, err)
		return
	}

	emails := make([]string, 0, len(req.Emails))
	seen := make(map[string]struct{}, len(req.Emails))
	for _, e := range req.Emails {
		e = normalizeEmail(e)
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		emails = append(emails, e)
	}

	n, err := h.tests.AssignCandidates(ctx, req.JobID, emails)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"created": n})
}

// CandidateTests lists the tests assigned to the authenticated candidate.
func (h *TestsHandler) CandidateTests(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}

	tests, err := h.tests.ListTestsByCandidateEmail(r.Context(), c.Email)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"tests": tests})
}

func (h *TestsHandler) CandidatesForJob(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	jobID, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := ownedJob(ctx, h.jobs, c.AccountID, jobID); err != nil {
		writeErr(w, r, err)
		return
	}

	attempts, err := h.tests.ListTestsByJob(ctx, jobID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"candidates": attempts})
}

func (h *TestsHandler) DeleteCandidates(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req deleteIDsRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	n, err := h.tests.DeleteTests(r.Context(), c.AccountID, req.IDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"deleted": n})
}

func (h *TestsHandler) StartTest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tests.StartTest)
}

func (h *TestsHandler) EndTest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.tests.EndTest)
}

func (h *TestsHandler) transition(w http.ResponseWriter, r *http.Request, step func(ctx context.Context, id int64, email string) error) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	if err := step(ctx, id, c.Email); err != nil {
		writeErr(w, r, err)
		return
	}

	t, err := h.tests.GetTest(ctx, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"test": t})
}

func (h *TestsHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	res, err := h.tests.SubmitAnswers(r.Context(), c.AccountID, req.TestID, req.Answers)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"test_id": res.TestID, "score": res.Score, "graded": res.Graded})
}
