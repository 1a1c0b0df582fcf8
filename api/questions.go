package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/garnizeh/skilltrials/internal/ai"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/internal/validator"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

// QuestionGenerator is the part of ai.Generator the handlers use.
type QuestionGenerator interface {
	Generate(ctx context.Context, job models.Job, count int, difficulty string) ([]ai.Draft, error)
	ReloadSchemas(ctx context.Context) error
}

const defaultDraftCount = 5

type QuestionsHandler struct {
	jobs      repository.JobRepo
	questions repository.QuestionRepo
	tests     repository.TestRepo
	generator QuestionGenerator
}

// NewQuestionsHandler builds the handler. generator may be nil, in which case
// drafting answers 503.
func NewQuestionsHandler(jobs repository.JobRepo, questions repository.QuestionRepo, tests repository.TestRepo, generator QuestionGenerator) *QuestionsHandler {
	return &QuestionsHandler{jobs: jobs, questions: questions, tests: tests, generator: generator}
}

type questionRequest struct {
	JobID        int64    `json:"job_id" validate:"required,gt=0"`
	QuestionText string   `json:"question_text" validate:"required,max=5000"`
	QuestionType string   `json:"question_type" validate:"omitempty,oneof=mcq single multiple"`
	Difficulty   string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Options      []string `json:"options" validate:"required,min=2,max=10,dive,required,max=500"`
	Answers      []string `json:"answers" validate:"required,min=1,dive,required"`
}

type deleteIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

type generateRequest struct {
	JobID      int64  `json:"job_id" validate:"required,gt=0"`
	Count      int    `json:"count" validate:"omitempty,min=1,max=20"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Save       bool   `json:"save"`
}

// answersInOptions rejects answers that are not among the options.
func answersInOptions(options, answers []string) error {
	for _, a := range answers {
		if !slices.Contains(options, a) {
			return &validator.ValidationError{Errors: map[string]string{"answers": "must be a subset of options"}}
		}
	}
	return nil
}

func (h *QuestionsHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req questionRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := answersInOptions(req.Options, req.Answers); err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := ownedJob(ctx, h.jobs, c.AccountID, req.JobID); err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := h.questions.CreateQuestion(ctx, &models.Question{
		JobID:        req.JobID,
		QuestionText: req.QuestionText,
		QuestionType: req.QuestionType,
		CompanyID:    c.AccountID,
		Difficulty:   req.Difficulty,
		CreatedBy:    c.Email,
		Options:      req.Options,
		Answers:      req.Answers,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"id": id})
}

// ListQuestions serves either role. Candidates never see the stored answers.
func (h *QuestionsHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	jobID, err := pathID(r, "job_id")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	if c.Role == models.RoleCompany {
		if _, err := ownedJob(ctx, h.jobs, c.AccountID, jobID); err != nil {
			writeErr(w, r, err)
			return
		}
	} else {
		// candidates only see questions of jobs they were assigned to
		assigned, err := h.tests.IsAssigned(ctx, jobID, c.Email)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if !assigned {
			writeErr(w, r, repository.ErrNotFound)
			return
		}
	}

	qs, err := h.questions.ListQuestionsByJob(ctx, jobID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if c.Role != models.RoleCompany {
		for i := range qs {
			qs[i].Answers = nil
		}
	}

	writeOK(w, http.StatusOK, envelope{"questions": qs})
}

func (h *QuestionsHandler) DeleteQuestions(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req deleteIDsRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	n, err := h.questions.DeleteQuestions(r.Context(), c.AccountID, req.IDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"deleted": n})
}

// GenerateQuestions drafts questions for a job and optionally stores them.
func (h *QuestionsHandler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "question generator unavailable")
		return
	}
	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if req.Count == 0 {
		req.Count = defaultDraftCount
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}

	ctx := r.Context()
	job, err := ownedJob(ctx, h.jobs, c.AccountID, req.JobID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	drafts, err := h.generator.Generate(ctx, *job, req.Count, req.Difficulty)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	body := envelope{"questions": drafts}
	if req.Save && len(drafts) > 0 {
		qs := make([]models.Question, 0, len(drafts))
		for _, d := range drafts {
			qs = append(qs, models.Question{
				JobID:        job.ID,
				QuestionText: d.QuestionText,
				CompanyID:    c.AccountID,
				Difficulty:   d.Difficulty,
				CreatedBy:    "ai",
				Options:      d.Options,
				Answers:      d.Answers,
			})
		}
		ids, err := h.questions.CreateQuestions(ctx, qs)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		body["ids"] = ids
	}

	writeOK(w, http.StatusOK, body)
}
