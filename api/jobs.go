package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

type JobsHandler struct {
	jobs repository.JobRepo
}

func NewJobsHandler(jobs repository.JobRepo) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

type jobRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
}

// ownedJob loads a job and hides jobs of other companies behind ErrNotFound.
func ownedJob(ctx context.Context, jobs repository.JobRepo, companyID, id int64) (*models.Job, error) {
	j, err := jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil || j.CompanyID != companyID {
		return nil, repository.ErrNotFound
	}
	return j, nil
}

func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req jobRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := h.jobs.CreateJob(r.Context(), &models.Job{Title: req.Title, Description: req.Description, CompanyID: c.AccountID})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"id": id})
}

func (h *JobsHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req jobRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	j := &models.Job{ID: id, Title: req.Title, Description: req.Description, CompanyID: c.AccountID}
	if err := h.jobs.UpdateJob(r.Context(), j); err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"id": id})
}

// ListJobs serves GET /jobs/{id}, where id is the company id.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	companyID, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if companyID != c.AccountID {
		writeErr(w, r, auth.ErrForbidden)
		return
	}

	jobs, err := h.jobs.ListJobsByCompany(r.Context(), companyID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"jobs": jobs})
}

func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}

	if err := h.jobs.DeleteJob(r.Context(), c.AccountID, id); err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"id": id})
}
