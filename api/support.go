package api

import (
	"net/http"

	"github.com/garnizeh/skilltrials/internal/auth"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

type SupportHandler struct {
	support repository.SupportRepo
}

func NewSupportHandler(support repository.SupportRepo) *SupportHandler {
	return &SupportHandler{support: support}
}

type ticketRequest struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
}

func (h *SupportHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req ticketRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}

	id, err := h.support.CreateTicket(r.Context(), &models.SupportTicket{
		UserID:      c.AccountID,
		Subject:     req.Subject,
		Description: req.Description,
		UserType:    c.Role,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, envelope{"id": id})
}

// ListTickets serves GET /getsupport/{id} for the caller's own id.
func (h *SupportHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClaims(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if id != c.AccountID {
		writeErr(w, r, auth.ErrForbidden)
		return
	}

	tickets, err := h.support.ListTickets(r.Context(), id, c.Role)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, envelope{"tickets": tickets})
}
