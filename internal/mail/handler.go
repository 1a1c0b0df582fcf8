package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/skilltrials/internal/models"
)

// ResetPayload is the body of a mail.password_reset job.
type ResetPayload struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

// ResetHandler renders and sends password reset emails from queued jobs.
type ResetHandler struct {
	sender       Sender
	resetURLBase string
	validFor     time.Duration
	logger       *slog.Logger
}

func NewResetHandler(sender Sender, resetURLBase string, validFor time.Duration, logger *slog.Logger) *ResetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetHandler{sender: sender, resetURLBase: resetURLBase, validFor: validFor, logger: logger}
}

// Handle matches jobs.Handler.
func (h *ResetHandler) Handle(ctx context.Context, j *models.BackgroundJob) error {
	var p ResetPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode reset payload: %w", err)
	}
	if p.Email == "" || p.Token == "" {
		return fmt.Errorf("reset payload for job %d is incomplete", j.ID)
	}

	msg, err := RenderReset(p.Email, p.Role, h.resetURLBase, p.Token, h.validFor)
	if err != nil {
		return err
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		h.logger.Error("reset email delivery failed", "job_id", j.ID, "to", p.Email, "err", err)
		return err
	}

	return nil
}
