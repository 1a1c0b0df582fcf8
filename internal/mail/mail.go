package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/garnizeh/skilltrials/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const resetSubject = "Hello from skilltrials"

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an SMTP relay with STARTTLS.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *slog.Logger
}

func NewSMTPSender(cfg config.MailConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		logger: logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	s.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)

	return nil
}

type resetData struct {
	Email     string
	Role      string
	ResetLink string
	ValidFor  string
}

// RenderReset builds the password reset email for email with a link ending in token.
func RenderReset(email, role, resetURLBase, token string, validFor time.Duration) (Message, error) {
	data := resetData{
		Email:     email,
		Role:      role,
		ResetLink: resetURLBase + token,
		ValidFor:  validFor.String(),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "reset_password.html", data); err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}

	return Message{To: email, Subject: resetSubject, HTML: buf.String()}, nil
}
