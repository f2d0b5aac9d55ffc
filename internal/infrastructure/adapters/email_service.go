package adapters

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/raffle-service/raffle_service/internal/infrastructure/config"
	"github.com/raffle-service/raffle_service/pkg/logger"
)

// EmailService sends operator alerts through SendGrid. It is the fallback
// channel when the admin Telegram chat is unreachable.
type EmailService struct {
	client   *sendgrid.Client
	from     *mail.Email
	operator *mail.Email
	logger   *logger.Logger
}

// NewEmailService creates the operator email channel. Returns nil when no
// API key is configured; callers treat a nil service as "no fallback".
func NewEmailService(cfg config.EmailConfig, log *logger.Logger) *EmailService {
	if cfg.SendGridAPIKey == "" || cfg.OperatorEmail == "" {
		return nil
	}
	return &EmailService{
		client:   sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:     mail.NewEmail(cfg.FromName, cfg.FromEmail),
		operator: mail.NewEmail("", cfg.OperatorEmail),
		logger:   log,
	}
}

// SendOperatorAlert delivers a plain-text alert to the operator address
func (s *EmailService) SendOperatorAlert(ctx context.Context, subject, body string) error {
	msg := mail.NewSingleEmail(s.from, subject, s.operator, body, body)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send operator email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected operator email: status %d", resp.StatusCode)
	}
	s.logger.Info("Operator alert emailed", "subject", subject)
	return nil
}
