package services

import (
	"context"
	"fmt"
	"log/slog"

	"smartevents/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendTicketConfirmation sends the "ticket_confirmation" email after a completed checkout.
func (s *emailService) SendTicketConfirmation(ctx context.Context, data *domain.TicketConfirmationEmailData) error {
	if data == nil {
		return fmt.Errorf("ticket confirmation data is nil")
	}
	if err := s.send(ctx, "ticket_confirmation", data.Email, data); err != nil {
		return fmt.Errorf("send ticket confirmation: %w", err)
	}
	s.logger.InfoContext(ctx, "ticket confirmation sent", "ticket_id", data.TicketID)
	return nil
}

// SendRefundNotice sends the "refund_notice" email after a compensating refund.
func (s *emailService) SendRefundNotice(ctx context.Context, data *domain.RefundNoticeEmailData) error {
	if data == nil {
		return fmt.Errorf("refund notice data is nil")
	}
	if err := s.send(ctx, "refund_notice", data.Email, data); err != nil {
		return fmt.Errorf("send refund notice: %w", err)
	}
	s.logger.InfoContext(ctx, "refund notice sent", "payment_id", data.PaymentID)
	return nil
}

func (s *emailService) send(ctx context.Context, template, to string, data any) error {
	if to == "" {
		return fmt.Errorf("recipient is empty")
	}
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("render %s template: %w", template, err)
	}
	return s.mailer.Send(ctx, to, subject, htmlBody, textBody)
}

// formatAmount renders minor units as "18.00 USD". Every accepted currency has two decimals.
func formatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}
