package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// TicketConfirmationEmailData holds data for the ticket confirmation email.
type TicketConfirmationEmailData struct {
	Email        string
	Name         string
	EventName    string
	TicketID     string
	Amount       string // formatted, e.g. "18.00 USD"
	DiscountCode string
}

// RefundNoticeEmailData holds data for the refund notice email.
type RefundNoticeEmailData struct {
	Email     string
	Name      string
	EventName string
	PaymentID string
	Amount    string
	Reason    string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendTicketConfirmation(ctx context.Context, data *TicketConfirmationEmailData) error
	SendRefundNotice(ctx context.Context, data *RefundNoticeEmailData) error
}
