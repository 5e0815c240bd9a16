package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// Mailer is the narrow contract to the notification channel. Delivery
// failures must come back as errors so callers can roll back any state
// that only makes sense once the message is out (e.g. reset tokens).
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, recipient, subject, body string) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, recipient, subject, body string) error {
	if f == nil {
		return goerrors.New("mailer is not configured", goerrors.CategoryOperation)
	}
	return f(ctx, recipient, subject, body)
}

// logMailer writes outgoing mail to the logger instead of a transport.
// It is the default so local setups work without SMTP credentials.
type logMailer struct {
	logger Logger
}

func (m logMailer) Send(_ context.Context, recipient, subject, body string) error {
	m.logger.Info("sending email notification", "to", recipient, "subject", subject, "body", body)
	return nil
}

func normalizeMailer(m Mailer, logger Logger) Mailer {
	if m != nil {
		return m
	}
	if logger == nil {
		logger = defLogger{}
	}
	return logMailer{logger: logger}
}

// IsDeliveryError reports whether the error came from the notification channel.
func IsDeliveryError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == TextCodeResetDeliveryFailed
}
