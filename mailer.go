package auth

import (
	"context"
	"fmt"
)

// logMailer is the default Mailer: it prints the outbound message instead of
// delivering it. Production wiring swaps in a real dispatcher.
type logMailer struct {
	logger Logger
}

func (m logMailer) Send(_ context.Context, mail Mail) error {
	logger := m.logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("outbound mail to %s [%s]\n%s", mail.To, mail.Subject, mail.Body)
	return nil
}

func verificationMail(publicURL, email, token string) Mail {
	return Mail{
		To:      email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf(
			"Welcome! Confirm your email address by opening the link below.\n\n%s/verify-email/%s\n\nThe link expires in 20 minutes.",
			publicURL, token,
		),
	}
}

func passwordResetMail(publicURL, email, token string) Mail {
	return Mail{
		To:      email,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"We received a request to reset your password. Open the link below to pick a new one.\n\n%s/reset-password/%s\n\nThe link expires in 20 minutes. If you did not request this, ignore this message.",
			publicURL, token,
		),
	}
}
