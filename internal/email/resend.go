package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// sendViaResend delivers one message through the Resend API. Confirmation
// mail is fire-and-forget upstream, so a rate limited response is logged and
// returned as an error rather than retried here.
func (s *Service) sendViaResend(ctx context.Context, to, subject, htmlBody string) error {
	if s.resendClient == nil {
		return fmt.Errorf("resend transport not configured")
	}

	req := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, req)
	if err != nil {
		var limitErr *resend.RateLimitError
		if errors.As(err, &limitErr) {
			s.logger.Warn().
				Str("limit", limitErr.Limit).
				Str("remaining", limitErr.Remaining).
				Str("reset", limitErr.Reset).
				Str("to", to).
				Msg("resend throttled the send")
			return fmt.Errorf("resend rate limited, resets in %ss: %w", limitErr.Reset, err)
		}
		return fmt.Errorf("resend send: %w", err)
	}

	s.logger.Info().
		Str("message_id", sent.Id).
		Str("to", to).
		Msg("delivered via resend")
	return nil
}
