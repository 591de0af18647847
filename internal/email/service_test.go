package email

import (
	"context"
	"testing"

	"github.com/gatherly/server/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDisabledServiceReportsSuccess(t *testing.T) {
	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, svc.Send(context.Background(), "a@example.com", "Hello", "<p>hi</p>"))
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)

	require.Error(t, svc.Send(context.Background(), "not-an-address", "Hello", "<p>hi</p>"))
}

func TestSendRejectsHeaderInjection(t *testing.T) {
	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)

	require.Error(t, svc.Send(context.Background(), "a@example.com\r\nBcc: b@example.com", "Hello", "<p>hi</p>"))
}

func TestSendWithoutResendClientFails(t *testing.T) {
	svc := &Service{
		config: config.EmailConfig{
			Enabled:  true,
			Provider: "resend",
			From:     "events@example.com",
		},
		logger: zerolog.Nop(),
	}

	err := svc.Send(context.Background(), "a@example.com", "Hello", "<p>hi</p>")
	require.ErrorContains(t, err, "resend transport not configured")
}

func TestNewServiceValidatesEnabledConfig(t *testing.T) {
	_, err := NewService(config.EmailConfig{
		Enabled:  true,
		Provider: "smtp",
		From:     "not-an-address",
		SMTPHost: "smtp.example.com",
	}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewService(config.EmailConfig{
		Enabled:  true,
		Provider: "resend",
		From:     "events@example.com",
	}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewService(config.EmailConfig{
		Enabled:  true,
		Provider: "carrier-pigeon",
		From:     "events@example.com",
	}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewService(config.EmailConfig{
		Enabled:      true,
		Provider:     "resend",
		From:         "events@example.com",
		ResendAPIKey: "re_test",
	}, zerolog.Nop())
	require.NoError(t, err)
}
