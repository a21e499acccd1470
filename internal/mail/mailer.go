package mail

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Mailer delivers transactional mail. Delivery is handled by an external
// collaborator; failures are best-effort from the caller's perspective.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetToken string) error
}

// LogMailer writes mail events to the log instead of dispatching them.
// Used in development and as the default when no provider is configured.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, resetToken string) error {
	prefix := resetToken
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info().
		Str("email", email).
		Str("token_prefix", prefix+"...").
		Msg("password reset mail dispatched")
	return nil
}
