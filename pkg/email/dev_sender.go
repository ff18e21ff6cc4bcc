package email

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
)

type logSender struct {
	log *slog.Logger
}

// NewLogSender logs recipient, subject and tag instead of delivering.
func NewLogSender(log *slog.Logger) EmailSender {
	if log == nil {
		log = slog.Default()
	}
	return &logSender{log: log}
}

func (s *logSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email suppressed in dev mode",
		logger.Component("email"),
		slog.String("to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
	)
	return nil
}

// Memory records messages in memory and can be told to fail.
type Memory struct {
	mu   sync.Mutex
	sent []SendEmailParams
	err  error
}

func NewMemory() *Memory { return &Memory{} }

// FailWith makes subsequent sends return err.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, params)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *Memory) Sent() []SendEmailParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SendEmailParams(nil), m.sent...)
}
