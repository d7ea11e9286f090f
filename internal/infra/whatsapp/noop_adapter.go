package whatsapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"sentinelzap/internal/domain/ports/adapter"
)

var _ adapter.WhatsAppAdapter = (*NoopAdapter)(nil)

// NoopAdapter is an in-memory transport used in tests and when running
// without a real WhatsApp bridge. Sends always succeed; initialized sessions
// are tracked so IsSessionActive behaves consistently.
type NoopAdapter struct {
	mu     sync.Mutex
	seq    int64
	active map[string]bool
	logger zerolog.Logger
}

func NewNoopAdapter(logger *zerolog.Logger) *NoopAdapter {
	return &NoopAdapter{
		active: make(map[string]bool),
		logger: logger.With().Str("component", "noop_whatsapp").Logger(),
	}
}

func (a *NoopAdapter) SendMessage(ctx context.Context, sessionID, phoneNumber, message string) (adapter.SendResult, error) {
	a.mu.Lock()
	a.seq++
	id := fmt.Sprintf("noop-%d", a.seq)
	a.mu.Unlock()

	a.logger.Debug().Str("session_id", sessionID).Str("to", phoneNumber).Msg("noop send")
	return adapter.SendResult{Success: true, MessageID: id}, nil
}

func (a *NoopAdapter) InitializeSession(ctx context.Context, sessionID string) (adapter.InitResult, error) {
	a.mu.Lock()
	a.active[sessionID] = true
	a.mu.Unlock()

	a.logger.Debug().Str("session_id", sessionID).Msg("noop init")
	return adapter.InitResult{Success: true}, nil
}

func (a *NoopAdapter) IsSessionActive(ctx context.Context, sessionID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[sessionID], nil
}

func (a *NoopAdapter) DisconnectSession(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	delete(a.active, sessionID)
	a.mu.Unlock()
	return nil
}
