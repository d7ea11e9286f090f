package adapter

import "context"

// SendResult is the transport outcome of one message attempt.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// InitResult is the outcome of one session initialization attempt. QRCode is
// set when the session is waiting for the user to scan.
type InitResult struct {
	Success bool
	QRCode  string
	Error   string
}

// WhatsAppAdapter is the port to the underlying WhatsApp transport.
type WhatsAppAdapter interface {
	SendMessage(ctx context.Context, sessionID, phoneNumber, message string) (SendResult, error)
	InitializeSession(ctx context.Context, sessionID string) (InitResult, error)
	IsSessionActive(ctx context.Context, sessionID string) (bool, error)
	DisconnectSession(ctx context.Context, sessionID string) error
}
