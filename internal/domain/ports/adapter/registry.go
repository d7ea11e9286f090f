package adapter

import "context"

// SessionRegistry holds short-lived session artifacts (currently QR codes)
// keyed by session id.
type SessionRegistry interface {
	SetQRCode(ctx context.Context, sessionID, qr string) error
	GetQRCode(ctx context.Context, sessionID string) (string, error)
	DeleteQRCode(ctx context.Context, sessionID string) error
}
