package model

import "time"

type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "sent"
	MessageStatusFailed MessageStatus = "failed"
)

// MessageHistory is an append-only record of one outbound user message.
// Used for reporting only, never for decision logic.
type MessageHistory struct {
	ID              string // ULID
	ChipID          int64
	UserID          int64
	RecipientNumber string
	MessageContent  string
	Status          MessageStatus
	ErrorMessage    string
	SentAt          time.Time
}
