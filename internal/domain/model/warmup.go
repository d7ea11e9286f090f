package model

import (
	"time"

	"sentinelzap/internal/domain"
)

// WarmupSettings is the per-user configuration of the warmup ramp. Exactly
// one record exists per user; it is created lazily with defaults on first
// read.
type WarmupSettings struct {
	ID     int64
	UserID int64

	DurationDays int

	Phase1MessagesPerDay int
	Phase2MessagesPerDay int
	Phase3MessagesPerDay int

	Phase1Duration int
	Phase2Duration int
	Phase3Duration int

	// BlockUnwarmedChips excludes chips that have not completed (or skipped)
	// warmup from rotation.
	BlockUnwarmedChips bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultWarmupSettings returns the recommended 14-day ramp.
func DefaultWarmupSettings(userID int64) *WarmupSettings {
	now := time.Now()
	return &WarmupSettings{
		UserID:               userID,
		DurationDays:         14,
		Phase1MessagesPerDay: 15,
		Phase2MessagesPerDay: 40,
		Phase3MessagesPerDay: 75,
		Phase1Duration:       3,
		Phase2Duration:       4,
		Phase3Duration:       7,
		BlockUnwarmedChips:   false,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Validate checks the ranges accepted for user-supplied settings.
func (s *WarmupSettings) Validate() error {
	switch {
	case s.DurationDays < 7 || s.DurationDays > 30,
		s.Phase1MessagesPerDay < 5 || s.Phase1MessagesPerDay > 50,
		s.Phase2MessagesPerDay < 10 || s.Phase2MessagesPerDay > 100,
		s.Phase3MessagesPerDay < 20 || s.Phase3MessagesPerDay > 150,
		s.Phase1Duration < 1 || s.Phase1Duration > 10,
		s.Phase2Duration < 1 || s.Phase2Duration > 10,
		s.Phase3Duration < 1 || s.Phase3Duration > 20:
		return domain.ErrInvalidArgument
	}
	return nil
}

// Phase maps a warmup day to its phase (1..3) and the daily message quota
// for that phase.
func (s *WarmupSettings) Phase(currentDay int) (phase, messagesPerDay int) {
	switch {
	case currentDay <= s.Phase1Duration:
		return 1, s.Phase1MessagesPerDay
	case currentDay <= s.Phase1Duration+s.Phase2Duration:
		return 2, s.Phase2MessagesPerDay
	default:
		return 3, s.Phase3MessagesPerDay
	}
}

type WarmupMessageStatus string

const (
	WarmupMessageSent   WarmupMessageStatus = "sent"
	WarmupMessageFailed WarmupMessageStatus = "failed"
)

// WarmupHistory is an append-only record of one warmup message attempt.
// Rows are never mutated after insert.
type WarmupHistory struct {
	ID              string // ULID
	ChipID          int64
	UserID          int64
	SenderChipID    int64
	RecipientNumber string
	MessageContent  string
	Status          WarmupMessageStatus
	ErrorMessage    string
	WarmupPhase     int
	WarmupDay       int
	SentAt          time.Time
}
