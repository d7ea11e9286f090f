package model

import (
	"fmt"
	"time"

	"sentinelzap/internal/domain"
)

type ChipStatus string

const (
	ChipStatusActive  ChipStatus = "active"
	ChipStatusPaused  ChipStatus = "paused"
	ChipStatusOffline ChipStatus = "offline"
	ChipStatusError   ChipStatus = "error"
)

type WarmupStatus string

const (
	WarmupStatusNotStarted WarmupStatus = "not_started"
	WarmupStatusInProgress WarmupStatus = "in_progress"
	WarmupStatusCompleted  WarmupStatus = "completed"
	WarmupStatusSkipped    WarmupStatus = "skipped"
)

// Chip is one managed WhatsApp sending identity/session.
type Chip struct {
	ID          int64
	UserID      int64
	Name        string
	PhoneNumber string
	SessionID   string

	Status          ChipStatus
	IsConnected     bool
	LastConnectedAt *time.Time

	DailyLimit        int
	TotalLimit        int
	MessagesSentToday int
	MessagesSentTotal int
	LastMessageAt     *time.Time

	RiskScore    int // 0-100
	PausedReason string

	WarmupStatus        WarmupStatus
	WarmupStartDate     *time.Time
	WarmupEndDate       *time.Time
	WarmupCurrentDay    int
	WarmupMessagesToday int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChip creates a chip in its initial state: offline, zero counters,
// warmup not started.
func NewChip(userID int64, name, phoneNumber, sessionID string) (*Chip, error) {
	if userID == 0 || name == "" || phoneNumber == "" || sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Chip{
		UserID:       userID,
		Name:         name,
		PhoneNumber:  phoneNumber,
		SessionID:    sessionID,
		Status:       ChipStatusOffline,
		DailyLimit:   100,
		TotalLimit:   1000,
		WarmupStatus: WarmupStatusNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Warmed reports whether the chip has finished (or skipped) its warmup ramp.
func (c *Chip) Warmed() bool {
	return c.WarmupStatus == WarmupStatusCompleted || c.WarmupStatus == WarmupStatusSkipped
}

// CalculateRiskScore estimates the ban risk of a chip on a 0-100 scale.
//
// Additive factors, capped at 100:
//   - daily usage percentage (0-40)
//   - total usage percentage (0-30)
//   - recency of the last sent message (0-20)
//   - connection status (0-10)
func CalculateRiskScore(c *Chip, now time.Time) int {
	score := 0

	dailyPct := usagePercent(c.MessagesSentToday, c.DailyLimit)
	switch {
	case dailyPct >= 90:
		score += 40
	case dailyPct >= 75:
		score += 30
	case dailyPct >= 50:
		score += 20
	case dailyPct >= 25:
		score += 10
	}

	totalPct := usagePercent(c.MessagesSentTotal, c.TotalLimit)
	switch {
	case totalPct >= 90:
		score += 30
	case totalPct >= 75:
		score += 20
	case totalPct >= 50:
		score += 10
	}

	if c.LastMessageAt != nil {
		minutes := now.Sub(*c.LastMessageAt).Minutes()
		if minutes < 1 {
			score += 20
		} else if minutes < 5 {
			score += 10
		}
	}

	if !c.IsConnected {
		score += 10
	}

	if score > 100 {
		return 100
	}
	return score
}

// usagePercent treats a non-positive limit as fully used: a chip that is not
// allowed to send anything is always over its budget.
func usagePercent(sent, limit int) float64 {
	if limit <= 0 {
		return 100
	}
	return float64(sent) / float64(limit) * 100
}

// PauseDecision is the outcome of the pause policy for a single chip.
type PauseDecision struct {
	ShouldPause bool
	Reason      string
}

// ShouldPauseChip decides whether a chip must stop sending. The conditions
// are checked in order of severity; the first match supplies the reason.
func ShouldPauseChip(c *Chip, now time.Time) PauseDecision {
	risk := CalculateRiskScore(c, now)

	if risk >= 80 {
		return PauseDecision{
			ShouldPause: true,
			Reason:      fmt.Sprintf("high ban risk (%d/100): daily or total limit almost reached", risk),
		}
	}

	if c.MessagesSentToday >= c.DailyLimit {
		return PauseDecision{
			ShouldPause: true,
			Reason:      fmt.Sprintf("daily limit of %d messages reached", c.DailyLimit),
		}
	}

	if c.MessagesSentTotal >= c.TotalLimit {
		return PauseDecision{
			ShouldPause: true,
			Reason:      fmt.Sprintf("total limit of %d messages reached", c.TotalLimit),
		}
	}

	if !c.IsConnected {
		return PauseDecision{
			ShouldPause: true,
			Reason:      "chip is not connected to WhatsApp",
		}
	}

	return PauseDecision{}
}
