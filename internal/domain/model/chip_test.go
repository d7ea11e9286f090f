package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewChip(t *testing.T) {
	t.Parallel()

	chip, err := NewChip(1, "chip-a", "+5511999990000", "sess-1")
	if err != nil {
		t.Fatalf("NewChip returned error: %v", err)
	}
	if chip.Status != ChipStatusOffline {
		t.Fatalf("expected new chip offline, got %s", chip.Status)
	}
	if chip.DailyLimit != 100 || chip.TotalLimit != 1000 {
		t.Fatalf("unexpected default limits: %d/%d", chip.DailyLimit, chip.TotalLimit)
	}
	if chip.WarmupStatus != WarmupStatusNotStarted {
		t.Fatalf("expected warmup not_started, got %s", chip.WarmupStatus)
	}

	if _, err := NewChip(0, "x", "y", "z"); err == nil {
		t.Fatalf("expected error for zero user id")
	}
	if _, err := NewChip(1, "", "y", "z"); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestCalculateRiskScore(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name string
		chip Chip
		want int
	}{
		{
			name: "fresh connected chip",
			chip: Chip{DailyLimit: 100, TotalLimit: 1000, IsConnected: true},
			want: 0,
		},
		{
			// daily 95/100 -> +40, total 100/1000 -> 0, disconnected -> +10
			name: "near daily limit and disconnected",
			chip: Chip{DailyLimit: 100, TotalLimit: 1000, MessagesSentToday: 95, MessagesSentTotal: 100},
			want: 50,
		},
		{
			name: "half daily usage",
			chip: Chip{DailyLimit: 100, TotalLimit: 1000, MessagesSentToday: 50, IsConnected: true},
			want: 20,
		},
		{
			name: "quarter daily usage",
			chip: Chip{DailyLimit: 100, TotalLimit: 1000, MessagesSentToday: 25, IsConnected: true},
			want: 10,
		},
		{
			name: "total usage tiers stack with daily",
			chip: Chip{DailyLimit: 100, TotalLimit: 100, MessagesSentToday: 90, MessagesSentTotal: 90, IsConnected: true},
			want: 70,
		},
		{
			name: "zero limits treated as fully used",
			chip: Chip{DailyLimit: 0, TotalLimit: 0, IsConnected: true},
			want: 70,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CalculateRiskScore(&tc.chip, now); got != tc.want {
				t.Fatalf("expected score %d got %d", tc.want, got)
			}
		})
	}
}

func TestCalculateRiskScore_Recency(t *testing.T) {
	t.Parallel()

	now := time.Now()
	justNow := now.Add(-30 * time.Second)
	threeMin := now.Add(-3 * time.Minute)
	tenMin := now.Add(-10 * time.Minute)

	chip := Chip{DailyLimit: 100, TotalLimit: 1000, IsConnected: true}

	chip.LastMessageAt = &justNow
	if got := CalculateRiskScore(&chip, now); got != 20 {
		t.Fatalf("under a minute: expected 20 got %d", got)
	}
	chip.LastMessageAt = &threeMin
	if got := CalculateRiskScore(&chip, now); got != 10 {
		t.Fatalf("under five minutes: expected 10 got %d", got)
	}
	chip.LastMessageAt = &tenMin
	if got := CalculateRiskScore(&chip, now); got != 0 {
		t.Fatalf("older than five minutes: expected 0 got %d", got)
	}
}

func TestCalculateRiskScore_CapsAt100(t *testing.T) {
	t.Parallel()

	now := time.Now()
	last := now.Add(-10 * time.Second)
	chip := Chip{
		DailyLimit: 100, TotalLimit: 100,
		MessagesSentToday: 100, MessagesSentTotal: 100,
		LastMessageAt: &last,
	}
	// 40 + 30 + 20 + 10 = 100, never above
	if got := CalculateRiskScore(&chip, now); got != 100 {
		t.Fatalf("expected cap at 100 got %d", got)
	}
}

func TestShouldPauseChip_Precedence(t *testing.T) {
	t.Parallel()

	now := time.Now()

	// High risk wins over the plain limit reasons.
	last := now.Add(-10 * time.Second)
	hot := Chip{DailyLimit: 100, TotalLimit: 100, MessagesSentToday: 100, MessagesSentTotal: 100, IsConnected: true, LastMessageAt: &last}
	d := ShouldPauseChip(&hot, now)
	if !d.ShouldPause || !strings.Contains(d.Reason, "high ban risk") {
		t.Fatalf("expected high-risk pause, got %+v", d)
	}

	// Daily limit reached but risk below 80.
	daily := Chip{DailyLimit: 10, TotalLimit: 1000, MessagesSentToday: 10, MessagesSentTotal: 10, IsConnected: true}
	if got := CalculateRiskScore(&daily, now); got >= 80 {
		t.Fatalf("fixture invalid: risk %d", got)
	}
	d = ShouldPauseChip(&daily, now)
	if !d.ShouldPause || !strings.Contains(d.Reason, "daily limit of 10") {
		t.Fatalf("expected daily-limit pause, got %+v", d)
	}

	// Disconnected chip with spare budget.
	offline := Chip{DailyLimit: 100, TotalLimit: 1000}
	d = ShouldPauseChip(&offline, now)
	if !d.ShouldPause || !strings.Contains(d.Reason, "not connected") {
		t.Fatalf("expected disconnect pause, got %+v", d)
	}

	// Healthy chip keeps sending.
	ok := Chip{DailyLimit: 100, TotalLimit: 1000, MessagesSentToday: 5, IsConnected: true}
	if d = ShouldPauseChip(&ok, now); d.ShouldPause {
		t.Fatalf("expected no pause, got %+v", d)
	}
}

func TestWarmed(t *testing.T) {
	t.Parallel()

	c := Chip{WarmupStatus: WarmupStatusCompleted}
	if !c.Warmed() {
		t.Fatalf("completed chip should be warmed")
	}
	c.WarmupStatus = WarmupStatusSkipped
	if !c.Warmed() {
		t.Fatalf("skipped chip should be warmed")
	}
	c.WarmupStatus = WarmupStatusInProgress
	if c.Warmed() {
		t.Fatalf("in-progress chip should not be warmed")
	}
}
