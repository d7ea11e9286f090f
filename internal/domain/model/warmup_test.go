package model

import "testing"

func TestWarmupSettings_Phase(t *testing.T) {
	t.Parallel()

	s := DefaultWarmupSettings(1) // 3/4/7 days, 15/40/75 per day

	cases := []struct {
		day       int
		wantPhase int
		wantQuota int
	}{
		{1, 1, 15},
		{3, 1, 15},
		{4, 2, 40},
		{7, 2, 40},
		{8, 3, 75},
		{14, 3, 75},
		{20, 3, 75}, // past the nominal duration stays in phase 3
	}
	for _, tc := range cases {
		phase, quota := s.Phase(tc.day)
		if phase != tc.wantPhase || quota != tc.wantQuota {
			t.Fatalf("day %d: expected phase %d quota %d, got %d/%d",
				tc.day, tc.wantPhase, tc.wantQuota, phase, quota)
		}
	}
}

func TestWarmupSettings_Validate(t *testing.T) {
	t.Parallel()

	good := DefaultWarmupSettings(1)
	if err := good.Validate(); err != nil {
		t.Fatalf("default settings should validate: %v", err)
	}

	bad := []func(*WarmupSettings){
		func(s *WarmupSettings) { s.DurationDays = 6 },
		func(s *WarmupSettings) { s.DurationDays = 31 },
		func(s *WarmupSettings) { s.Phase1MessagesPerDay = 4 },
		func(s *WarmupSettings) { s.Phase2MessagesPerDay = 101 },
		func(s *WarmupSettings) { s.Phase3MessagesPerDay = 19 },
		func(s *WarmupSettings) { s.Phase1Duration = 0 },
		func(s *WarmupSettings) { s.Phase3Duration = 21 },
	}
	for i, mutate := range bad {
		s := DefaultWarmupSettings(1)
		mutate(s)
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestDefaultWarmupSettings(t *testing.T) {
	t.Parallel()

	s := DefaultWarmupSettings(42)
	if s.UserID != 42 {
		t.Fatalf("expected user 42, got %d", s.UserID)
	}
	if s.DurationDays != 14 {
		t.Fatalf("expected 14-day ramp, got %d", s.DurationDays)
	}
	if s.Phase1Duration+s.Phase2Duration+s.Phase3Duration != s.DurationDays {
		t.Fatalf("phase durations should add up to the total duration")
	}
	if s.BlockUnwarmedChips {
		t.Fatalf("blocking unwarmed chips must be opt-in")
	}
}
