package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"

	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
)

func activeChip(t *testing.T, repo *memChipRepo, userID int64, name string) *model.Chip {
	t.Helper()
	chip, err := model.NewChip(userID, name, "+55119999"+name, "sess-"+name)
	if err != nil {
		t.Fatalf("new chip: %v", err)
	}
	chip.Status = model.ChipStatusActive
	chip.IsConnected = true
	if err := repo.Create(context.Background(), nil, chip); err != nil {
		t.Fatalf("create chip: %v", err)
	}
	return chip
}

func newRotation(repo *memChipRepo) (*rotationUC, *memSettingsRepo, *memMessageHistRepo, *mockWhatsApp, *mockNotifier, *mockPublisher) {
	settings := newMemSettingsRepo()
	messages := newMemMessageHistRepo()
	wa := &mockWhatsApp{}
	notifier := &mockNotifier{}
	events := &mockPublisher{}
	uc := NewRotationUseCase(repo, settings, messages, wa, notifier, events, nil, testLogger())
	return uc, settings, messages, wa, notifier, events
}

func TestSelectChipForRotation_PicksLowestRisk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	// risk 20 (50% daily)
	a := activeChip(t, repo, 1, "a")
	a.MessagesSentToday = 50
	_ = repo.Update(ctx, nil, a)

	// risk 0
	b := activeChip(t, repo, 1, "b")
	b.MessagesSentToday = 10
	_ = repo.Update(ctx, nil, b)

	// risk 10 (25% daily)
	c := activeChip(t, repo, 1, "c")
	c.MessagesSentToday = 25
	_ = repo.Update(ctx, nil, c)

	chip, reason, err := uc.SelectChipForRotation(ctx, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if chip == nil {
		t.Fatalf("expected a chip, got reason %q", reason)
	}
	if chip.ID != b.ID {
		t.Fatalf("expected chip b (lowest risk), got %s", chip.Name)
	}
	// the reason names the choice with its risk and usage
	for _, want := range []string{`"b"`, "risk 0/100", "today 10/100"} {
		if !strings.Contains(reason, want) {
			t.Fatalf("reason %q missing %q", reason, want)
		}
	}
}

func TestSelectChipForRotation_TieBreakByTodayUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	// Both at risk 0 but different counters under the 25% tier.
	a := activeChip(t, repo, 1, "a")
	a.MessagesSentToday = 20
	_ = repo.Update(ctx, nil, a)

	b := activeChip(t, repo, 1, "b")
	b.MessagesSentToday = 5
	_ = repo.Update(ctx, nil, b)

	chip, _, err := uc.SelectChipForRotation(ctx, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if chip == nil || chip.ID != b.ID {
		t.Fatalf("expected least-used chip b, got %+v", chip)
	}
}

func TestSelectChipForRotation_NoChips(t *testing.T) {
	t.Parallel()

	uc, _, _, _, _, _ := newRotation(newMemChipRepo())
	chip, reason, err := uc.SelectChipForRotation(context.Background(), 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if chip != nil {
		t.Fatalf("expected no chip")
	}
	if reason != "no active chip available" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestSelectChipForRotation_AutoPausesAndReportsExhaustion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, notifier, events := newRotation(repo)

	chip := activeChip(t, repo, 1, "a")
	chip.MessagesSentToday = 100 // daily limit reached
	_ = repo.Update(ctx, nil, chip)

	got, reason, err := uc.SelectChipForRotation(ctx, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no candidate")
	}
	if reason != "all chips exhausted or high risk, system paused" {
		t.Fatalf("unexpected reason %q", reason)
	}

	// The exhausted chip was persisted as paused, with a reason.
	stored := repo.get(chip.ID)
	if stored.Status != model.ChipStatusPaused {
		t.Fatalf("expected stored chip paused, got %s", stored.Status)
	}
	if !strings.Contains(stored.PausedReason, "daily limit") {
		t.Fatalf("unexpected paused reason %q", stored.PausedReason)
	}
	if len(notifier.paused) != 1 {
		t.Fatalf("expected one pause notification, got %d", len(notifier.paused))
	}
	if got := events.byName(model.EventChipPaused); len(got) != 1 {
		t.Fatalf("expected one chip.paused event, got %d", len(got))
	}
}

func TestSelectChipForRotation_BlockUnwarmedChips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, settings, _, _, _, _ := newRotation(repo)

	s := model.DefaultWarmupSettings(1)
	s.BlockUnwarmedChips = true
	if err := settings.Save(ctx, nil, s); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	cold := activeChip(t, repo, 1, "cold") // warmup not_started
	warm := activeChip(t, repo, 1, "warm")
	warm.WarmupStatus = model.WarmupStatusCompleted
	warm.MessagesSentToday = 30 // higher risk than cold
	_ = repo.Update(ctx, nil, warm)

	chip, _, err := uc.SelectChipForRotation(ctx, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if chip == nil || chip.ID != warm.ID {
		t.Fatalf("expected warmed chip despite higher risk, got %+v", chip)
	}
	_ = cold
}

func TestSendViaRotation_RecordsAndIncrements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, messages, wa, _, events := newRotation(repo)

	chip := activeChip(t, repo, 1, "a")

	out, err := uc.SendViaRotation(ctx, 1, "+5511988887777", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Sent || out.ChipID != chip.ID {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if wa.sendCount() != 1 {
		t.Fatalf("expected one transport send, got %d", wa.sendCount())
	}

	stored := repo.get(chip.ID)
	if stored.MessagesSentToday != 1 || stored.MessagesSentTotal != 1 {
		t.Fatalf("counters not incremented: %d/%d", stored.MessagesSentToday, stored.MessagesSentTotal)
	}
	if stored.LastMessageAt == nil {
		t.Fatalf("last message timestamp not set")
	}

	hist, _ := messages.FindByChip(ctx, nil, chip.ID, 10)
	if len(hist) != 1 || hist[0].Status != model.MessageStatusSent {
		t.Fatalf("unexpected history %+v", hist)
	}
	if got := events.byName(model.EventMessageSent); len(got) != 1 {
		t.Fatalf("expected one message.sent event, got %d", len(got))
	}
}

func TestSendViaRotation_TransportFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, messages, wa, _, _ := newRotation(repo)
	wa.SendFn = func(ctx context.Context, sessionID, phoneNumber, message string) (adapter.SendResult, error) {
		return adapter.SendResult{Success: false, Error: "connection reset"}, nil
	}

	chip := activeChip(t, repo, 1, "a")

	out, err := uc.SendViaRotation(ctx, 1, "+5511988887777", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Sent {
		t.Fatalf("expected failed outcome")
	}
	if out.Reason != "connection reset" {
		t.Fatalf("unexpected reason %q", out.Reason)
	}

	stored := repo.get(chip.ID)
	if stored.MessagesSentToday != 0 {
		t.Fatalf("failed send must not consume budget")
	}
	hist, _ := messages.FindByChip(ctx, nil, chip.ID, 10)
	if len(hist) != 1 || hist[0].Status != model.MessageStatusFailed {
		t.Fatalf("expected one failed history entry, got %+v", hist)
	}
}

func TestIncrementChipCounters_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	chip := activeChip(t, repo, 1, "a")
	chip.DailyLimit = 1000
	chip.TotalLimit = 10000
	_ = repo.Update(ctx, nil, chip)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := uc.IncrementChipCounters(ctx, chip.ID); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	stored := repo.get(chip.ID)
	if stored.MessagesSentToday != n {
		t.Fatalf("lost updates: expected %d got %d", n, stored.MessagesSentToday)
	}
	if stored.MessagesSentTotal != n {
		t.Fatalf("lost updates: expected total %d got %d", n, stored.MessagesSentTotal)
	}
}

func TestIncrementChipCounters_PausesAtDailyLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, notifier, events := newRotation(repo)

	chip := activeChip(t, repo, 1, "a")
	chip.DailyLimit = 10
	chip.MessagesSentToday = 9
	_ = repo.Update(ctx, nil, chip)

	if err := uc.IncrementChipCounters(ctx, chip.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}

	stored := repo.get(chip.ID)
	if stored.Status != model.ChipStatusPaused {
		t.Fatalf("expected paused, got %s", stored.Status)
	}
	if len(notifier.paused) != 1 {
		t.Fatalf("expected pause notification")
	}
	evts := events.byName(model.EventChipPaused)
	if len(evts) != 1 {
		t.Fatalf("expected chip.paused event")
	}
	payload, ok := evts[0].payload.(model.ChipPausedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", evts[0].payload)
	}
	if payload.MessagesSentToday != 10 || payload.DailyLimit != 10 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestIncrementChipCounters_NearLimitNotification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, notifier, _ := newRotation(repo)

	chip := activeChip(t, repo, 1, "a")
	chip.DailyLimit = 100
	chip.TotalLimit = 100000
	chip.MessagesSentToday = 89
	_ = repo.Update(ctx, nil, chip)

	if err := uc.IncrementChipCounters(ctx, chip.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}

	stored := repo.get(chip.ID)
	if stored.Status != model.ChipStatusActive {
		t.Fatalf("90%% usage must warn, not pause; got %s (%s)", stored.Status, stored.PausedReason)
	}
	if len(notifier.nearLimit) != 1 || notifier.nearLimit[0] != 90 {
		t.Fatalf("expected near-limit notification at 90%%, got %v", notifier.nearLimit)
	}
}

func TestPauseChip_RereadsBeforePausing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, notifier, _ := newRotation(repo)

	// A healthy chip is left alone even when a pause is requested from a
	// stale view of its state.
	healthy := activeChip(t, repo, 1, "a")
	uc.pauseChip(ctx, healthy.ID)
	if got := repo.get(healthy.ID); got.Status != model.ChipStatusActive {
		t.Fatalf("healthy chip must stay active, got %s", got.Status)
	}
	if len(notifier.paused) != 0 {
		t.Fatalf("no pause notification expected, got %d", len(notifier.paused))
	}

	// An exhausted chip is paused off its current record, so counters
	// committed after the caller's snapshot survive.
	exhausted := activeChip(t, repo, 1, "b")
	exhausted.MessagesSentToday = 100
	exhausted.MessagesSentTotal = 700
	_ = repo.Update(ctx, nil, exhausted)

	uc.pauseChip(ctx, exhausted.ID)
	stored := repo.get(exhausted.ID)
	if stored.Status != model.ChipStatusPaused {
		t.Fatalf("expected paused, got %s", stored.Status)
	}
	if stored.MessagesSentTotal != 700 {
		t.Fatalf("pause must not clobber counters, got total %d", stored.MessagesSentTotal)
	}
	if len(notifier.paused) != 1 {
		t.Fatalf("expected one pause notification, got %d", len(notifier.paused))
	}
}

func TestUpdateAllRiskScores_AppliesPausePolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, notifier, events := newRotation(repo)

	over := activeChip(t, repo, 1, "over")
	over.DailyLimit = 10
	over.MessagesSentToday = 10
	_ = repo.Update(ctx, nil, over)

	// stale high score on an otherwise idle chip
	idle := activeChip(t, repo, 1, "idle")
	idle.RiskScore = 50
	_ = repo.Update(ctx, nil, idle)

	if err := uc.UpdateAllRiskScores(ctx, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored := repo.get(over.ID)
	if stored.Status != model.ChipStatusPaused {
		t.Fatalf("over-limit chip must be paused, got %s", stored.Status)
	}
	if !strings.Contains(stored.PausedReason, "daily limit") {
		t.Fatalf("unexpected paused reason %q", stored.PausedReason)
	}
	if len(notifier.paused) != 1 {
		t.Fatalf("expected one pause notification, got %d", len(notifier.paused))
	}
	if got := events.byName(model.EventChipPaused); len(got) != 1 {
		t.Fatalf("expected one chip.paused event, got %d", len(got))
	}

	if got := repo.get(idle.ID); got.RiskScore != 0 || got.Status != model.ChipStatusActive {
		t.Fatalf("idle chip should just refresh its score, got %d/%s", got.RiskScore, got.Status)
	}
}

func TestDecayRiskScores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	a := activeChip(t, repo, 1, "a")
	a.RiskScore = 50
	_ = repo.Update(ctx, nil, a)

	b := activeChip(t, repo, 2, "b") // other user decays too
	b.RiskScore = 2
	_ = repo.Update(ctx, nil, b)

	if err := uc.DecayRiskScores(ctx); err != nil {
		t.Fatalf("decay: %v", err)
	}

	if got := repo.get(a.ID).RiskScore; got != 47 {
		t.Fatalf("expected 47, got %d", got)
	}
	if got := repo.get(b.ID).RiskScore; got != 0 {
		t.Fatalf("expected floor at 0, got %d", got)
	}
}

func TestResetAllDailyCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	a := activeChip(t, repo, 1, "a")
	a.MessagesSentToday = 42
	a.MessagesSentTotal = 500
	_ = repo.Update(ctx, nil, a)

	n, err := uc.ResetAllDailyCounters(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chip touched, got %d", n)
	}
	stored := repo.get(a.ID)
	if stored.MessagesSentToday != 0 {
		t.Fatalf("daily counter not reset")
	}
	if stored.MessagesSentTotal != 500 {
		t.Fatalf("total counter must survive the daily reset")
	}
}

func TestGetRotationStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	a := activeChip(t, repo, 1, "a")
	a.MessagesSentToday = 30
	_ = repo.Update(ctx, nil, a)

	b := activeChip(t, repo, 1, "b")
	b.Status = model.ChipStatusPaused
	b.PausedReason = "daily limit of 100 messages reached"
	_ = repo.Update(ctx, nil, b)

	st, err := uc.GetRotationStatus(ctx, 1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.TotalChips != 2 || st.ActiveChips != 1 || st.PausedChips != 1 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.SentToday != 30 {
		t.Fatalf("expected 30 sent today, got %d", st.SentToday)
	}
	if st.RemainingToday != 70 {
		t.Fatalf("remaining budget counts active chips only, got %d", st.RemainingToday)
	}
	if len(st.Chips) != 2 {
		t.Fatalf("expected 2 snapshots")
	}
}

func TestSendViaChip_Checks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChipRepo()
	uc, _, _, _, _, _ := newRotation(repo)

	chip := activeChip(t, repo, 1, "a")

	// wrong owner
	if _, err := uc.SendViaChip(ctx, 2, chip.ID, "+551100", "hi"); err == nil {
		t.Fatalf("expected error for foreign chip")
	}

	// paused chip refuses
	chip.Status = model.ChipStatusPaused
	_ = repo.Update(ctx, nil, chip)
	out, err := uc.SendViaChip(ctx, 1, chip.ID, "+551100", "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Sent {
		t.Fatalf("paused chip must not send")
	}

	// healthy path
	chip.Status = model.ChipStatusActive
	_ = repo.Update(ctx, nil, chip)
	out, err = uc.SendViaChip(ctx, 1, chip.ID, "+551100", "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Sent {
		t.Fatalf("expected send, got %+v", out)
	}
}
