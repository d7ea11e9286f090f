// File: internal/usecase/warmup_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
	"sentinelzap/internal/domain/ports/repository"
	"sentinelzap/internal/infra/metrics"
)

// Compile-time check
var _ WarmupUseCase = (*warmupUC)(nil)

// Locker guards the manual warm-up trigger so overlapping invocations for
// the same user do not double-send.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// warmupPhrases is the rotating pool of innocuous conversational texts
// exchanged between a user's own chips during warm-up.
var warmupPhrases = []string{
	"Oi, tudo bem?",
	"Bom dia! Como vai?",
	"E aí, como foi o dia?",
	"Boa tarde, tudo certo?",
	"Oi! Viu as novidades?",
	"Tudo tranquilo por aí?",
	"Boa noite, descansou bem?",
	"Oi, conseguiu resolver aquilo?",
	"Como estão as coisas?",
	"Tudo em ordem por aqui!",
	"Que dia corrido hoje...",
	"Depois me conta as novidades",
	"Vamos marcar algo essa semana?",
	"Acabei de lembrar de você!",
	"Obrigado pela ajuda de ontem",
	"Até mais tarde!",
	"Combinado então, até amanhã",
	"Qualquer coisa me avisa",
	"Já estou chegando",
	"Perfeito, fechado!",
}

// WarmupProgress summarizes one chip's position in its ramp.
type WarmupProgress struct {
	ChipID         int64              `json:"chipId"`
	ChipName       string             `json:"chipName"`
	Status         model.WarmupStatus `json:"status"`
	CurrentDay     int                `json:"currentDay"`
	DurationDays   int                `json:"durationDays"`
	Phase          int                `json:"phase"`
	MessagesPerDay int                `json:"messagesPerDay"`
	MessagesToday  int                `json:"messagesToday"`
	PercentDone    int                `json:"percentDone"`
	StartDate      *time.Time         `json:"startDate,omitempty"`
	EndDate        *time.Time         `json:"endDate,omitempty"`
}

type WarmupUseCase interface {
	Start(ctx context.Context, userID, chipID int64) error
	// Stop ends the ramp early; markCompleted records it as finished rather
	// than skipped.
	Stop(ctx context.Context, userID, chipID int64, markCompleted bool) error
	// ProcessWarmupMessages sends one batch for a single warming chip and
	// returns how many messages went out.
	ProcessWarmupMessages(ctx context.Context, chip *model.Chip) (int, error)
	// ResetWarmupDailyCounters advances every warming chip to its next day.
	ResetWarmupDailyCounters(ctx context.Context) error
	// SendWarmupNow triggers an immediate batch for all of the user's warming
	// chips. Guarded by a per-user lock.
	SendWarmupNow(ctx context.Context, userID int64) (int, error)
	Progress(ctx context.Context, userID, chipID int64) (*WarmupProgress, error)
	GetWarmupStatus(ctx context.Context, userID int64) ([]WarmupProgress, error)
	Settings(ctx context.Context, userID int64) (*model.WarmupSettings, error)
	UpdateSettings(ctx context.Context, settings *model.WarmupSettings) error
	History(ctx context.Context, userID, chipID int64, limit int) ([]*model.WarmupHistory, error)
	// OnWarmupTick is the scheduler entrypoint: one batch for every warming
	// chip across all users.
	OnWarmupTick(ctx context.Context)
}

type warmupUC struct {
	chips    repository.ChipRepository
	settings repository.WarmupSettingsRepository
	history  repository.WarmupHistoryRepository
	wa       adapter.WhatsAppAdapter
	locker   Locker
	logger   zerolog.Logger

	// test seams
	now     func() time.Time
	intn    func(n int) int
	sleep   func(d time.Duration)
	lockKey func(userID int64) string
}

func NewWarmupUseCase(
	chips repository.ChipRepository,
	settings repository.WarmupSettingsRepository,
	history repository.WarmupHistoryRepository,
	wa adapter.WhatsAppAdapter,
	locker Locker,
	logger *zerolog.Logger,
) *warmupUC {
	return &warmupUC{
		chips:    chips,
		settings: settings,
		history:  history,
		wa:       wa,
		locker:   locker,
		logger:   logger.With().Str("component", "warmup_uc").Logger(),
		now:      time.Now,
		intn:     rand.Intn,
		sleep:    time.Sleep,
		lockKey:  func(userID int64) string { return fmt.Sprintf("warmup_trigger:%d", userID) },
	}
}

func (uc *warmupUC) Start(ctx context.Context, userID, chipID int64) error {
	chip, err := uc.chips.FindByID(ctx, repository.NoTX, chipID)
	if err != nil {
		return err
	}
	if chip.UserID != userID {
		return domain.ErrNotFound
	}
	if !chip.IsConnected {
		return domain.ErrChipNotConnected
	}
	if chip.WarmupStatus == model.WarmupStatusInProgress {
		return domain.ErrAlreadyExists
	}

	settings, err := uc.Settings(ctx, userID)
	if err != nil {
		return err
	}

	now := uc.now()
	end := now.AddDate(0, 0, settings.DurationDays)
	chip.WarmupStatus = model.WarmupStatusInProgress
	chip.WarmupStartDate = &now
	chip.WarmupEndDate = &end
	chip.WarmupCurrentDay = 1
	chip.WarmupMessagesToday = 0
	if err := uc.chips.Update(ctx, repository.NoTX, chip); err != nil {
		return err
	}
	uc.logger.Info().Int64("chip_id", chipID).Msg("warmup started")
	return nil
}

func (uc *warmupUC) Stop(ctx context.Context, userID, chipID int64, markCompleted bool) error {
	chip, err := uc.chips.FindByID(ctx, repository.NoTX, chipID)
	if err != nil {
		return err
	}
	if chip.UserID != userID {
		return domain.ErrNotFound
	}
	// A finished ramp may be re-marked (e.g. skipped -> completed); only a
	// chip that never started has nothing to stop.
	if chip.WarmupStatus == model.WarmupStatusNotStarted {
		return domain.ErrWarmupNotRunning
	}

	now := uc.now()
	if markCompleted {
		chip.WarmupStatus = model.WarmupStatusCompleted
	} else {
		chip.WarmupStatus = model.WarmupStatusSkipped
	}
	chip.WarmupEndDate = &now
	if err := uc.chips.Update(ctx, repository.NoTX, chip); err != nil {
		return err
	}
	uc.logger.Info().Int64("chip_id", chipID).Bool("completed", markCompleted).Msg("warmup stopped")
	return nil
}

func (uc *warmupUC) ProcessWarmupMessages(ctx context.Context, chip *model.Chip) (int, error) {
	if chip.WarmupStatus != model.WarmupStatusInProgress {
		return 0, nil
	}
	// A paused or errored chip must not emit synthetic traffic either.
	if chip.Status != model.ChipStatusActive {
		uc.logger.Debug().Int64("chip_id", chip.ID).Str("status", string(chip.Status)).
			Msg("warming chip not active, skipping batch")
		return 0, nil
	}
	if !chip.IsConnected {
		uc.logger.Debug().Int64("chip_id", chip.ID).Msg("warming chip offline, skipping batch")
		return 0, nil
	}

	settings, err := uc.Settings(ctx, chip.UserID)
	if err != nil {
		return 0, err
	}
	phase, quota := settings.Phase(chip.WarmupCurrentDay)

	remaining := quota - chip.WarmupMessagesToday
	if remaining <= 0 {
		return 0, nil
	}

	// Quota is spread across the scheduler's eight daily ticks.
	batch := (quota + 7) / 8
	if batch > remaining {
		batch = remaining
	}

	peers, err := uc.connectedPeers(ctx, chip)
	if err != nil {
		return 0, err
	}
	if len(peers) == 0 {
		uc.logger.Debug().Int64("chip_id", chip.ID).Msg("no peer chip connected, skipping batch")
		return 0, nil
	}

	sent := 0
	for i := 0; i < batch; i++ {
		peer := peers[uc.intn(len(peers))]
		phrase := warmupPhrases[uc.intn(len(warmupPhrases))]

		entry := &model.WarmupHistory{
			ID:              ulid.Make().String(),
			ChipID:          chip.ID,
			UserID:          chip.UserID,
			SenderChipID:    chip.ID,
			RecipientNumber: peer.PhoneNumber,
			MessageContent:  phrase,
			WarmupPhase:     phase,
			WarmupDay:       chip.WarmupCurrentDay,
			SentAt:          uc.now(),
		}

		res, err := uc.wa.SendMessage(ctx, chip.SessionID, peer.PhoneNumber, phrase)
		if err != nil || !res.Success {
			entry.Status = model.WarmupMessageFailed
			if err != nil {
				entry.ErrorMessage = err.Error()
			} else {
				entry.ErrorMessage = res.Error
			}
			metrics.IncWarmupMessage("failed")
			uc.logger.Warn().Int64("chip_id", chip.ID).Str("error", entry.ErrorMessage).Msg("warmup message failed")
		} else {
			entry.Status = model.WarmupMessageSent
			metrics.IncWarmupMessage("sent")
			sent++
		}

		if err := uc.history.Append(ctx, repository.NoTX, entry); err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("append warmup history")
		}

		if i < batch-1 {
			uc.sleep(time.Duration(1+uc.intn(3)) * time.Second)
		}
	}

	if sent > 0 {
		chip.WarmupMessagesToday += sent
		if err := uc.chips.Update(ctx, repository.NoTX, chip); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// connectedPeers returns the user's other connected chips, eligible as
// warm-up recipients. At least two connected chips are required overall.
func (uc *warmupUC) connectedPeers(ctx context.Context, chip *model.Chip) ([]*model.Chip, error) {
	connected, err := uc.chips.FindConnectedByUser(ctx, repository.NoTX, chip.UserID)
	if err != nil {
		return nil, err
	}
	if len(connected) < 2 {
		return nil, nil
	}
	peers := make([]*model.Chip, 0, len(connected)-1)
	for _, c := range connected {
		if c.ID != chip.ID {
			peers = append(peers, c)
		}
	}
	return peers, nil
}

func (uc *warmupUC) ResetWarmupDailyCounters(ctx context.Context) error {
	warming, err := uc.chips.FindByWarmupStatus(ctx, repository.NoTX, model.WarmupStatusInProgress)
	if err != nil {
		return err
	}
	for _, chip := range warming {
		settings, err := uc.Settings(ctx, chip.UserID)
		if err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("load warmup settings")
			continue
		}
		nextDay := chip.WarmupCurrentDay + 1
		if nextDay > settings.DurationDays {
			now := uc.now()
			chip.WarmupStatus = model.WarmupStatusCompleted
			chip.WarmupEndDate = &now
			uc.logger.Info().Int64("chip_id", chip.ID).Msg("warmup completed")
		} else {
			chip.WarmupCurrentDay = nextDay
			chip.WarmupMessagesToday = 0
		}
		if err := uc.chips.Update(ctx, repository.NoTX, chip); err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("advance warmup day")
		}
	}
	metrics.SetWarmupChipsInProgress(countInProgress(warming))
	return nil
}

func countInProgress(chips []*model.Chip) int {
	n := 0
	for _, c := range chips {
		if c.WarmupStatus == model.WarmupStatusInProgress {
			n++
		}
	}
	return n
}

func (uc *warmupUC) SendWarmupNow(ctx context.Context, userID int64) (int, error) {
	if uc.locker != nil {
		token, err := uc.locker.TryLock(ctx, uc.lockKey(userID), 2*time.Minute)
		if err != nil {
			return 0, err
		}
		defer func() { _ = uc.locker.Unlock(ctx, uc.lockKey(userID), token) }()
	}

	chips, err := uc.chips.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}

	total := 0
	warming := 0
	for _, chip := range chips {
		if chip.WarmupStatus != model.WarmupStatusInProgress {
			continue
		}
		warming++
		sent, err := uc.ProcessWarmupMessages(ctx, chip)
		if err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("manual warmup batch")
			continue
		}
		total += sent
	}
	if warming == 0 {
		return 0, domain.ErrWarmupNotRunning
	}
	return total, nil
}

func (uc *warmupUC) Progress(ctx context.Context, userID, chipID int64) (*WarmupProgress, error) {
	chip, err := uc.chips.FindByID(ctx, repository.NoTX, chipID)
	if err != nil {
		return nil, err
	}
	if chip.UserID != userID {
		return nil, domain.ErrNotFound
	}
	settings, err := uc.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := buildProgress(chip, settings)
	return &p, nil
}

func (uc *warmupUC) GetWarmupStatus(ctx context.Context, userID int64) ([]WarmupProgress, error) {
	chips, err := uc.chips.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	settings, err := uc.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]WarmupProgress, 0, len(chips))
	for _, chip := range chips {
		if chip.WarmupStatus == model.WarmupStatusNotStarted {
			continue
		}
		out = append(out, buildProgress(chip, settings))
	}
	return out, nil
}

func buildProgress(chip *model.Chip, settings *model.WarmupSettings) WarmupProgress {
	phase, quota := settings.Phase(chip.WarmupCurrentDay)
	pct := 0
	switch chip.WarmupStatus {
	case model.WarmupStatusCompleted, model.WarmupStatusSkipped:
		pct = 100
	case model.WarmupStatusNotStarted:
		pct = 0
	default:
		if settings.DurationDays > 0 {
			pct = (chip.WarmupCurrentDay*100 + settings.DurationDays/2) / settings.DurationDays
			if pct > 100 {
				pct = 100
			}
		}
	}
	return WarmupProgress{
		ChipID:         chip.ID,
		ChipName:       chip.Name,
		Status:         chip.WarmupStatus,
		CurrentDay:     chip.WarmupCurrentDay,
		DurationDays:   settings.DurationDays,
		Phase:          phase,
		MessagesPerDay: quota,
		MessagesToday:  chip.WarmupMessagesToday,
		PercentDone:    pct,
		StartDate:      chip.WarmupStartDate,
		EndDate:        chip.WarmupEndDate,
	}
}

// Settings returns the user's warm-up settings, creating the default record
// on first access.
func (uc *warmupUC) Settings(ctx context.Context, userID int64) (*model.WarmupSettings, error) {
	s, err := uc.settings.FindByUser(ctx, repository.NoTX, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	s = model.DefaultWarmupSettings(userID)
	if err := uc.settings.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (uc *warmupUC) UpdateSettings(ctx context.Context, settings *model.WarmupSettings) error {
	if settings == nil || settings.UserID == 0 {
		return domain.ErrInvalidArgument
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	settings.UpdatedAt = uc.now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = settings.UpdatedAt
	}
	return uc.settings.Save(ctx, repository.NoTX, settings)
}

func (uc *warmupUC) History(ctx context.Context, userID, chipID int64, limit int) ([]*model.WarmupHistory, error) {
	chip, err := uc.chips.FindByID(ctx, repository.NoTX, chipID)
	if err != nil {
		return nil, err
	}
	if chip.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if limit <= 0 {
		limit = 50
	}
	return uc.history.FindByChip(ctx, repository.NoTX, chipID, limit)
}

func (uc *warmupUC) OnWarmupTick(ctx context.Context) {
	warming, err := uc.chips.FindByWarmupStatus(ctx, repository.NoTX, model.WarmupStatusInProgress)
	if err != nil {
		uc.logger.Error().Err(err).Msg("list warming chips")
		return
	}
	metrics.SetWarmupChipsInProgress(len(warming))

	for _, chip := range warming {
		sent, err := uc.ProcessWarmupMessages(ctx, chip)
		if err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("warmup batch")
			continue
		}
		if sent > 0 {
			uc.logger.Info().Int64("chip_id", chip.ID).Int("sent", sent).
				Int("day", chip.WarmupCurrentDay).Msg("warmup batch sent")
		}
	}
}
