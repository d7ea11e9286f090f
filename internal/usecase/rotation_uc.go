// File: internal/usecase/rotation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
	"sentinelzap/internal/domain/ports/repository"
	"sentinelzap/internal/infra/metrics"
)

// Compile-time check
var _ RotationUseCase = (*rotationUC)(nil)

// SendOutcome reports what happened to one send attempt.
type SendOutcome struct {
	Sent      bool   `json:"sent"`
	Reason    string `json:"reason,omitempty"`
	ChipID    int64  `json:"chipId,omitempty"`
	ChipName  string `json:"chipName,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// ChipSnapshot is the read-only view of one chip for status reporting.
type ChipSnapshot struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	PhoneNumber       string             `json:"phoneNumber"`
	Status            model.ChipStatus   `json:"status"`
	IsConnected       bool               `json:"isConnected"`
	RiskScore         int                `json:"riskScore"`
	MessagesSentToday int                `json:"messagesSentToday"`
	DailyLimit        int                `json:"dailyLimit"`
	MessagesSentTotal int                `json:"messagesSentTotal"`
	TotalLimit        int                `json:"totalLimit"`
	WarmupStatus      model.WarmupStatus `json:"warmupStatus"`
	PausedReason      string             `json:"pausedReason,omitempty"`
}

type RotationStatus struct {
	TotalChips     int            `json:"totalChips"`
	ActiveChips    int            `json:"activeChips"`
	PausedChips    int            `json:"pausedChips"`
	ConnectedChips int            `json:"connectedChips"`
	SentToday      int            `json:"sentToday"`
	RemainingToday int            `json:"remainingToday"`
	Chips          []ChipSnapshot `json:"chips"`
}

type RotationUseCase interface {
	// SelectChipForRotation picks the healthiest sendable chip for the user.
	// The reason string describes the choice; when no chip qualifies the chip
	// is nil and the reason says why.
	SelectChipForRotation(ctx context.Context, userID int64) (*model.Chip, string, error)
	SendViaRotation(ctx context.Context, userID int64, phoneNumber, message string) (*SendOutcome, error)
	SendViaChip(ctx context.Context, userID, chipID int64, phoneNumber, message string) (*SendOutcome, error)
	// IncrementChipCounters applies the post-send counter/risk/pause pipeline
	// atomically for one chip.
	IncrementChipCounters(ctx context.Context, chipID int64) error
	UpdateAllRiskScores(ctx context.Context, userID int64) error
	ResetAllDailyCounters(ctx context.Context) (int64, error)
	DecayRiskScores(ctx context.Context) error
	GetRotationStatus(ctx context.Context, userID int64) (*RotationStatus, error)
}

type rotationUC struct {
	chips    repository.ChipRepository
	settings repository.WarmupSettingsRepository
	messages repository.MessageHistoryRepository
	wa       adapter.WhatsAppAdapter
	notifier adapter.Notifier
	events   adapter.EventPublisher
	tm       repository.TransactionManager
	logger   zerolog.Logger

	now func() time.Time

	// chipLocks serializes the counter pipeline per chip when no transaction
	// manager is wired (in-memory repositories).
	chipLocks sync.Map
}

func NewRotationUseCase(
	chips repository.ChipRepository,
	settings repository.WarmupSettingsRepository,
	messages repository.MessageHistoryRepository,
	wa adapter.WhatsAppAdapter,
	notifier adapter.Notifier,
	events adapter.EventPublisher,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *rotationUC {
	return &rotationUC{
		chips:    chips,
		settings: settings,
		messages: messages,
		wa:       wa,
		notifier: notifier,
		events:   events,
		tm:       tm,
		logger:   logger.With().Str("component", "rotation_uc").Logger(),
		now:      time.Now,
	}
}

func (uc *rotationUC) SelectChipForRotation(ctx context.Context, userID int64) (*model.Chip, string, error) {
	active, err := uc.chips.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, "", err
	}
	if len(active) == 0 {
		metrics.IncRotationSelection("no_chips")
		return nil, "no active chip available", nil
	}

	blockUnwarmed := false
	if s, err := uc.settings.FindByUser(ctx, repository.NoTX, userID); err == nil && s != nil {
		blockUnwarmed = s.BlockUnwarmedChips
	}

	now := uc.now()
	var candidates []*model.Chip
	for _, chip := range active {
		chip.RiskScore = model.CalculateRiskScore(chip, now)
		metrics.SetChipRiskScore(chip.Name, chip.RiskScore)

		if d := model.ShouldPauseChip(chip, now); d.ShouldPause {
			uc.pauseChip(ctx, chip.ID)
			continue
		}
		if blockUnwarmed && !chip.Warmed() {
			continue
		}
		candidates = append(candidates, chip)
	}

	if len(candidates) == 0 {
		metrics.IncRotationSelection("all_exhausted")
		return nil, "all chips exhausted or high risk, system paused", nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RiskScore != candidates[j].RiskScore {
			return candidates[i].RiskScore < candidates[j].RiskScore
		}
		return candidates[i].MessagesSentToday < candidates[j].MessagesSentToday
	})

	metrics.IncRotationSelection("selected")
	chosen := candidates[0]
	reason := fmt.Sprintf("chip %q selected (risk %d/100, today %d/%d)",
		chosen.Name, chosen.RiskScore, chosen.MessagesSentToday, chosen.DailyLimit)
	return chosen, reason, nil
}

func (uc *rotationUC) SendViaRotation(ctx context.Context, userID int64, phoneNumber, message string) (*SendOutcome, error) {
	if phoneNumber == "" || message == "" {
		return nil, domain.ErrInvalidArgument
	}
	chip, reason, err := uc.SelectChipForRotation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chip == nil {
		return &SendOutcome{Sent: false, Reason: reason}, nil
	}
	return uc.send(ctx, chip, phoneNumber, message)
}

func (uc *rotationUC) SendViaChip(ctx context.Context, userID, chipID int64, phoneNumber, message string) (*SendOutcome, error) {
	if phoneNumber == "" || message == "" {
		return nil, domain.ErrInvalidArgument
	}
	chip, err := uc.chips.FindByID(ctx, repository.NoTX, chipID)
	if err != nil {
		return nil, err
	}
	if chip.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if chip.Status != model.ChipStatusActive {
		return &SendOutcome{Sent: false, Reason: "chip is not active", ChipID: chip.ID, ChipName: chip.Name}, nil
	}
	if !chip.IsConnected {
		return nil, domain.ErrChipNotConnected
	}
	if d := model.ShouldPauseChip(chip, uc.now()); d.ShouldPause {
		uc.pauseChip(ctx, chip.ID)
		return &SendOutcome{Sent: false, Reason: d.Reason, ChipID: chip.ID, ChipName: chip.Name}, nil
	}
	return uc.send(ctx, chip, phoneNumber, message)
}

func (uc *rotationUC) send(ctx context.Context, chip *model.Chip, phoneNumber, message string) (*SendOutcome, error) {
	res, err := uc.wa.SendMessage(ctx, chip.SessionID, phoneNumber, message)
	if err != nil {
		return nil, err
	}

	entry := &model.MessageHistory{
		ID:              ulid.Make().String(),
		ChipID:          chip.ID,
		UserID:          chip.UserID,
		RecipientNumber: phoneNumber,
		MessageContent:  message,
		SentAt:          uc.now(),
	}

	if !res.Success {
		metrics.IncMessageSent("failed")
		entry.Status = model.MessageStatusFailed
		entry.ErrorMessage = res.Error
		if err := uc.messages.Append(ctx, repository.NoTX, entry); err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("record failed send")
		}
		return &SendOutcome{Sent: false, Reason: res.Error, ChipID: chip.ID, ChipName: chip.Name}, nil
	}

	metrics.IncMessageSent("sent")
	entry.Status = model.MessageStatusSent
	if err := uc.messages.Append(ctx, repository.NoTX, entry); err != nil {
		uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("record sent message")
	}

	if err := uc.IncrementChipCounters(ctx, chip.ID); err != nil {
		uc.logger.Error().Err(err).Int64("chip_id", chip.ID).Msg("increment counters after send")
	}

	if uc.events != nil {
		_ = uc.events.Publish(ctx, chip.UserID, model.EventMessageSent, model.MessageSentEvent{
			ChipID:          chip.ID,
			ChipName:        chip.Name,
			RecipientNumber: phoneNumber,
			MessageContent:  message,
			SentAt:          entry.SentAt,
		})
	}

	return &SendOutcome{Sent: true, ChipID: chip.ID, ChipName: chip.Name, MessageID: res.MessageID}, nil
}

// incrementResult carries post-commit side effects out of the critical section.
type incrementResult struct {
	chip         *model.Chip
	paused       bool
	pausedReason string
	nearLimitPct int
}

func (uc *rotationUC) IncrementChipCounters(ctx context.Context, chipID int64) error {
	var res incrementResult

	apply := func(ctx context.Context, qx repository.Tx) error {
		chip, err := uc.chips.FindByID(ctx, qx, chipID)
		if err != nil {
			return err
		}

		now := uc.now()
		oldLastMessageAt := chip.LastMessageAt

		chip.MessagesSentToday++
		chip.MessagesSentTotal++

		// Risk reflects the message that was just sent; the pause decision is
		// made on the updated counters with the previous send timestamp so a
		// burst does not pause a chip purely on its own recency bonus.
		chip.LastMessageAt = &now
		chip.RiskScore = model.CalculateRiskScore(chip, now)

		decisionView := *chip
		decisionView.LastMessageAt = oldLastMessageAt
		decision := model.ShouldPauseChip(&decisionView, now)

		if decision.ShouldPause && chip.Status == model.ChipStatusActive {
			chip.Status = model.ChipStatusPaused
			chip.PausedReason = decision.Reason
			res.paused = true
			res.pausedReason = decision.Reason
		}

		if err := uc.chips.Update(ctx, qx, chip); err != nil {
			return err
		}

		if !res.paused && chip.DailyLimit > 0 {
			pct := chip.MessagesSentToday * 100 / chip.DailyLimit
			if pct >= 90 && pct < 100 {
				res.nearLimitPct = pct
			}
		}
		res.chip = chip
		return nil
	}

	if err := uc.withChipLock(ctx, chipID, apply); err != nil {
		return err
	}

	uc.afterIncrement(ctx, &res)
	return nil
}

// withChipLock serializes a read-modify-write on one chip: inside a
// transaction holding the chip's advisory lock, or under a keyed mutex when
// no transaction manager is wired.
func (uc *rotationUC) withChipLock(ctx context.Context, chipID int64, fn func(ctx context.Context, qx repository.Tx) error) error {
	if uc.tm != nil {
		return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
			tx, ok := qx.(pgx.Tx)
			if !ok {
				return domain.ErrInvalidExecContext
			}
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", chipID); err != nil {
				return err
			}
			return fn(ctx, qx)
		})
	}
	mu := uc.lockFor(chipID)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// afterIncrement runs notifications and events outside the transaction.
func (uc *rotationUC) afterIncrement(ctx context.Context, res *incrementResult) {
	chip := res.chip
	metrics.SetChipRiskScore(chip.Name, chip.RiskScore)

	if res.paused {
		metrics.IncChipPaused(pauseCause(chip, res.pausedReason))
		uc.logger.Warn().Int64("chip_id", chip.ID).Str("reason", res.pausedReason).
			Int("risk_score", chip.RiskScore).Msg("chip auto-paused")

		if uc.notifier != nil {
			if err := uc.notifier.ChipPaused(ctx, chip, res.pausedReason); err != nil {
				uc.logger.Warn().Err(err).Msg("pause notification")
			}
		}
		if uc.events != nil {
			_ = uc.events.Publish(ctx, chip.UserID, model.EventChipPaused, model.ChipPausedEvent{
				ChipID:            chip.ID,
				ChipName:          chip.Name,
				RiskScore:         chip.RiskScore,
				Reason:            res.pausedReason,
				MessagesSentToday: chip.MessagesSentToday,
				DailyLimit:        chip.DailyLimit,
			})
		}
		return
	}

	if res.nearLimitPct > 0 && uc.notifier != nil {
		if err := uc.notifier.ChipNearLimit(ctx, chip, res.nearLimitPct); err != nil {
			uc.logger.Warn().Err(err).Msg("near-limit notification")
		}
	}
}

func pauseCause(chip *model.Chip, reason string) string {
	switch {
	case !chip.IsConnected && chip.MessagesSentToday < chip.DailyLimit && chip.MessagesSentTotal < chip.TotalLimit && chip.RiskScore < 80:
		return "disconnected"
	case chip.RiskScore >= 80:
		return "risk"
	case chip.MessagesSentToday >= chip.DailyLimit:
		return "daily_limit"
	case chip.MessagesSentTotal >= chip.TotalLimit:
		return "total_limit"
	default:
		return "disconnected"
	}
}

func (uc *rotationUC) UpdateAllRiskScores(ctx context.Context, userID int64) error {
	chips, err := uc.chips.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return err
	}
	now := uc.now()
	for _, chip := range chips {
		score := model.CalculateRiskScore(chip, now)
		metrics.SetChipRiskScore(chip.Name, score)

		if chip.Status == model.ChipStatusActive {
			if d := model.ShouldPauseChip(chip, now); d.ShouldPause {
				uc.pauseChip(ctx, chip.ID)
				continue
			}
		}

		if score == chip.RiskScore {
			continue
		}
		chip.RiskScore = score
		if err := uc.chips.Update(ctx, repository.NoTX, chip); err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("update risk score")
		}
	}
	return nil
}

func (uc *rotationUC) ResetAllDailyCounters(ctx context.Context) (int64, error) {
	n, err := uc.chips.ResetDailyCounters(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	uc.logger.Info().Int64("chips", n).Msg("daily counters reset")
	return n, nil
}

// DecayRiskScores lowers every positive risk score by 3 points, floored at 0.
// Runs hourly so an idle chip cools off over time.
func (uc *rotationUC) DecayRiskScores(ctx context.Context) error {
	chips, err := uc.chips.FindAll(ctx, repository.NoTX)
	if err != nil {
		return err
	}
	for _, chip := range chips {
		if chip.RiskScore <= 0 {
			continue
		}
		chip.RiskScore -= 3
		if chip.RiskScore < 0 {
			chip.RiskScore = 0
		}
		metrics.SetChipRiskScore(chip.Name, chip.RiskScore)
		if err := uc.chips.Update(ctx, repository.NoTX, chip); err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chip.ID).Msg("decay risk score")
		}
	}
	return nil
}

func (uc *rotationUC) GetRotationStatus(ctx context.Context, userID int64) (*RotationStatus, error) {
	chips, err := uc.chips.FindByUser(ctx, repository.NoTX, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := uc.now()
	st := &RotationStatus{Chips: make([]ChipSnapshot, 0, len(chips))}
	for _, chip := range chips {
		st.TotalChips++
		switch chip.Status {
		case model.ChipStatusActive:
			st.ActiveChips++
		case model.ChipStatusPaused:
			st.PausedChips++
		}
		if chip.IsConnected {
			st.ConnectedChips++
		}
		st.SentToday += chip.MessagesSentToday
		if remaining := chip.DailyLimit - chip.MessagesSentToday; remaining > 0 && chip.Status == model.ChipStatusActive {
			st.RemainingToday += remaining
		}
		st.Chips = append(st.Chips, ChipSnapshot{
			ID:                chip.ID,
			Name:              chip.Name,
			PhoneNumber:       chip.PhoneNumber,
			Status:            chip.Status,
			IsConnected:       chip.IsConnected,
			RiskScore:         model.CalculateRiskScore(chip, now),
			MessagesSentToday: chip.MessagesSentToday,
			DailyLimit:        chip.DailyLimit,
			MessagesSentTotal: chip.MessagesSentTotal,
			TotalLimit:        chip.TotalLimit,
			WarmupStatus:      chip.WarmupStatus,
			PausedReason:      chip.PausedReason,
		})
	}
	return st, nil
}

// pauseChip persists an eager pause discovered during selection. The chip is
// re-read under its lock so a snapshot taken before a concurrent counter
// commit cannot clobber it; the pause decision is re-evaluated on the fresh
// record and dropped if it no longer holds.
func (uc *rotationUC) pauseChip(ctx context.Context, chipID int64) {
	var paused *model.Chip
	var reason string

	err := uc.withChipLock(ctx, chipID, func(ctx context.Context, qx repository.Tx) error {
		chip, err := uc.chips.FindByID(ctx, qx, chipID)
		if err != nil {
			return err
		}
		if chip.Status != model.ChipStatusActive {
			return nil
		}
		now := uc.now()
		chip.RiskScore = model.CalculateRiskScore(chip, now)
		d := model.ShouldPauseChip(chip, now)
		if !d.ShouldPause {
			return nil
		}
		chip.Status = model.ChipStatusPaused
		chip.PausedReason = d.Reason
		if err := uc.chips.Update(ctx, qx, chip); err != nil {
			return err
		}
		paused = chip
		reason = d.Reason
		return nil
	})
	if err != nil {
		uc.logger.Warn().Err(err).Int64("chip_id", chipID).Msg("persist auto-pause")
		return
	}
	if paused == nil {
		return
	}

	metrics.IncChipPaused(pauseCause(paused, reason))
	uc.logger.Warn().Int64("chip_id", paused.ID).Str("reason", reason).Msg("chip auto-paused during selection")

	if uc.notifier != nil {
		if err := uc.notifier.ChipPaused(ctx, paused, reason); err != nil {
			uc.logger.Warn().Err(err).Msg("pause notification")
		}
	}
	if uc.events != nil {
		_ = uc.events.Publish(ctx, paused.UserID, model.EventChipPaused, model.ChipPausedEvent{
			ChipID:            paused.ID,
			ChipName:          paused.Name,
			RiskScore:         paused.RiskScore,
			Reason:            reason,
			MessagesSentToday: paused.MessagesSentToday,
			DailyLimit:        paused.DailyLimit,
		})
	}
}

func (uc *rotationUC) lockFor(chipID int64) *sync.Mutex {
	v, _ := uc.chipLocks.LoadOrStore(chipID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
