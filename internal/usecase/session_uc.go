// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
	"sentinelzap/internal/domain/ports/repository"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// InitQueue is the slice of the session queue the use case needs. The queue
// itself is constructed around this use case's InitializeSession, so the
// dependency is attached after construction.
type InitQueue interface {
	Enqueue(sessionID string) (<-chan error, error)
	IsInitializing(sessionID string) bool
}

type SessionUseCase interface {
	CreateChip(ctx context.Context, userID int64, name, phoneNumber string) (*model.Chip, error)
	ListChips(ctx context.Context, userID int64) ([]*model.Chip, error)
	RemoveChip(ctx context.Context, userID, chipID int64) error

	// ConnectChip places the chip's session in the initialization line and
	// returns immediately; the QR code becomes available via GetQRCode.
	ConnectChip(ctx context.Context, userID, chipID int64) error
	DisconnectChip(ctx context.Context, userID, chipID int64) error
	GetQRCode(ctx context.Context, userID, chipID int64) (string, error)

	// InitializeSession is the queue's worker function.
	InitializeSession(ctx context.Context, sessionID string) error

	// Transport callbacks.
	HandleConnected(ctx context.Context, sessionID string) error
	HandleDisconnected(ctx context.Context, sessionID string, banned, loggedOut bool) error
}

type sessionUC struct {
	chips    repository.ChipRepository
	registry adapter.SessionRegistry
	wa       adapter.WhatsAppAdapter
	queue    InitQueue
	logger   zerolog.Logger

	now func() time.Time
}

func NewSessionUseCase(
	chips repository.ChipRepository,
	registry adapter.SessionRegistry,
	wa adapter.WhatsAppAdapter,
	logger *zerolog.Logger,
) *sessionUC {
	return &sessionUC{
		chips:    chips,
		registry: registry,
		wa:       wa,
		logger:   logger.With().Str("component", "session_uc").Logger(),
		now:      time.Now,
	}
}

// AttachQueue wires the initialization queue once it exists.
func (uc *sessionUC) AttachQueue(q InitQueue) { uc.queue = q }

func (uc *sessionUC) CreateChip(ctx context.Context, userID int64, name, phoneNumber string) (*model.Chip, error) {
	chip, err := model.NewChip(userID, name, phoneNumber, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := uc.chips.Create(ctx, repository.NoTX, chip); err != nil {
		return nil, err
	}
	uc.logger.Info().Int64("chip_id", chip.ID).Str("session_id", chip.SessionID).Msg("chip created")
	return chip, nil
}

func (uc *sessionUC) ListChips(ctx context.Context, userID int64) ([]*model.Chip, error) {
	return uc.chips.FindByUser(ctx, repository.NoTX, userID)
}

func (uc *sessionUC) RemoveChip(ctx context.Context, userID, chipID int64) error {
	chip, err := uc.owned(ctx, userID, chipID)
	if err != nil {
		return err
	}
	if chip.IsConnected {
		if err := uc.wa.DisconnectSession(ctx, chip.SessionID); err != nil {
			uc.logger.Warn().Err(err).Int64("chip_id", chipID).Msg("disconnect before removal")
		}
	}
	_ = uc.registry.DeleteQRCode(ctx, chip.SessionID)
	return uc.chips.Delete(ctx, repository.NoTX, chipID)
}

func (uc *sessionUC) ConnectChip(ctx context.Context, userID, chipID int64) error {
	chip, err := uc.owned(ctx, userID, chipID)
	if err != nil {
		return err
	}
	if chip.IsConnected {
		return nil
	}
	if uc.queue == nil {
		return domain.ErrOperationFailed
	}
	if _, err := uc.queue.Enqueue(chip.SessionID); err != nil {
		return err
	}
	uc.logger.Info().Int64("chip_id", chipID).Str("session_id", chip.SessionID).Msg("session init queued")
	return nil
}

func (uc *sessionUC) DisconnectChip(ctx context.Context, userID, chipID int64) error {
	chip, err := uc.owned(ctx, userID, chipID)
	if err != nil {
		return err
	}
	if err := uc.wa.DisconnectSession(ctx, chip.SessionID); err != nil {
		uc.logger.Warn().Err(err).Int64("chip_id", chipID).Msg("transport disconnect")
	}
	_ = uc.registry.DeleteQRCode(ctx, chip.SessionID)

	chip.IsConnected = false
	chip.Status = model.ChipStatusOffline
	return uc.chips.Update(ctx, repository.NoTX, chip)
}

func (uc *sessionUC) GetQRCode(ctx context.Context, userID, chipID int64) (string, error) {
	chip, err := uc.owned(ctx, userID, chipID)
	if err != nil {
		return "", err
	}
	return uc.registry.GetQRCode(ctx, chip.SessionID)
}

func (uc *sessionUC) InitializeSession(ctx context.Context, sessionID string) error {
	res, err := uc.wa.InitializeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if res.QRCode != "" {
		if err := uc.registry.SetQRCode(ctx, sessionID, res.QRCode); err != nil {
			uc.logger.Warn().Err(err).Str("session_id", sessionID).Msg("cache qr code")
		}
	}
	if !res.Success {
		return domain.ErrOperationFailed
	}
	if res.QRCode == "" {
		// Session restored without pairing; the transport is already live.
		return uc.HandleConnected(ctx, sessionID)
	}
	return nil
}

func (uc *sessionUC) HandleConnected(ctx context.Context, sessionID string) error {
	chip, err := uc.chips.FindBySessionID(ctx, repository.NoTX, sessionID)
	if err != nil {
		return err
	}
	now := uc.now()
	chip.IsConnected = true
	chip.LastConnectedAt = &now
	if chip.Status == model.ChipStatusOffline || chip.Status == model.ChipStatusError {
		chip.Status = model.ChipStatusActive
		chip.PausedReason = ""
	}
	_ = uc.registry.DeleteQRCode(ctx, sessionID)
	uc.logger.Info().Int64("chip_id", chip.ID).Str("session_id", sessionID).Msg("chip connected")
	return uc.chips.Update(ctx, repository.NoTX, chip)
}

// HandleDisconnected applies a transport drop. A ban marks the chip as
// errored at maximum risk and aborts any running warm-up; a clean logout
// just takes the chip offline.
func (uc *sessionUC) HandleDisconnected(ctx context.Context, sessionID string, banned, loggedOut bool) error {
	chip, err := uc.chips.FindBySessionID(ctx, repository.NoTX, sessionID)
	if err != nil {
		return err
	}
	chip.IsConnected = false

	switch {
	case banned:
		now := uc.now()
		chip.Status = model.ChipStatusError
		chip.RiskScore = 100
		chip.PausedReason = "account banned by WhatsApp"
		if chip.WarmupStatus == model.WarmupStatusInProgress {
			chip.WarmupStatus = model.WarmupStatusSkipped
			chip.WarmupEndDate = &now
		}
		uc.logger.Error().Int64("chip_id", chip.ID).Msg("chip banned")
	case loggedOut:
		chip.Status = model.ChipStatusOffline
		uc.logger.Info().Int64("chip_id", chip.ID).Msg("chip logged out")
	default:
		chip.Status = model.ChipStatusError
		uc.logger.Warn().Int64("chip_id", chip.ID).Msg("chip connection lost")
	}
	return uc.chips.Update(ctx, repository.NoTX, chip)
}

func (uc *sessionUC) owned(ctx context.Context, userID, chipID int64) (*model.Chip, error) {
	chip, err := uc.chips.FindByID(ctx, repository.NoTX, chipID)
	if err != nil {
		return nil, err
	}
	if chip.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return chip, nil
}
