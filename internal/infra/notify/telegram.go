package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sentinelzap/internal/config"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier pushes operator alerts to a fixed Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

func NewTelegramNotifier(cfg *config.NotifyConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.Telegram.ChatID,
		logger: logger.With().Str("component", "telegram_notifier").Logger(),
	}, nil
}

func (n *TelegramNotifier) ChipPaused(ctx context.Context, chip *model.Chip, reason string) error {
	text := fmt.Sprintf(
		"⏸ Chip paused: %s\nReason: %s\nRisk: %d/100\nToday: %d/%d messages",
		chip.Name, reason, chip.RiskScore, chip.MessagesSentToday, chip.DailyLimit,
	)
	return n.send(text)
}

func (n *TelegramNotifier) ChipNearLimit(ctx context.Context, chip *model.Chip, usagePercent int) error {
	text := fmt.Sprintf(
		"⚠️ Chip %s is at %d%% of its daily limit (%d/%d)",
		chip.Name, usagePercent, chip.MessagesSentToday, chip.DailyLimit,
	)
	return n.send(text)
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Msg("telegram send")
		return err
	}
	return nil
}
