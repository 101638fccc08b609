package alert

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"legal-docs-platform/internal/config"
	"legal-docs-platform/internal/domain/ports/adapter"
)

var _ adapter.OperatorAlerter = (*TelegramAlerter)(nil)

// TelegramAlerter pushes operator notices to a fixed chat. When no token is
// configured it degrades to log-only, so local and test setups need no bot.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramAlerter(cfg config.AlertConfig, logger *zerolog.Logger) (*TelegramAlerter, error) {
	l := logger.With().Str("component", "TelegramAlerter").Logger()
	a := &TelegramAlerter{chatID: cfg.TelegramChatID, log: &l}
	if cfg.TelegramToken == "" {
		l.Warn().Msg("no telegram token configured, operator alerts go to the log only")
		return a, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	a.bot = bot
	return a, nil
}

func (a *TelegramAlerter) Alert(ctx context.Context, message string) {
	a.log.Warn().Str("alert", message).Msg("operator alert")
	if a.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(a.chatID, message)
	if _, err := a.bot.Send(msg); err != nil {
		a.log.Error().Err(err).Msg("failed to deliver operator alert")
	}
}
