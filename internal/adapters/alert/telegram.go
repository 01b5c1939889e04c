package alert

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
)

// Telegram sends operator alerts to an ops chat. Delivery is best effort:
// failures are logged and never surface to the pipeline.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

var _ domain.Alerter = (*Telegram)(nil)

// NewTelegram creates the alerter. An empty token yields a disabled alerter
// that drops every message.
func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	t := &Telegram{chatID: chatID, log: log}
	if token == "" || chatID == 0 {
		return t, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram alerter: %w", err)
	}
	t.bot = bot
	return t, nil
}

// Alert implements domain.Alerter.
func (t *Telegram) Alert(_ context.Context, subject, message string) {
	if t.bot == nil {
		t.log.Debug().Str("subject", subject).Msg("alerter disabled, dropping alert")
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("⚠️ %s\n\n%s", subject, message))
	start := time.Now()
	_, err := t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_alert", "ops_chat", start, err)
	if err != nil {
		t.log.Error().Err(err).Str("subject", subject).Msg("failed to deliver alert")
	}
}
