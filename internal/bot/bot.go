// Package bot handles Telegram updates pushed over the webhook ingress.
// The only interactive surface is the Refresh button on delivered alerts.
package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stealth-alerts/internal/logging"
)

const refreshCallbackData = "refresh"

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type refresher interface {
	Refresh(ctx context.Context, chatID int64, messageID int) (string, error)
}

// Bot routes incoming Telegram updates.
type Bot struct {
	api    telegramAPI
	engine refresher
	logger *logging.Logger
	now    func() time.Time
}

// New creates a Bot.
func New(api telegramAPI, engine refresher, logger *logging.Logger) *Bot {
	return &Bot{
		api:    api,
		engine: engine,
		logger: logger.WithField("component", "bot"),
		now:    time.Now,
	}
}

// HandleUpdate processes a single update delivered by Telegram's webhook.
// Unknown update kinds are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	b.logger.Debug("Ignoring non-callback update")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	ack := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		b.logger.WithError(err).Warn("Failed to ack callback query")
	}

	if cb.Data != refreshCallbackData || cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	logger := b.logger.WithFields(map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	})

	text, err := b.engine.Refresh(ctx, chatID, messageID)
	if err != nil {
		logger.WithError(err).Error("Alert refresh failed")
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, b.refreshedMarkup())
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if _, err := b.api.Send(edit); err != nil {
		logger.WithError(err).Error("Failed to edit refreshed alert")
		return
	}
	logger.Info("Alert refreshed")
}

// refreshedMarkup replaces the button label with the refresh time so repeat
// taps show when the data was last pulled.
func (b *Bot) refreshedMarkup() tgbotapi.InlineKeyboardMarkup {
	label := fmt.Sprintf("🔃 Last updated at %s", b.now().UTC().Format("15:04:05"))
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, refreshCallbackData),
		),
	)
}
