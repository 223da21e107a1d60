// Package delivery renders alert messages and fans them out to Telegram
// recipients with retry and pacing.
package delivery

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/logging"
)

// telegramSender is the slice of the Telegram API the dispatcher uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Result records the outcome of one recipient's delivery.
type Result struct {
	Recipient int64
	MessageID int
	ChatID    int64
	Err       error
}

// Dispatcher sends rendered alerts to every configured recipient. One
// recipient's failure never blocks the others; each failed recipient is
// reported in its Result after retries are exhausted.
type Dispatcher struct {
	api        telegramSender
	recipients []int64
	devChatID  int64
	cfg        config.DeliveryConfig
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// NewDispatcher creates a dispatcher. In dev mode the dev recipient list
// replaces the normal one entirely.
func NewDispatcher(api telegramSender, deliveryCfg config.DeliveryConfig, telegramCfg config.TelegramConfig, logger *logging.Logger) *Dispatcher {
	recipients := telegramCfg.Recipients
	if deliveryCfg.DevMode {
		recipients = telegramCfg.DevRecipients
		logger.WithField("recipients", recipients).Info("Running in dev mode")
	}

	return &Dispatcher{
		api:        api,
		recipients: recipients,
		devChatID:  telegramCfg.DeveloperChatID,
		cfg:        deliveryCfg,
		// Telegram allows ~30 messages/sec per bot; stay well under it.
		limiter: rate.NewLimiter(rate.Limit(10), 1),
		logger:  logger.WithField("component", "delivery"),
	}
}

// Recipients returns the resolved recipient list.
func (d *Dispatcher) Recipients() []int64 {
	out := make([]int64, len(d.recipients))
	copy(out, d.recipients)
	return out
}

// Deliver sends the message to every recipient. The returned slice has one
// entry per attempted recipient; entries with a non-nil Err exhausted their
// retries. When the send switch is off, no sends happen and the slice is
// empty.
func (d *Dispatcher) Deliver(ctx context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) []Result {
	if !d.cfg.SendMessages {
		d.logger.Info("Message sending disabled, skipping delivery")
		return nil
	}

	results := make([]Result, 0, len(d.recipients))
	for _, recipient := range d.recipients {
		msg, err := d.sendWithRetry(ctx, recipient, text, markup)
		result := Result{Recipient: recipient}
		if err != nil {
			result.Err = err
			d.logger.WithError(err).WithField("recipient", recipient).Error("Delivery failed")
		} else {
			result.MessageID = msg.MessageID
			result.ChatID = msg.Chat.ID
			d.logger.WithField("recipient", recipient).Debug("Delivered alert")
		}
		results = append(results, result)
	}
	return results
}

// SendTo sends a message to a single chat with the standard options, without
// the retry loop. Used for operator diagnostics and callback replies.
func (d *Dispatcher) SendTo(ctx context.Context, chatID int64, text string) (tgbotapi.Message, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return d.api.Send(msg)
}

// ReportError sends a diagnostic to the developer chat. Failures are logged
// and swallowed; diagnostics must never take down the pipeline.
func (d *Dispatcher) ReportError(ctx context.Context, subject string, err error) {
	if d.devChatID == 0 {
		return
	}
	text := fmt.Sprintf("Error: %s\n<pre>%s</pre>", subject, err)
	if _, sendErr := d.SendTo(ctx, d.devChatID, text); sendErr != nil {
		d.logger.WithError(sendErr).Error("Failed to send error report")
	}
}

// ReportInfo sends an informational note to the developer chat.
func (d *Dispatcher) ReportInfo(ctx context.Context, text string) {
	if d.devChatID == 0 {
		return
	}
	if _, err := d.SendTo(ctx, d.devChatID, text); err != nil {
		d.logger.WithError(err).Error("Failed to send info report")
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return tgbotapi.Message{}, err
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if markup != nil {
			msg.ReplyMarkup = *markup
		}

		sent, err := d.api.Send(msg)
		if err == nil {
			return sent, nil
		}
		lastErr = err
		d.logger.WithError(err).WithFields(map[string]interface{}{
			"recipient": chatID,
			"attempt":   attempt,
		}).Warn("Send attempt failed")

		if attempt < d.cfg.MaxRetries {
			select {
			case <-time.After(time.Duration(attempt) * d.cfg.BackoffUnit):
			case <-ctx.Done():
				return tgbotapi.Message{}, ctx.Err()
			}
		}
	}
	return tgbotapi.Message{}, errors.NewDeliveryError(chatID, d.cfg.MaxRetries, lastErr)
}
