package bot

import (
	"context"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stealth-alerts/internal/logging"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 1}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeRefresher struct {
	text      string
	err       error
	chatID    int64
	messageID int
	calls     int
}

func (f *fakeRefresher) Refresh(ctx context.Context, chatID int64, messageID int) (string, error) {
	f.calls++
	f.chatID = chatID
	f.messageID = messageID
	return f.text, f.err
}

func callbackUpdate(data string, chatID int64, messageID int) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			Message: &tgbotapi.Message{
				MessageID: messageID,
				Chat:      &tgbotapi.Chat{ID: chatID},
			},
		},
	}
}

func newTestBot(api *fakeAPI, engine *fakeRefresher) *Bot {
	return New(api, engine, logging.NewLogger(logging.LevelError, logging.FormatText))
}

func TestRefreshCallbackEditsMessage(t *testing.T) {
	api := &fakeAPI{}
	engine := &fakeRefresher{text: "updated alert body"}
	b := newTestBot(api, engine)

	b.HandleUpdate(context.Background(), callbackUpdate("refresh", 42, 7))

	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, int64(42), engine.chatID)
	assert.Equal(t, 7, engine.messageID)

	// Callback acked.
	require.Len(t, api.requests, 1)

	require.Len(t, api.sent, 1)
	edit, ok := api.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, "updated alert body", edit.Text)
	assert.Equal(t, tgbotapi.ModeHTML, edit.ParseMode)
	assert.True(t, edit.DisableWebPagePreview)
	require.NotNil(t, edit.ReplyMarkup)
	button := edit.ReplyMarkup.InlineKeyboard[0][0]
	assert.Contains(t, button.Text, "Last updated at")
	assert.Equal(t, "refresh", *button.CallbackData)
}

func TestUnknownCallbackDataIgnored(t *testing.T) {
	api := &fakeAPI{}
	engine := &fakeRefresher{}
	b := newTestBot(api, engine)

	b.HandleUpdate(context.Background(), callbackUpdate("something-else", 42, 7))

	assert.Equal(t, 0, engine.calls)
	// Still acked so the client spinner stops.
	assert.Len(t, api.requests, 1)
	assert.Empty(t, api.sent)
}

func TestRefreshFailureLeavesMessageUntouched(t *testing.T) {
	api := &fakeAPI{}
	engine := &fakeRefresher{err: fmt.Errorf("snapshot not found")}
	b := newTestBot(api, engine)

	b.HandleUpdate(context.Background(), callbackUpdate("refresh", 42, 7))

	assert.Equal(t, 1, engine.calls)
	assert.Empty(t, api.sent)
}

func TestNonCallbackUpdateIgnored(t *testing.T) {
	api := &fakeAPI{}
	engine := &fakeRefresher{}
	b := newTestBot(api, engine)

	b.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Text: "/start", Chat: &tgbotapi.Chat{ID: 42}},
	})

	assert.Equal(t, 0, engine.calls)
	assert.Empty(t, api.requests)
	assert.Empty(t, api.sent)
}
