// Package telegram adapts the Telegram Bot API client to the narrow
// Messenger interface the services depend on. Every call is bounded by the
// caller's context and by the HTTP client timeout.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/config"
)

// Messenger is the subset of the Bot API used by the application.
type Messenger interface {
	ForwardMessage(ctx context.Context, chatID, fromChatID int64, messageID int) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error
	// SendText sends an HTML message; markup may be nil, an inline keyboard
	// or a reply keyboard. It returns the id of the sent message.
	SendText(ctx context.Context, chatID int64, text string, markup any) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// MemberStatus returns the membership status of userID in chatID
	// ("creator", "administrator", "member", "restricted", "left", "kicked").
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// Client implements Messenger with go-telegram-bot-api.
type Client struct {
	API *tgbotapi.BotAPI
}

// New authenticates against the Bot API (getMe) and returns a client.
func New(cfg config.TelegramConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, ErrNoToken
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Client{API: api}, nil
}

// ErrNoToken is returned by New when BOT_TOKEN is empty.
var ErrNoToken = errors.New("telegram: bot token not configured")

// Username returns the bot's @username without the "@".
func (c *Client) Username() string { return c.API.Self.UserName }

// call runs fn on its own goroutine so ctx cancellation unblocks the caller
// even while the HTTP round-trip is still in flight. The request itself is
// not cancelled and may still take effect after ctx.Err() is returned.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// ForwardMessage forwards (fromChatID, messageID) to chatID.
func (c *Client) ForwardMessage(ctx context.Context, chatID, fromChatID int64, messageID int) error {
	_, err := call(ctx, func() (tgbotapi.Message, error) {
		return c.API.Send(tgbotapi.NewForward(chatID, fromChatID, messageID))
	})
	return err
}

// SendDocument re-sends an already uploaded file by its file id.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	_, err := call(ctx, func() (tgbotapi.Message, error) { return c.API.Send(doc) })
	return err
}

// SendText sends an HTML message with optional markup.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := call(ctx, func() (tgbotapi.Message, error) { return c.API.Send(msg) })
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the text and inline keyboard of a sent message.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.API.Request(edit) })
	return err
}

// AnswerCallback acknowledges a callback query, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) {
		return c.API.Request(tgbotapi.NewCallback(callbackID, text))
	})
	return err
}

// MemberStatus looks up userID's membership in chatID.
func (c *Client) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	m, err := call(ctx, func() (tgbotapi.ChatMember, error) {
		return c.API.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
		})
	})
	if err != nil {
		return "", err
	}
	return m.Status, nil
}

// ErrorText extracts the human-readable description of a Bot API error.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// IsBlockedError reports whether err means the user blocked the bot or the
// account no longer exists.
func IsBlockedError(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(ErrorText(err))
	return strings.Contains(low, "bot was blocked by the user") ||
		strings.Contains(low, "user is deactivated")
}
