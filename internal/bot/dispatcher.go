// Package bot turns Telegram updates into service calls. The Dispatcher
// routes each update to one handler; every handler starts by running the
// guards it needs and then talks to the services and the Messenger.
//
// Conversation state (search mode, last query, pending broadcast capture)
// lives in a StateStore backed by the shared cache, never in process memory,
// so any replica can serve any update.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-filebot-backend/internal/i18n"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/services"
	"github.com/tbourn/go-filebot-backend/internal/telegram"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Dispatcher routes updates to handlers.
type Dispatcher struct {
	Bot        telegram.Messenger
	Guards     *services.Guards
	Search     *services.SearchService
	Files      *services.FileService
	Broadcasts *services.BroadcastService
	Stats      *services.StatsService
	Directory  *services.DirectoryService
	State      *StateStore
}

// Handle processes one update. Errors returned are infrastructure failures
// (database, cache); user-facing problems are answered in the chat.
func (d *Dispatcher) Handle(ctx context.Context, upd tgbotapi.Update) error {
	if d.Bot == nil {
		return services.ErrBotNotConfigured
	}
	ctx, span := otel.Tracer("bot/Dispatcher").Start(ctx, "Handle")
	defer span.End()
	span.SetAttributes(attribute.Int("telegram.update_id", upd.UpdateID))

	lg := log.Ctx(ctx)
	if lg.GetLevel() == zerolog.Disabled {
		lg = &log.Logger
	}
	ctx = lg.With().Int("update_id", upd.UpdateID).Logger().WithContext(ctx)

	var err error
	switch {
	case upd.CallbackQuery != nil:
		err = d.onCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		err = d.onMessage(ctx, upd.Message)
	}
	if err != nil {
		span.RecordError(err)
		zerolog.Ctx(ctx).Error().Err(err).Msg("update handling failed")
	}
	return err
}

func (d *Dispatcher) onMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil || m.From.IsBot {
		return nil
	}
	if m.IsCommand() {
		return d.onCommand(ctx, m)
	}
	if m.Location != nil {
		return d.onLocation(ctx, m)
	}
	if d.State.Get(ctx, m.From.ID).AwaitingBroadcast {
		return d.onBroadcastMessage(ctx, m)
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return nil
	}
	if key, ok := i18n.Button(text,
		i18n.SearchButton, i18n.DeepSearchButton, i18n.LanguageButton,
		i18n.HelpButton, i18n.AboutButton,
	); ok {
		return d.onButton(ctx, m, key)
	}
	return d.onSearch(ctx, m, text)
}

func (d *Dispatcher) onCommand(ctx context.Context, m *tgbotapi.Message) error {
	switch m.Command() {
	case "start":
		return d.cmdStart(ctx, m)
	case "help":
		return d.cmdHelp(ctx, m)
	case "about":
		return d.cmdAbout(ctx, m)
	case "language":
		return d.cmdLanguage(ctx, m)
	case "admin":
		return d.cmdAdmin(ctx, m)
	case "stats":
		return d.cmdStats(ctx, m)
	case "broadcast":
		return d.cmdBroadcast(ctx, m)
	case "cancel":
		return d.cmdCancel(ctx, m)
	case "ask_location":
		return d.cmdAskLocation(ctx, m)
	}
	return d.cmdHelp(ctx, m)
}

func (d *Dispatcher) onCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.From == nil {
		return nil
	}
	data := cq.Data
	switch {
	case data == services.IgnoreCallback:
		return d.answer(ctx, cq, "")
	case data == cbCheckSubscription:
		return d.cbCheckSubscription(ctx, cq)
	case data == cbSecretLevel:
		return d.cbSecretLevel(ctx, cq)
	case strings.HasPrefix(data, cbLanguagePrefix):
		return d.cbLanguage(ctx, cq)
	case strings.HasPrefix(data, cbBroadcastPrefix):
		return d.cbBroadcast(ctx, cq)
	case strings.HasPrefix(data, "getfile_"):
		return d.cbGetFile(ctx, cq)
	case strings.HasPrefix(data, "search_"):
		return d.cbSearchPage(ctx, cq)
	}
	zerolog.Ctx(ctx).Debug().Str("data", data).Msg("unknown callback")
	return d.answer(ctx, cq, "")
}

// lang picks the reply language of a user: explicit choice, then the
// Telegram client language, then the default.
func lang(selected, stock string) string {
	return i18n.Match(selected, stock)
}

func profileOf(u *tgbotapi.User, deeplink string) repo.UserProfile {
	return repo.UserProfile{
		TelegramID:   u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
		Deeplink:     deeplink,
	}
}

// send replies with text and optional markup. A nil markup pointer is
// passed on as an untyped nil.
func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, markup any) error {
	if kb, ok := markup.(*tgbotapi.InlineKeyboardMarkup); ok && kb == nil {
		markup = nil
	}
	_, err := d.Bot.SendText(ctx, chatID, text, markup)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
	return nil
}

func (d *Dispatcher) edit(ctx context.Context, cq *tgbotapi.CallbackQuery, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	if cq.Message == nil || cq.Message.Chat == nil {
		return d.send(ctx, cq.From.ID, text, kb)
	}
	if err := d.Bot.EditText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, text, kb); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("edit message failed")
	}
	return nil
}

func (d *Dispatcher) answer(ctx context.Context, cq *tgbotapi.CallbackQuery, text string) error {
	if err := d.Bot.AnswerCallback(ctx, cq.ID, text); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("answer callback failed")
	}
	return nil
}

// reject answers a guard rejection in the user's chat.
func (d *Dispatcher) reject(ctx context.Context, chatID int64, o services.Outcome, fallbackLang string) error {
	l := fallbackLang
	if o.User != nil {
		l = lang(o.User.SelectedLanguage, o.User.StockLanguage)
	}
	switch o.Reason {
	case services.ReasonUnknownUser:
		return d.send(ctx, chatID, i18n.T(l, i18n.StartFirst), nil)
	case services.ReasonNotAdmin:
		return d.send(ctx, chatID, i18n.T(l, i18n.AdminOnly), nil)
	case services.ReasonNotSubscribed:
		return d.send(ctx, chatID, i18n.T(l, i18n.Subscribe), subscriptionKeyboard(l, o.Channels))
	}
	zerolog.Ctx(ctx).Info().Str("reason", string(o.Reason)).Int64("chat_id", chatID).Msg("update rejected")
	return nil
}
