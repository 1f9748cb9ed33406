package bot

import (
	"context"
	"errors"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/i18n"
	"github.com/tbourn/go-filebot-backend/internal/search"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

func userLang(u *domain.User) string { return lang(u.SelectedLanguage, u.StockLanguage) }

// known resolves the sender of m, answering rejections itself. It returns a
// nil user when the handler should stop.
func (d *Dispatcher) known(ctx context.Context, m *tgbotapi.Message) (*domain.User, error) {
	o, err := d.Guards.RequireKnownUser(ctx, m.From.ID)
	if err != nil {
		return nil, err
	}
	if !o.Authorized {
		return nil, d.reject(ctx, m.Chat.ID, o, lang("", m.From.LanguageCode))
	}
	return o.User, nil
}

func (d *Dispatcher) admin(ctx context.Context, m *tgbotapi.Message) (*domain.User, error) {
	o, err := d.Guards.RequireKnownUser(ctx, m.From.ID)
	if err != nil {
		return nil, err
	}
	if o = services.RequireAdmin(o); !o.Authorized {
		return nil, d.reject(ctx, m.Chat.ID, o, lang("", m.From.LanguageCode))
	}
	return o.User, nil
}

// cmdStart registers or refreshes the user. "/start <document_id>" is the
// website deep link and delivers that file right away.
func (d *Dispatcher) cmdStart(ctx context.Context, m *tgbotapi.Message) error {
	arg := strings.TrimSpace(m.CommandArguments())
	o, created, err := d.Guards.UpsertUser(ctx, profileOf(m.From, arg))
	if err != nil {
		return err
	}
	if !o.Authorized {
		return d.reject(ctx, m.Chat.ID, o, lang("", m.From.LanguageCode))
	}
	u := o.User
	l := userLang(u)

	if arg != "" {
		return d.deliverFile(ctx, m.Chat.ID, u, arg, i18n.T(l, i18n.FileFromWeb))
	}
	if err := d.send(ctx, m.Chat.ID, i18n.T(l, i18n.Welcome, html.EscapeString(u.FullName())), mainKeyboard(l)); err != nil {
		return err
	}
	if created && u.SelectedLanguage == "" {
		return d.send(ctx, m.Chat.ID, i18n.T(l, i18n.AskLanguage), languageKeyboard())
	}
	return nil
}

func (d *Dispatcher) cmdHelp(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.known(ctx, m)
	if u == nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), i18n.Help), nil)
}

func (d *Dispatcher) cmdAbout(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.known(ctx, m)
	if u == nil {
		return err
	}
	l := userLang(u)
	return d.send(ctx, m.Chat.ID, i18n.T(l, i18n.About), aboutKeyboard(l, u.IsAdmin))
}

func (d *Dispatcher) cmdLanguage(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.known(ctx, m)
	if u == nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), i18n.AskLanguage), languageKeyboard())
}

func (d *Dispatcher) cmdAdmin(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), i18n.AdminCommands), nil)
}

func (d *Dispatcher) cmdStats(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	st, err := d.Stats.UserStats(ctx)
	if err != nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), i18n.UserStats, st.Total, st.ActiveLast24), nil)
}

// cmdBroadcast arms broadcast capture: the admin's next message becomes the
// broadcast source.
func (d *Dispatcher) cmdBroadcast(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	if err := d.State.Update(ctx, m.From.ID, func(s *State) { s.AwaitingBroadcast = true }); err != nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), i18n.BroadcastAsk), nil)
}

func (d *Dispatcher) cmdCancel(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	if err := d.State.Update(ctx, m.From.ID, func(s *State) { s.AwaitingBroadcast = false }); err != nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), i18n.BroadcastAborted), nil)
}

func (d *Dispatcher) cmdAskLocation(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	l := userLang(u)
	return d.send(ctx, m.Chat.ID, i18n.T(l, i18n.ShareLocation), locationKeyboard(l))
}

func (d *Dispatcher) onLocation(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	if _, err := d.Directory.AddLocation(ctx, u.ID, m.Location.Latitude, m.Location.Longitude); err != nil {
		if errors.Is(err, services.ErrInvalidLocation) {
			return nil
		}
		return err
	}
	l := userLang(u)
	return d.send(ctx, m.Chat.ID, i18n.T(l, i18n.LocationThanks), mainKeyboard(l))
}

// onBroadcastMessage captures the message an admin wants to broadcast and
// asks for confirmation.
func (d *Dispatcher) onBroadcastMessage(ctx context.Context, m *tgbotapi.Message) error {
	u, err := d.admin(ctx, m)
	if u == nil {
		return err
	}
	if err := d.State.Update(ctx, m.From.ID, func(s *State) { s.AwaitingBroadcast = false }); err != nil {
		return err
	}
	l := userLang(u)
	return d.send(ctx, m.Chat.ID, i18n.T(l, i18n.BroadcastConfirm), broadcastConfirmKeyboard(l, m.Chat.ID, m.MessageID))
}

func (d *Dispatcher) onButton(ctx context.Context, m *tgbotapi.Message, key i18n.Key) error {
	switch key {
	case i18n.HelpButton:
		return d.cmdHelp(ctx, m)
	case i18n.AboutButton:
		return d.cmdAbout(ctx, m)
	case i18n.LanguageButton:
		return d.cmdLanguage(ctx, m)
	}

	u, err := d.known(ctx, m)
	if u == nil {
		return err
	}
	mode, reply := search.ModeNormal, i18n.NormalModeOn
	if key == i18n.DeepSearchButton {
		mode, reply = search.ModeDeep, i18n.DeepModeOn
	}
	if err := d.State.Update(ctx, m.From.ID, func(s *State) { s.Mode = mode }); err != nil {
		return err
	}
	return d.send(ctx, m.Chat.ID, i18n.T(userLang(u), reply), nil)
}

// onSearch runs a first-page search in the user's current mode.
func (d *Dispatcher) onSearch(ctx context.Context, m *tgbotapi.Message, text string) error {
	o, err := d.Guards.RequireKnownUser(ctx, m.From.ID)
	if err != nil {
		return err
	}
	if o, err = d.Guards.RequireSubscription(ctx, o); err != nil {
		return err
	}
	if !o.Authorized {
		return d.reject(ctx, m.Chat.ID, o, lang("", m.From.LanguageCode))
	}
	u := o.User

	st := d.State.Get(ctx, m.From.ID)
	page, err := d.Search.Find(ctx, u.ID, text, st.Mode)
	if err != nil {
		return err
	}
	st.LastQuery = page.Query
	if err := d.State.Put(ctx, m.From.ID, st); err != nil {
		return err
	}
	body, kb := services.RenderPage(page.Items, page.Total, page.Page, page.Mode, page.Query, userLang(u))
	return d.send(ctx, m.Chat.ID, body, kb)
}

// deliverFile sends a document and answers failures in the chat.
func (d *Dispatcher) deliverFile(ctx context.Context, chatID int64, u *domain.User, documentID, note string) error {
	l := userLang(u)
	err := d.Files.SendFile(ctx, chatID, documentID, note)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrFileNotFound):
		return d.send(ctx, chatID, i18n.T(l, i18n.FileNotFound), nil)
	case errors.Is(err, services.ErrFileNotAvailable):
		return d.send(ctx, chatID, i18n.T(l, i18n.FileNotAvailable), nil)
	case errors.Is(err, services.ErrBotNotConfigured):
		return err
	}
	return d.send(ctx, chatID, i18n.T(l, i18n.FileSendFailed), nil)
}
