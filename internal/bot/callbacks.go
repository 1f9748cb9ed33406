package bot

import (
	"context"
	"errors"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/i18n"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

func (d *Dispatcher) knownCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) (*domain.User, error) {
	o, err := d.Guards.RequireKnownUser(ctx, cq.From.ID)
	if err != nil {
		return nil, err
	}
	if !o.Authorized {
		_ = d.answer(ctx, cq, "")
		return nil, d.reject(ctx, cq.From.ID, o, lang("", cq.From.LanguageCode))
	}
	return o.User, nil
}

func (d *Dispatcher) adminCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) (*domain.User, error) {
	o, err := d.Guards.RequireKnownUser(ctx, cq.From.ID)
	if err != nil {
		return nil, err
	}
	if o = services.RequireAdmin(o); !o.Authorized {
		_ = d.answer(ctx, cq, "")
		return nil, d.reject(ctx, cq.From.ID, o, lang("", cq.From.LanguageCode))
	}
	return o.User, nil
}

func (d *Dispatcher) cbLanguage(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	u, err := d.knownCallback(ctx, cq)
	if u == nil {
		return err
	}
	code := strings.TrimPrefix(cq.Data, cbLanguagePrefix)
	if err := d.Directory.SetLanguage(ctx, u.ID, code); err != nil {
		if errors.Is(err, services.ErrUnsupportedLanguage) {
			return d.answer(ctx, cq, "")
		}
		return err
	}
	_ = d.answer(ctx, cq, "")
	if err := d.edit(ctx, cq, i18n.T(code, i18n.LanguageChosen), nil); err != nil {
		return err
	}
	return d.send(ctx, cq.From.ID, i18n.T(code, i18n.Welcome, html.EscapeString(u.FullName())), mainKeyboard(code))
}

func (d *Dispatcher) cbCheckSubscription(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	o, err := d.Guards.RequireKnownUser(ctx, cq.From.ID)
	if err != nil {
		return err
	}
	if o, err = d.Guards.RequireSubscription(ctx, o); err != nil {
		return err
	}
	if !o.Authorized && o.Reason != services.ReasonNotSubscribed {
		_ = d.answer(ctx, cq, "")
		return d.reject(ctx, cq.From.ID, o, lang("", cq.From.LanguageCode))
	}
	l := userLang(o.User)
	if !o.Authorized {
		_ = d.answer(ctx, cq, i18n.T(l, i18n.Subscribe))
		kb := subscriptionKeyboard(l, o.Channels)
		return d.edit(ctx, cq, i18n.T(l, i18n.Subscribe), &kb)
	}
	_ = d.answer(ctx, cq, "")
	return d.edit(ctx, cq, i18n.T(l, i18n.Welcome, html.EscapeString(o.User.FullName())), nil)
}

func (d *Dispatcher) cbSecretLevel(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	u, err := d.adminCallback(ctx, cq)
	if u == nil {
		return err
	}
	_ = d.answer(ctx, cq, "")
	st, err := d.Stats.UserStats(ctx)
	if err != nil {
		return err
	}
	return d.edit(ctx, cq, i18n.T(userLang(u), i18n.SecretLevel, st.Total, st.ActiveLast24), nil)
}

// cbBroadcast handles the confirmation buttons of a captured broadcast.
func (d *Dispatcher) cbBroadcast(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	u, err := d.adminCallback(ctx, cq)
	if u == nil {
		return err
	}
	_ = d.answer(ctx, cq, "")
	l := userLang(u)
	chatID, messageID, action, ok := parseBroadcastData(cq.Data)
	if !ok {
		return nil
	}
	if action == broadcastCancel {
		return d.edit(ctx, cq, i18n.T(l, i18n.BroadcastCancelled), nil)
	}
	b, err := d.Broadcasts.Create(ctx, chatID, messageID, nil)
	if err != nil {
		return err
	}
	return d.edit(ctx, cq, i18n.T(l, i18n.BroadcastQueued, b.ID), nil)
}

func (d *Dispatcher) cbGetFile(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	u, err := d.knownCallback(ctx, cq)
	if u == nil {
		return err
	}
	id, ok := services.ParseGetFile(cq.Data)
	if !ok {
		return d.answer(ctx, cq, "")
	}
	_ = d.answer(ctx, cq, i18n.T(userLang(u), i18n.FileSending))
	return d.deliverFile(ctx, u.TelegramID, u, id, "")
}

// cbSearchPage re-runs a search for another page and edits the results
// message in place. Callbacks without a query fall back to the user's last
// query.
func (d *Dispatcher) cbSearchPage(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	u, err := d.knownCallback(ctx, cq)
	if u == nil {
		return err
	}
	_ = d.answer(ctx, cq, "")
	l := userLang(u)

	mode, page, query, ok := services.DecodeNav(cq.Data)
	if !ok {
		return d.edit(ctx, cq, i18n.T(l, i18n.NoResults, ""), nil)
	}
	if query == "" {
		query = d.State.Get(ctx, cq.From.ID).LastQuery
	}
	if strings.TrimSpace(query) == "" {
		return d.edit(ctx, cq, i18n.T(l, i18n.NoResults, ""), nil)
	}

	res, err := d.Search.Results(ctx, query, mode, page)
	if err != nil {
		return err
	}
	body, kb := services.RenderPage(res.Items, res.Total, res.Page, res.Mode, res.Query, l)
	return d.edit(ctx, cq, body, kb)
}
