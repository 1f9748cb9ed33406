package services

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/i18n"
	"github.com/tbourn/go-filebot-backend/internal/search"
	"github.com/tbourn/go-filebot-backend/internal/utils"
)

// Callback data prefixes and limits.
const (
	navPrefix     = "search"
	getFilePrefix = "getfile_"
	// IgnoreCallback marks the non-interactive page indicator.
	IgnoreCallback = "ignore"
	// MaxCallbackData is Telegram's limit on callback_data, in bytes.
	MaxCallbackData = 64
)

// EncodeNav builds the callback data of a pagination button:
// search_{mode}_{page}_{query}. The query goes last so it may contain "_";
// it is cut on a rune boundary when the result would exceed
// MaxCallbackData bytes.
func EncodeNav(mode search.Mode, page int, query string) string {
	head := navPrefix + "_" + string(mode) + "_" + strconv.Itoa(page) + "_"
	return head + truncateBytes(query, MaxCallbackData-len(head))
}

// DecodeNav parses data produced by EncodeNav. The first three
// "_"-separated fields are fixed; the remainder, rejoined, is the query.
func DecodeNav(data string) (mode search.Mode, page int, query string, ok bool) {
	parts := strings.SplitN(data, "_", 4)
	if len(parts) < 3 || parts[0] != navPrefix {
		return "", 0, "", false
	}
	switch search.Mode(parts[1]) {
	case search.ModeNormal, search.ModeDeep:
		mode = search.Mode(parts[1])
	default:
		return "", 0, "", false
	}
	page, err := strconv.Atoi(parts[2])
	if err != nil || page < 1 {
		return "", 0, "", false
	}
	if len(parts) == 4 {
		query = parts[3]
	}
	return mode, page, query, true
}

// GetFileData is the callback data of a result button.
func GetFileData(documentID string) string { return getFilePrefix + documentID }

// ParseGetFile extracts the document id from a result button callback.
func ParseGetFile(data string) (string, bool) {
	id, ok := strings.CutPrefix(data, getFilePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RenderPage builds the message text and inline keyboard of one results
// page: a button per item, then a navigation row with prev (page > 1), a
// "page/pages" indicator and next (page < pages). With total 0 it returns
// the no-results text and a nil keyboard.
func RenderPage(items []domain.Product, total int64, page int, mode search.Mode, query, lang string) (string, *tgbotapi.InlineKeyboardMarkup) {
	q := html.EscapeString(query)
	if total <= 0 {
		return i18n.T(lang, i18n.NoResults, q), nil
	}
	if page < 1 {
		page = 1
	}
	pages := utils.TotalPages(total, PageSize)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items)+1)
	for _, p := range items {
		label := fmt.Sprintf("📄 %s\n👁 %d | ⬇️ %d", p.Title, p.ViewCount, p.DownloadCount)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, GetFileData(p.DocumentID)),
		))
	}

	nav := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	if page > 1 {
		prev := page - 1
		if prev > pages {
			prev = pages
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, i18n.PrevPage), EncodeNav(mode, prev, query)))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", page, pages), IgnoreCallback))
	if page < pages {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, i18n.NextPage), EncodeNav(mode, page+1, query)))
	}
	rows = append(rows, nav)

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return i18n.T(lang, i18n.ResultsFound, q, total), &kb
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
