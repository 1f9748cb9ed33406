package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/i18n"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

// Callback data of the static inline buttons.
const (
	cbLanguagePrefix    = "language_setting_"
	cbSecretLevel       = "SCRT_LVL"
	cbCheckSubscription = "check_subscription"
	cbBroadcastPrefix   = "brdcast_"
	broadcastSendNow    = "send_now"
	broadcastCancel     = "cancel"
	languageNameUzbek   = "🇺🇿 O'zbekcha"
	languageNameEnglish = "🇬🇧 English"
	languageNameRussian = "🇷🇺 Русский"
	languageNameTurkish = "🇹🇷 Türkçe"
)

var languageNames = map[string]string{
	i18n.Uzbek:   languageNameUzbek,
	i18n.English: languageNameEnglish,
	i18n.Russian: languageNameRussian,
	i18n.Turkish: languageNameTurkish,
}

// mainKeyboard is the persistent reply keyboard.
func mainKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(i18n.T(lang, i18n.SearchButton)),
			tgbotapi.NewKeyboardButton(i18n.T(lang, i18n.DeepSearchButton)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(i18n.T(lang, i18n.LanguageButton)),
			tgbotapi.NewKeyboardButton(i18n.T(lang, i18n.HelpButton)),
			tgbotapi.NewKeyboardButton(i18n.T(lang, i18n.AboutButton)),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(i18n.Codes()))
	for _, code := range i18n.Codes() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(languageNames[code], cbLanguagePrefix+code),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func aboutKeyboard(lang string, admin bool) *tgbotapi.InlineKeyboardMarkup {
	if !admin {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, i18n.SecretLevelButton), cbSecretLevel),
	))
	return &kb
}

// subscriptionKeyboard lists every active channel with its membership mark
// and a re-check button.
func subscriptionKeyboard(lang string, channels []services.ChannelMembership) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels)+1)
	for i, m := range channels {
		mark := "❌"
		if m.Subscribed {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(fmt.Sprintf("Channel %d %s", i+1, mark), m.Channel.URL()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(i18n.T(lang, i18n.CheckSubscription), cbCheckSubscription),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func locationKeyboard(lang string) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonLocation(i18n.T(lang, i18n.SendLocationButton)),
	))
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// broadcastData is the callback data of a broadcast confirmation button:
// brdcast_{chat}_{message}_{action}.
func broadcastData(chatID int64, messageID int, action string) string {
	return cbBroadcastPrefix + strconv.FormatInt(chatID, 10) + "_" + strconv.Itoa(messageID) + "_" + action
}

func parseBroadcastData(data string) (chatID int64, messageID int, action string, ok bool) {
	rest, found := strings.CutPrefix(data, cbBroadcastPrefix)
	if !found {
		return 0, 0, "", false
	}
	parts := strings.SplitN(rest, "_", 3)
	if len(parts) != 3 {
		return 0, 0, "", false
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, "", false
	}
	messageID, err = strconv.Atoi(parts[1])
	if err != nil || messageID <= 0 {
		return 0, 0, "", false
	}
	switch parts[2] {
	case broadcastSendNow, broadcastCancel:
		return chatID, messageID, parts[2], true
	}
	return 0, 0, "", false
}

func broadcastConfirmKeyboard(lang string, chatID int64, messageID int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			i18n.T(lang, i18n.BroadcastSendNow), broadcastData(chatID, messageID, broadcastSendNow))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			i18n.T(lang, i18n.BroadcastCancel), broadcastData(chatID, messageID, broadcastCancel))),
	)
}
