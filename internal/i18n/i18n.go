// Package i18n holds the bot's user-facing strings in Uzbek, English,
// Russian and Turkish, and matches Telegram language codes to one of them.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Supported language codes, in matcher preference order.
const (
	Uzbek   = "uz"
	English = "en"
	Russian = "ru"
	Turkish = "tr"
)

// Default is used when nothing else matches.
const Default = Uzbek

var (
	tags    = []language.Tag{language.Uzbek, language.English, language.Russian, language.Turkish}
	codes   = []string{Uzbek, English, Russian, Turkish}
	matcher = language.NewMatcher(tags)
)

// Codes returns the supported language codes.
func Codes() []string { return append([]string(nil), codes...) }

// Supported reports whether code is exactly one of the supported codes.
func Supported(code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Match returns the first of candidates that maps to a supported language,
// e.g. "en-US" -> "en", "ru-RU" -> "ru". Blank and unparseable candidates
// are skipped. With no usable candidate it returns Default.
func Match(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		_, idx, conf := matcher.Match(tag)
		if conf >= language.High {
			return codes[idx]
		}
	}
	return Default
}

// Key identifies a message.
type Key string

const (
	Welcome           Key = "welcome"
	AskLanguage       Key = "ask_language"
	LanguageChosen    Key = "language_chosen"
	Help              Key = "help"
	About             Key = "about"
	StartFirst        Key = "start_first"
	AdminOnly         Key = "admin_only"
	Subscribe         Key = "subscribe"
	CheckSubscription Key = "check_subscription"

	SearchButton     Key = "search_button"
	DeepSearchButton Key = "deep_search_button"
	LanguageButton   Key = "language_button"
	HelpButton       Key = "help_button"
	AboutButton      Key = "about_button"
	NormalModeOn     Key = "normal_mode_on"
	DeepModeOn       Key = "deep_mode_on"
	ResultsFound     Key = "results_found"
	NoResults        Key = "no_results"
	PrevPage         Key = "prev_page"
	NextPage         Key = "next_page"

	FileSending      Key = "file_sending"
	FileNotAvailable Key = "file_not_available"
	FileNotFound     Key = "file_not_found"
	FileSendFailed   Key = "file_send_failed"
	FileFromWeb      Key = "file_from_web"

	ShareLocation      Key = "share_location"
	SendLocationButton Key = "send_location_button"
	LocationThanks     Key = "location_thanks"

	SecretLevelButton Key = "secret_level_button"
	SecretLevel       Key = "secret_level"
	UserStats         Key = "user_stats"
	AdminCommands     Key = "admin_commands"

	BroadcastAsk       Key = "broadcast_ask"
	BroadcastConfirm   Key = "broadcast_confirm"
	BroadcastSendNow   Key = "broadcast_send_now"
	BroadcastCancel    Key = "broadcast_cancel"
	BroadcastCancelled Key = "broadcast_cancelled"
	BroadcastQueued    Key = "broadcast_queued"
	BroadcastAborted   Key = "broadcast_aborted"
)

var catalog = map[Key]map[string]string{
	Welcome: {
		Uzbek:   "Assalomu alaykum, %s! Qidirmoqchi bo'lgan faylingiz nomini yozing.",
		English: "Hello, %s! Type the name of the file you are looking for.",
		Russian: "Здравствуйте, %s! Напишите название файла, который ищете.",
		Turkish: "Merhaba, %s! Aradığınız dosyanın adını yazın.",
	},
	AskLanguage: {
		Uzbek:   "Tilni tanlang:",
		English: "Choose your language:",
		Russian: "Выберите язык:",
		Turkish: "Dilinizi seçin:",
	},
	LanguageChosen: {
		Uzbek:   "✅ Til o'zgartirildi.",
		English: "✅ Language updated.",
		Russian: "✅ Язык изменён.",
		Turkish: "✅ Dil güncellendi.",
	},
	Help: {
		Uzbek:   "Fayl nomini yozing va natijalardan keraklisini tanlang. Chuqur qidiruv fayl ichidagi matn bo'yicha ham qidiradi.",
		English: "Type a file name and pick a result. Deep search also looks inside the file contents.",
		Russian: "Введите название файла и выберите результат. Глубокий поиск ищет и по содержимому файлов.",
		Turkish: "Bir dosya adı yazın ve bir sonuç seçin. Derin arama dosya içeriğinde de arar.",
	},
	About: {
		Uzbek:   "Bu bot hujjatlarni tez topib, Telegram orqali yuboradi.",
		English: "This bot finds documents quickly and delivers them through Telegram.",
		Russian: "Этот бот быстро находит документы и отправляет их через Telegram.",
		Turkish: "Bu bot belgeleri hızla bulur ve Telegram üzerinden gönderir.",
	},
	StartFirst: {
		Uzbek:   "Iltimos, avval /start buyrug'ini yuboring.",
		English: "Please send /start first.",
		Russian: "Пожалуйста, сначала отправьте /start.",
		Turkish: "Lütfen önce /start gönderin.",
	},
	AdminOnly: {
		Uzbek:   "Bu buyruq faqat adminlar uchun.",
		English: "This command is for admins only.",
		Russian: "Эта команда только для администраторов.",
		Turkish: "Bu komut yalnızca yöneticiler içindir.",
	},
	Subscribe: {
		Uzbek:   "Botdan foydalanish uchun quyidagi kanallarga obuna bo'ling:",
		English: "Subscribe to the channels below to use the bot:",
		Russian: "Подпишитесь на каналы ниже, чтобы пользоваться ботом:",
		Turkish: "Botu kullanmak için aşağıdaki kanallara abone olun:",
	},
	CheckSubscription: {
		Uzbek:   "✅ Tekshirish",
		English: "✅ Check",
		Russian: "✅ Проверить",
		Turkish: "✅ Kontrol et",
	},
	SearchButton: {
		Uzbek:   "🔍 Qidiruv",
		English: "🔍 Search",
		Russian: "🔍 Поиск",
		Turkish: "🔍 Arama",
	},
	DeepSearchButton: {
		Uzbek:   "🔎 Chuqur qidiruv",
		English: "🔎 Deep search",
		Russian: "🔎 Глубокий поиск",
		Turkish: "🔎 Derin arama",
	},
	LanguageButton: {
		Uzbek:   "🌐 Tilni o'zgartirish",
		English: "🌐 Change language",
		Russian: "🌐 Сменить язык",
		Turkish: "🌐 Dili değiştir",
	},
	HelpButton: {
		Uzbek:   "❓ Yordam",
		English: "❓ Help",
		Russian: "❓ Помощь",
		Turkish: "❓ Yardım",
	},
	AboutButton: {
		Uzbek:   "ℹ️ Biz haqimizda",
		English: "ℹ️ About",
		Russian: "ℹ️ О нас",
		Turkish: "ℹ️ Hakkımızda",
	},
	NormalModeOn: {
		Uzbek:   "Oddiy qidiruv rejimi yoqildi.",
		English: "Normal search mode is on.",
		Russian: "Включён обычный поиск.",
		Turkish: "Normal arama modu açık.",
	},
	DeepModeOn: {
		Uzbek:   "Chuqur qidiruv rejimi yoqildi.",
		English: "Deep search mode is on.",
		Russian: "Включён глубокий поиск.",
		Turkish: "Derin arama modu açık.",
	},
	ResultsFound: {
		Uzbek:   "«%s» bo'yicha %d ta natija topildi:",
		English: "Found %[2]d results for «%[1]s»:",
		Russian: "По запросу «%s» найдено результатов: %d",
		Turkish: "«%s» için %d sonuç bulundu:",
	},
	NoResults: {
		Uzbek:   "«%s» bo'yicha hech narsa topilmadi.",
		English: "No results found for «%s».",
		Russian: "По запросу «%s» ничего не найдено.",
		Turkish: "«%s» için sonuç bulunamadı.",
	},
	PrevPage: {
		Uzbek:   "⬅️ Oldingi",
		English: "⬅️ Prev",
		Russian: "⬅️ Назад",
		Turkish: "⬅️ Önceki",
	},
	NextPage: {
		Uzbek:   "Keyingi ➡️",
		English: "Next ➡️",
		Russian: "Далее ➡️",
		Turkish: "Sonraki ➡️",
	},
	FileSending: {
		Uzbek:   "Fayl yuborilmoqda...",
		English: "Sending the file...",
		Russian: "Отправляю файл...",
		Turkish: "Dosya gönderiliyor...",
	},
	FileNotAvailable: {
		Uzbek:   "Bu fayl hozircha yuborish uchun mavjud emas.",
		English: "This file is not available for sending yet.",
		Russian: "Этот файл пока недоступен для отправки.",
		Turkish: "Bu dosya henüz gönderilemiyor.",
	},
	FileNotFound: {
		Uzbek:   "Bunday fayl topilmadi.",
		English: "File not found.",
		Russian: "Файл не найден.",
		Turkish: "Dosya bulunamadı.",
	},
	FileSendFailed: {
		Uzbek:   "Faylni yuborishda xatolik yuz berdi.",
		English: "Could not send the file.",
		Russian: "Не удалось отправить файл.",
		Turkish: "Dosya gönderilemedi.",
	},
	FileFromWeb: {
		Uzbek:   "Sayt orqali so'ralgan fayl.",
		English: "File requested from the website.",
		Russian: "Файл, запрошенный с сайта.",
		Turkish: "Web sitesinden istenen dosya.",
	},
	ShareLocation: {
		Uzbek:   "Joylashuvingizni yuboring.",
		English: "Please share your location.",
		Russian: "Пожалуйста, отправьте своё местоположение.",
		Turkish: "Lütfen konumunuzu paylaşın.",
	},
	SendLocationButton: {
		Uzbek:   "📍 Joylashuvni yuborish",
		English: "📍 Send location",
		Russian: "📍 Отправить местоположение",
		Turkish: "📍 Konum gönder",
	},
	LocationThanks: {
		Uzbek:   "Rahmat! Joylashuv saqlandi.",
		English: "Thanks! Location saved.",
		Russian: "Спасибо! Местоположение сохранено.",
		Turkish: "Teşekkürler! Konum kaydedildi.",
	},
	SecretLevelButton: {
		Uzbek:   "🔐 Maxfiy daraja",
		English: "🔐 Secret level",
		Russian: "🔐 Секретный уровень",
		Turkish: "🔐 Gizli seviye",
	},
	SecretLevel: {
		Uzbek:   "Maxfiy xona ochildi. Foydalanuvchilar: %d, so'nggi 24 soatda faol: %d",
		English: "Secret room unlocked. Users: %d, active in the last 24h: %d",
		Russian: "Секретная комната открыта. Пользователей: %d, активны за 24 ч: %d",
		Turkish: "Gizli oda açıldı. Kullanıcılar: %d, son 24 saatte aktif: %d",
	},
	UserStats: {
		Uzbek:   "👥 Foydalanuvchilar: %d\n🟢 So'nggi 24 soatda faol: %d",
		English: "👥 Users: %d\n🟢 Active in the last 24h: %d",
		Russian: "👥 Пользователей: %d\n🟢 Активны за 24 ч: %d",
		Turkish: "👥 Kullanıcılar: %d\n🟢 Son 24 saatte aktif: %d",
	},
	AdminCommands: {
		Uzbek:   "/stats - statistika\n/broadcast - reklama yuborish\n/ask_location - joylashuv so'rash",
		English: "/stats - statistics\n/broadcast - send a broadcast\n/ask_location - request a location",
		Russian: "/stats - статистика\n/broadcast - рассылка\n/ask_location - запросить местоположение",
		Turkish: "/stats - istatistikler\n/broadcast - duyuru gönder\n/ask_location - konum iste",
	},
	BroadcastAsk: {
		Uzbek:   "Reklama uchun xabarni forward qiling. Bekor qilish: /cancel",
		English: "Forward the message to broadcast. Cancel with /cancel",
		Russian: "Перешлите сообщение для рассылки. Отмена: /cancel",
		Turkish: "Yayınlanacak mesajı iletin. İptal: /cancel",
	},
	BroadcastConfirm: {
		Uzbek:   "Ushbu xabar barcha foydalanuvchilarga yuborilsinmi?",
		English: "Send this message to all users?",
		Russian: "Отправить это сообщение всем пользователям?",
		Turkish: "Bu mesaj tüm kullanıcılara gönderilsin mi?",
	},
	BroadcastSendNow: {
		Uzbek:   "✅ Hozir yuborish",
		English: "✅ Send now",
		Russian: "✅ Отправить сейчас",
		Turkish: "✅ Şimdi gönder",
	},
	BroadcastCancel: {
		Uzbek:   "❌ Bekor qilish",
		English: "❌ Cancel",
		Russian: "❌ Отмена",
		Turkish: "❌ İptal",
	},
	BroadcastCancelled: {
		Uzbek:   "❌ Reklama bekor qilindi.",
		English: "❌ Broadcast cancelled.",
		Russian: "❌ Рассылка отменена.",
		Turkish: "❌ Yayın iptal edildi.",
	},
	BroadcastQueued: {
		Uzbek:   "✅ Reklama (ID: %d) navbatga qo'yildi!",
		English: "✅ Broadcast (ID: %d) queued!",
		Russian: "✅ Рассылка (ID: %d) поставлена в очередь!",
		Turkish: "✅ Yayın (ID: %d) sıraya alındı!",
	},
	BroadcastAborted: {
		Uzbek:   "Reklama yaratish bekor qilindi.",
		English: "Broadcast creation cancelled.",
		Russian: "Создание рассылки отменено.",
		Turkish: "Yayın oluşturma iptal edildi.",
	},
}

// T returns the message for key in lang, formatted with args. Unknown
// languages fall back to Default; unknown keys render as the key itself.
func T(lang string, key Key, args ...any) string {
	m, ok := catalog[key]
	if !ok {
		return string(key)
	}
	s, ok := m[lang]
	if !ok {
		s = m[Default]
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}

// Button reports which key, if any, text is the label of in any language.
// It lets reply-keyboard presses be recognised regardless of the language
// the keyboard was rendered in.
func Button(text string, keys ...Key) (Key, bool) {
	text = strings.TrimSpace(text)
	for _, k := range keys {
		for _, s := range catalog[k] {
			if s == text {
				return k, true
			}
		}
	}
	return "", false
}
