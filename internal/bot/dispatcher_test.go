package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-filebot-backend/internal/cache"
	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/queue"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/search"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

// ---------- fakes ----------

type sentMsg struct {
	chatID int64
	text   string
	markup any
}

type editedMsg struct {
	chatID int64
	msgID  int
	text   string
	kb     *tgbotapi.InlineKeyboardMarkup
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMsg
	edits   []editedMsg
	docs    []string
	answers []string
	members map[int64]string
}

func (f *fakeMessenger) ForwardMessage(context.Context, int64, int64, int) error { return nil }

func (f *fakeMessenger) SendDocument(_ context.Context, chatID int64, fileID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, fmt.Sprintf("%d|%s|%s", chatID, fileID, caption))
	return nil
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string, markup any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{chatID, text, markup})
	return len(f.sent), nil
}

func (f *fakeMessenger) EditText(_ context.Context, chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editedMsg{chatID, msgID, text, kb})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) MemberStatus(_ context.Context, chatID, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.members[chatID]; ok {
		return s, nil
	}
	return "left", nil
}

func (f *fakeMessenger) lastSent(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeMessenger) lastEdit(t *testing.T) editedMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		t.Fatal("nothing edited")
	}
	return f.edits[len(f.edits)-1]
}

type fakeBackend struct {
	mu    sync.Mutex
	ids   []string
	modes []search.Mode
}

func (b *fakeBackend) Search(_ context.Context, q search.Query) (search.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modes = append(b.modes, q.Mode)
	if q.From >= len(b.ids) {
		return search.Result{Total: int64(len(b.ids))}, nil
	}
	end := q.From + q.Size
	if end > len(b.ids) {
		end = len(b.ids)
	}
	return search.Result{Total: int64(len(b.ids)), IDs: b.ids[q.From:end]}, nil
}

// ---------- fixture ----------

type fixture struct {
	d       *Dispatcher
	db      *gorm.DB
	bot     *fakeMessenger
	backend *fakeBackend
	q       *queue.RedisQueue
	mr      *miniredis.Miniredis
	nextMsg int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{}, &domain.SubscribeChannel{}, &domain.Location{}, &domain.SearchQuery{},
		&domain.Broadcast{}, &domain.BroadcastRecipient{},
		&domain.Document{}, &domain.Product{}, &domain.DocumentError{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	store := cache.NewRedis(rc)

	bot := &fakeMessenger{members: map[int64]string{}}
	be := &fakeBackend{}
	q := queue.NewRedisQueue(rc, "test:jobs")
	bs := services.NewBroadcastService(db, q, bot)
	bs.EnqueueDelay = 0

	d := &Dispatcher{
		Bot:        bot,
		Guards:     services.NewGuards(db, bot),
		Search:     services.NewSearchService(db, be, store),
		Files:      services.NewFileService(db, bot),
		Broadcasts: bs,
		Stats:      services.NewStatsService(repo.NewStatsStore(db), store),
		Directory:  services.NewDirectoryService(db),
		State:      NewStateStore(store, time.Hour),
	}
	return &fixture{d: d, db: db, bot: bot, backend: be, q: q, mr: mr, nextMsg: 100}
}

func (f *fixture) message(from int64, text string) tgbotapi.Update {
	f.nextMsg++
	m := &tgbotapi.Message{
		MessageID: f.nextMsg,
		From:      &tgbotapi.User{ID: from, FirstName: "Ann", LanguageCode: "en"},
		Chat:      &tgbotapi.Chat{ID: from},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{UpdateID: f.nextMsg, Message: m}
}

func (f *fixture) callback(from int64, data string) tgbotapi.Update {
	f.nextMsg++
	return tgbotapi.Update{
		UpdateID: f.nextMsg,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      fmt.Sprintf("cb%d", f.nextMsg),
			From:    &tgbotapi.User{ID: from, FirstName: "Ann", LanguageCode: "en"},
			Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: from}},
			Data:    data,
		},
	}
}

func (f *fixture) handle(t *testing.T, u tgbotapi.Update) {
	t.Helper()
	if err := f.d.Handle(context.Background(), u); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func (f *fixture) product(t *testing.T, docID, title, fileID string) {
	t.Helper()
	d := &domain.Document{ID: docID, Completed: true, TelegramFileID: &fileID}
	if err := f.db.Create(d).Error; err != nil {
		t.Fatalf("create doc: %v", err)
	}
	if err := f.db.Create(&domain.Product{Title: title, Slug: docID, DocumentID: docID}).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
}

func (f *fixture) makeAdmin(t *testing.T, tgID int64) {
	t.Helper()
	f.db.Model(&domain.User{}).Where("telegram_id = ?", tgID).Update("is_admin", true)
}

// ---------- tests ----------

func TestStart_RegistersAndAsksLanguage(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(1, "/start promo42"))

	u, err := repo.GetUserByTelegramID(context.Background(), f.db, 1)
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Deeplink != "promo42" || u.StockLanguage != "en" {
		t.Fatalf("user: %+v", u)
	}
	// promo42 is not a document, so the user gets the not-found reply.
	if got := f.bot.lastSent(t).text; got != "File not found." {
		t.Fatalf("reply = %q", got)
	}

	f.handle(t, f.message(2, "/start"))
	if len(f.bot.sent) != 3 {
		t.Fatalf("expected welcome + language prompt, got %d messages", len(f.bot.sent))
	}
	if !strings.HasPrefix(f.bot.sent[1].text, "Hello, Ann!") {
		t.Fatalf("welcome = %q", f.bot.sent[1].text)
	}
	if _, ok := f.bot.sent[1].markup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Fatalf("welcome must carry the main keyboard: %T", f.bot.sent[1].markup)
	}
	if kb, ok := f.bot.sent[2].markup.(tgbotapi.InlineKeyboardMarkup); !ok || len(kb.InlineKeyboard) != 4 {
		t.Fatalf("language keyboard: %#v", f.bot.sent[2].markup)
	}

	// A returning user is not asked again.
	f.handle(t, f.message(2, "/start"))
	if len(f.bot.sent) != 4 {
		t.Fatalf("returning user: %d messages", len(f.bot.sent))
	}
}

func TestStart_DeepLinkSendsFile(t *testing.T) {
	f := newFixture(t)
	f.product(t, "doc-1", "Calculus", "FILE1")
	f.handle(t, f.message(5, "/start doc-1"))

	if len(f.bot.docs) != 1 {
		t.Fatalf("docs sent: %v", f.bot.docs)
	}
	if want := "5|FILE1|<b>Calculus</b>\n\nFile requested from the website."; f.bot.docs[0] != want {
		t.Fatalf("doc = %q, want %q", f.bot.docs[0], want)
	}
}

func TestSearch_UnknownUserMustStart(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(9, "algebra"))
	if got := f.bot.lastSent(t).text; got != "Please send /start first." {
		t.Fatalf("reply = %q", got)
	}
	if len(f.backend.modes) != 0 {
		t.Fatal("backend must not be queried for unknown users")
	}
}

func TestSearch_ResultsModeToggleAndPaging(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("d%02d", i)
		f.product(t, id, "Algebra "+id, "F"+id)
		f.backend.ids = append(f.backend.ids, id)
	}
	f.handle(t, f.message(3, "/start"))

	f.handle(t, f.message(3, "algebra_notes"))
	res := f.bot.lastSent(t)
	if res.text != "Found 12 results for «algebra_notes»:" {
		t.Fatalf("results text = %q", res.text)
	}
	kb, ok := res.markup.(*tgbotapi.InlineKeyboardMarkup)
	if !ok || kb == nil || len(kb.InlineKeyboard) != 11 {
		t.Fatalf("results keyboard: %#v", res.markup)
	}
	nav := kb.InlineKeyboard[10]
	if len(nav) != 2 || *nav[1].CallbackData != "search_normal_2_algebra_notes" {
		t.Fatalf("nav row: %+v", nav)
	}

	var n int64
	f.db.Model(&domain.SearchQuery{}).Count(&n)
	if n != 1 {
		t.Fatalf("search log rows = %d", n)
	}

	f.handle(t, f.callback(3, "search_normal_2_algebra_notes"))
	ed := f.bot.lastEdit(t)
	if ed.kb == nil || len(ed.kb.InlineKeyboard) != 3 || ed.msgID != 7 {
		t.Fatalf("page 2 edit: %+v", ed)
	}

	// Legacy callback without a query uses the remembered last query.
	f.handle(t, f.callback(3, "search_normal_2"))
	if ed := f.bot.lastEdit(t); ed.text != "Found 12 results for «algebra_notes»:" {
		t.Fatalf("legacy nav text = %q", ed.text)
	}

	f.handle(t, f.message(3, "🔎 Deep search"))
	if got := f.bot.lastSent(t).text; got != "Deep search mode is on." {
		t.Fatalf("toggle reply = %q", got)
	}
	f.handle(t, f.message(3, "geometry"))
	if last := f.backend.modes[len(f.backend.modes)-1]; last != search.ModeDeep {
		t.Fatalf("mode after toggle = %s", last)
	}
}

func TestSearch_NoResultsAndSubscription(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(4, "/start"))

	f.handle(t, f.message(4, "<nothing>"))
	res := f.bot.lastSent(t)
	if res.text != "No results found for «&lt;nothing&gt;»." || res.markup != nil {
		t.Fatalf("no results: %+v", res)
	}

	if err := repo.CreateChannel(context.Background(), f.db, &domain.SubscribeChannel{ChannelID: -100, ChannelUsername: "news", Active: true}); err != nil {
		t.Fatalf("channel: %v", err)
	}
	f.handle(t, f.message(4, "algebra"))
	res = f.bot.lastSent(t)
	kb, ok := res.markup.(tgbotapi.InlineKeyboardMarkup)
	if res.text != "Subscribe to the channels below to use the bot:" || !ok || len(kb.InlineKeyboard) != 2 {
		t.Fatalf("subscription prompt: %+v", res)
	}
	if *kb.InlineKeyboard[0][0].URL != "https://t.me/news" || *kb.InlineKeyboard[1][0].CallbackData != "check_subscription" {
		t.Fatalf("subscription keyboard: %+v", kb)
	}

	f.bot.members[-100] = "member"
	f.handle(t, f.callback(4, "check_subscription"))
	if ed := f.bot.lastEdit(t); !strings.HasPrefix(ed.text, "Hello, Ann!") {
		t.Fatalf("after subscribing: %q", ed.text)
	}
}

func TestGetFileCallback(t *testing.T) {
	f := newFixture(t)
	f.product(t, "doc-9", "Physics", "F9")
	f.handle(t, f.message(6, "/start"))

	f.handle(t, f.callback(6, "getfile_doc-9"))
	if len(f.bot.docs) != 1 || f.bot.docs[0] != "6|F9|<b>Physics</b>" {
		t.Fatalf("docs: %v", f.bot.docs)
	}
	if f.bot.answers[len(f.bot.answers)-1] != "Sending the file..." {
		t.Fatalf("answers: %v", f.bot.answers)
	}
	var p domain.Product
	f.db.Where("document_id = ?", "doc-9").First(&p)
	if p.ViewCount != 1 || p.DownloadCount != 1 {
		t.Fatalf("counters: %+v", p)
	}

	f.handle(t, f.callback(6, "getfile_missing"))
	if got := f.bot.lastSent(t).text; got != "File not found." {
		t.Fatalf("missing file reply = %q", got)
	}
}

func TestLanguageCallback(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(8, "/start"))
	f.handle(t, f.callback(8, "language_setting_ru"))

	u, _ := repo.GetUserByTelegramID(context.Background(), f.db, 8)
	if u.SelectedLanguage != "ru" {
		t.Fatalf("selected language = %q", u.SelectedLanguage)
	}
	if f.bot.lastEdit(t).text == "" || !strings.HasPrefix(f.bot.lastSent(t).text, "Здравствуйте") {
		t.Fatalf("russian welcome: %q", f.bot.lastSent(t).text)
	}

	f.handle(t, f.message(8, "/help"))
	if got := f.bot.lastSent(t).text; strings.HasPrefix(got, "Type a file name") {
		t.Fatalf("help must follow the chosen language, got %q", got)
	}

	before := len(f.bot.edits)
	f.handle(t, f.callback(8, "language_setting_xx"))
	if len(f.bot.edits) != before {
		t.Fatal("unsupported language must not edit the message")
	}
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(20, "/start"))
	f.handle(t, f.message(21, "/start"))

	f.handle(t, f.message(21, "/stats"))
	if got := f.bot.lastSent(t).text; got != "This command is for admins only." {
		t.Fatalf("non-admin /stats = %q", got)
	}

	f.makeAdmin(t, 20)
	f.handle(t, f.message(20, "/stats"))
	if got := f.bot.lastSent(t).text; got != "👥 Users: 2\n🟢 Active in the last 24h: 2" {
		t.Fatalf("/stats = %q", got)
	}

	f.handle(t, f.message(20, "/about"))
	kb, ok := f.bot.lastSent(t).markup.(*tgbotapi.InlineKeyboardMarkup)
	if !ok || *kb.InlineKeyboard[0][0].CallbackData != "SCRT_LVL" {
		t.Fatalf("admin about keyboard: %#v", f.bot.lastSent(t).markup)
	}
	f.handle(t, f.callback(20, "SCRT_LVL"))
	if got := f.bot.lastEdit(t).text; !strings.Contains(got, "Users: 2") {
		t.Fatalf("secret level = %q", got)
	}

	f.handle(t, f.message(21, "/about"))
	if f.bot.lastSent(t).markup != nil {
		t.Fatal("non-admin about must not carry the secret button")
	}
}

func TestBroadcastConversation(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(30, "/start"))
	f.makeAdmin(t, 30)

	f.handle(t, f.message(30, "/broadcast"))
	if !f.d.State.Get(context.Background(), 30).AwaitingBroadcast {
		t.Fatal("broadcast capture not armed")
	}

	up := f.message(30, "Big news!")
	f.handle(t, up)
	res := f.bot.lastSent(t)
	kb, ok := res.markup.(tgbotapi.InlineKeyboardMarkup)
	if res.text != "Send this message to all users?" || !ok {
		t.Fatalf("confirm: %+v", res)
	}
	sendNow := *kb.InlineKeyboard[0][0].CallbackData
	if want := fmt.Sprintf("brdcast_30_%d_send_now", up.Message.MessageID); sendNow != want {
		t.Fatalf("send_now data = %q, want %q", sendNow, want)
	}
	if f.d.State.Get(context.Background(), 30).AwaitingBroadcast {
		t.Fatal("capture must disarm after one message")
	}

	f.handle(t, f.callback(30, sendNow))
	var b domain.Broadcast
	if err := f.db.First(&b).Error; err != nil {
		t.Fatalf("broadcast not created: %v", err)
	}
	if b.FromChatID != 30 || b.MessageID != up.Message.MessageID {
		t.Fatalf("broadcast: %+v", b)
	}
	if got := f.bot.lastEdit(t).text; got != fmt.Sprintf("✅ Broadcast (ID: %d) queued!", b.ID) {
		t.Fatalf("queued edit = %q", got)
	}
	if jobs, _ := f.q.Drain(context.Background()); len(jobs) != 1 || jobs[0].Kind != queue.KindStartBroadcast {
		t.Fatalf("jobs: %+v", jobs)
	}

	f.handle(t, f.callback(30, *kb.InlineKeyboard[1][0].CallbackData))
	if got := f.bot.lastEdit(t).text; got != "❌ Broadcast cancelled." {
		t.Fatalf("cancel edit = %q", got)
	}

	f.handle(t, f.message(30, "/broadcast"))
	f.handle(t, f.message(30, "/cancel"))
	if f.d.State.Get(context.Background(), 30).AwaitingBroadcast {
		t.Fatal("/cancel must disarm capture")
	}
}

func TestLocationFlow(t *testing.T) {
	f := newFixture(t)
	f.handle(t, f.message(40, "/start"))
	f.makeAdmin(t, 40)

	f.handle(t, f.message(40, "/ask_location"))
	if _, ok := f.bot.lastSent(t).markup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Fatal("location keyboard expected")
	}
	up := f.message(40, "")
	up.Message.Location = &tgbotapi.Location{Latitude: 41.31, Longitude: 69.28}
	f.handle(t, up)
	if got := f.bot.lastSent(t).text; got != "Thanks! Location saved." {
		t.Fatalf("reply = %q", got)
	}
	var n int64
	f.db.Model(&domain.Location{}).Count(&n)
	if n != 1 {
		t.Fatalf("locations = %d", n)
	}
}

func TestStateExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.d.State.Put(ctx, 1, State{Mode: search.ModeDeep, LastQuery: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if st := f.d.State.Get(ctx, 1); st.Mode != search.ModeDeep || st.LastQuery != "x" {
		t.Fatalf("state: %+v", st)
	}
	f.mr.FastForward(2 * time.Hour)
	if st := f.d.State.Get(ctx, 1); st.Mode != search.ModeNormal || st.LastQuery != "" {
		t.Fatalf("expired state: %+v", st)
	}
}

func TestParseBroadcastData(t *testing.T) {
	cases := []struct {
		in     string
		chat   int64
		msg    int
		action string
		ok     bool
	}{
		{"brdcast_-100123_55_send_now", -100123, 55, "send_now", true},
		{"brdcast_7_1_cancel", 7, 1, "cancel", true},
		{"brdcast_7_1_later", 0, 0, "", false},
		{"brdcast_x_1_cancel", 0, 0, "", false},
		{"brdcast_7_0_cancel", 0, 0, "", false},
		{"brdcast_7", 0, 0, "", false},
		{"search_normal_1", 0, 0, "", false},
	}
	for _, c := range cases {
		chat, msg, action, ok := parseBroadcastData(c.in)
		if chat != c.chat || msg != c.msg || action != c.action || ok != c.ok {
			t.Errorf("%q -> (%d, %d, %q, %v)", c.in, chat, msg, action, ok)
		}
	}
	if got := broadcastData(-5, 9, broadcastSendNow); got != "brdcast_-5_9_send_now" {
		t.Fatalf("broadcastData = %q", got)
	}
}

func TestHandle_NoBot(t *testing.T) {
	d := &Dispatcher{}
	if err := d.Handle(context.Background(), tgbotapi.Update{}); err != services.ErrBotNotConfigured {
		t.Fatalf("err = %v", err)
	}
}
