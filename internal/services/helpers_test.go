package services

import (
	"context"
	"fmt"
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

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/queue"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	err = db.AutoMigrate(
		&domain.User{}, &domain.SubscribeChannel{}, &domain.Location{}, &domain.SearchQuery{},
		&domain.Broadcast{}, &domain.BroadcastRecipient{},
		&domain.Document{}, &domain.Product{}, &domain.DocumentError{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return queue.NewRedisQueue(rc, "test:jobs")
}

func queued(t *testing.T, q *queue.RedisQueue) int64 {
	t.Helper()
	n, err := q.Len(context.Background())
	if err != nil {
		t.Fatalf("queue len: %v", err)
	}
	return n
}

func drain(t *testing.T, q *queue.RedisQueue) []queue.Job {
	t.Helper()
	jobs, err := q.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain queue: %v", err)
	}
	return jobs
}

func mkUser(t *testing.T, db *gorm.DB, tgID int64, mut func(*domain.User)) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: tgID, FirstName: fmt.Sprintf("user%d", tgID), LastActive: time.Now().UTC()}
	if mut != nil {
		mut(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mkProduct(t *testing.T, db *gorm.DB, docID, title string, fileID string) *domain.Product {
	t.Helper()
	d := &domain.Document{ID: docID, Completed: fileID != ""}
	if fileID != "" {
		d.TelegramFileID = &fileID
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create document: %v", err)
	}
	p := &domain.Product{Title: title, Slug: docID, DocumentID: docID}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// fakeBot records calls and fails per destination chat.
type fakeBot struct {
	mu       sync.Mutex
	fail     map[int64]error
	block    bool
	forwards []int64
	docs     []string
	texts    []string
	members  map[int64]string
}

func (f *fakeBot) ForwardMessage(ctx context.Context, chatID, _ int64, _ int) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards = append(f.forwards, chatID)
	return f.fail[chatID]
}

func (f *fakeBot) SendDocument(_ context.Context, chatID int64, fileID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[chatID]; err != nil {
		return err
	}
	f.docs = append(f.docs, fileID)
	return nil
}

func (f *fakeBot) SendText(_ context.Context, _ int64, text string, _ any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return len(f.texts), nil
}

func (f *fakeBot) EditText(_ context.Context, _ int64, _ int, text string, _ *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeBot) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeBot) MemberStatus(_ context.Context, chatID, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[chatID]; err != nil {
		return "", err
	}
	if s, ok := f.members[chatID]; ok {
		return s, nil
	}
	return "left", nil
}

func blockedErr() error {
	return &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
}
