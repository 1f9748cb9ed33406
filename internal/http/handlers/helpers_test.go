package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

// ---------- fakes ----------

type fakeBroadcasts struct {
	items    map[uint]*domain.Broadcast
	created  []CreateBroadcastRequest
	lastPage [2]int
	lastRcpt struct {
		id     uint
		status domain.RecipientStatus
		page   int
		size   int
	}
	createErr  error
	createKeep bool // return the broadcast together with createErr
	retry      int
	err        error
}

func newFakeBroadcasts() *fakeBroadcasts {
	return &fakeBroadcasts{items: map[uint]*domain.Broadcast{}}
}

func (f *fakeBroadcasts) Create(_ context.Context, from int64, msg int, at *time.Time) (*domain.Broadcast, error) {
	f.created = append(f.created, CreateBroadcastRequest{FromChatID: from, MessageID: msg, ScheduledTime: at})
	if f.createErr != nil && !f.createKeep {
		return nil, f.createErr
	}
	b := &domain.Broadcast{ID: uint(len(f.items) + 1), FromChatID: from, MessageID: msg, Status: domain.BroadcastPending, ScheduledTime: at}
	f.items[b.ID] = b
	return b, f.createErr
}

func (f *fakeBroadcasts) Get(_ context.Context, id uint) (*domain.Broadcast, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.items[id]
	if !ok {
		return nil, services.ErrBroadcastNotFound
	}
	return b, nil
}

func (f *fakeBroadcasts) ListPage(_ context.Context, page, size int) ([]domain.Broadcast, int64, error) {
	f.lastPage = [2]int{page, size}
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []domain.Broadcast
	for i := uint(1); i <= uint(len(f.items)); i++ {
		out = append(out, *f.items[i])
	}
	return out, int64(len(out)), nil
}

func (f *fakeBroadcasts) Recipients(_ context.Context, id uint, st domain.RecipientStatus, page, size int) ([]domain.BroadcastRecipient, int64, error) {
	f.lastRcpt.id, f.lastRcpt.status, f.lastRcpt.page, f.lastRcpt.size = id, st, page, size
	switch st {
	case "", domain.RecipientPending, domain.RecipientSent, domain.RecipientFailed:
	default:
		return nil, 0, services.ErrInvalidStatus
	}
	if _, ok := f.items[id]; !ok {
		return nil, 0, services.ErrBroadcastNotFound
	}
	return []domain.BroadcastRecipient{{ID: 1, BroadcastID: id, UserID: 9, Status: domain.RecipientFailed}}, 61, nil
}

func (f *fakeBroadcasts) RequeueFailed(_ context.Context, id uint) (int, error) {
	if _, ok := f.items[id]; !ok {
		return 0, services.ErrBroadcastNotFound
	}
	return f.retry, nil
}

func (f *fakeBroadcasts) Progress(_ context.Context, id uint) (*domain.BroadcastProgress, error) {
	b, ok := f.items[id]
	if !ok {
		return nil, services.ErrBroadcastNotFound
	}
	return &domain.BroadcastProgress{BroadcastID: id, Status: b.Status, Total: 3, Sent: 2, Failed: 1}, nil
}

func (f *fakeBroadcasts) Stats(context.Context) (services.BroadcastStats, error) {
	if f.err != nil {
		return services.BroadcastStats{}, f.err
	}
	return services.BroadcastStats{TotalBroadcasts: int64(len(f.items)), FailedDeliveries: 4}, nil
}

type fakeDashboard struct {
	invalidated int
	err         error
}

func (f *fakeDashboard) GetStatistics(context.Context) (services.Statistics, error) {
	return services.Statistics{TotalDocuments: 10, CompletedDocuments: 7}, f.err
}

func (f *fakeDashboard) GetChartData(context.Context) (services.ChartData, error) {
	return services.ChartData{Daily: []services.DailyCount{{Label: "03/10", Count: 2}}}, f.err
}

func (f *fakeDashboard) Invalidate(context.Context) error {
	f.invalidated++
	return f.err
}

func (f *fakeDashboard) UserStats(context.Context) (services.UserCounts, error) {
	return services.UserCounts{Total: 5, ActiveLast24: 2}, f.err
}

type fakeDispatcher struct {
	updates []tgbotapi.Update
	err     error
}

func (f *fakeDispatcher) Handle(_ context.Context, u tgbotapi.Update) error {
	f.updates = append(f.updates, u)
	return f.err
}

// ---------- HTTP helpers ----------

// adminRouter mounts the admin routes the way the router does, with the
// authenticated admin already in context.
func adminRouter(h *Handlers, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "1001")
		c.Next()
	})
	r.Use(pre...)
	api := r.Group("/api/v1")
	api.GET("/broadcasts", h.ListBroadcasts)
	api.POST("/broadcasts", h.CreateBroadcast)
	api.GET("/broadcasts/stats", h.BroadcastStats)
	api.GET("/broadcasts/:id", h.GetBroadcast)
	api.GET("/broadcasts/:id/recipients", h.ListRecipients)
	api.POST("/broadcasts/:id/retry", h.RetryBroadcast)
	api.GET("/channels", h.ListChannels)
	api.POST("/channels", h.CreateChannel)
	api.PUT("/channels/:id", h.UpdateChannel)
	api.DELETE("/channels/:id", h.DeleteChannel)
	api.GET("/locations", h.ListLocations)
	api.POST("/locations", h.CreateLocation)
	api.GET("/dashboard/stats", h.DashboardStats)
	api.GET("/dashboard/charts", h.DashboardCharts)
	api.POST("/dashboard/invalidate", h.InvalidateDashboard)
	api.GET("/dashboard/users", h.DashboardUsers)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, w.Body.String())
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (%s)", w.Code, status, w.Body.String())
	}
	if got := decode[ErrorResponse](t, w).Code; got != code {
		t.Fatalf("code = %q, want %q", got, code)
	}
}
