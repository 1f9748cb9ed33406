// Package handlers implements the HTTP endpoints of the file bot: the
// Telegram webhook and the admin API (broadcasts, subscription channels,
// locations and the dashboard).
//
// Handlers are transport-thin: they validate input, call application
// services through the narrow interfaces below and translate results and
// sentinel errors into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/services"
	"github.com/tbourn/go-filebot-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BroadcastService manages broadcasts and their delivery records.
type BroadcastService interface {
	Create(ctx context.Context, fromChatID int64, messageID int, scheduled *time.Time) (*domain.Broadcast, error)
	Get(ctx context.Context, id uint) (*domain.Broadcast, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Broadcast, int64, error)
	Recipients(ctx context.Context, id uint, status domain.RecipientStatus, page, pageSize int) ([]domain.BroadcastRecipient, int64, error)
	RequeueFailed(ctx context.Context, id uint) (int, error)
	Progress(ctx context.Context, id uint) (*domain.BroadcastProgress, error)
	Stats(ctx context.Context) (services.BroadcastStats, error)
}

// DirectoryService manages subscription channels and shared locations.
type DirectoryService interface {
	ListChannels(ctx context.Context, activeOnly bool) ([]domain.SubscribeChannel, error)
	CreateChannel(ctx context.Context, in services.ChannelInput) (*domain.SubscribeChannel, error)
	UpdateChannel(ctx context.Context, id uint, in services.ChannelInput) (*domain.SubscribeChannel, error)
	DeleteChannel(ctx context.Context, id uint) error
	AddLocation(ctx context.Context, userID uint, lat, lon float64) (*domain.Location, error)
	ListLocations(ctx context.Context, userID uint, page, size int) ([]domain.Location, int64, error)
}

// DashboardService serves the cached dashboard aggregates.
type DashboardService interface {
	GetStatistics(ctx context.Context) (services.Statistics, error)
	GetChartData(ctx context.Context) (services.ChartData, error)
	Invalidate(ctx context.Context) error
	UserStats(ctx context.Context) (services.UserCounts, error)
}

// UpdateDispatcher processes one Telegram update.
type UpdateDispatcher interface {
	Handle(ctx context.Context, u tgbotapi.Update) error
}

// UpdateClaimer records updateID and reports whether it was seen for the
// first time.
type UpdateClaimer func(ctx context.Context, updateID int64) (fresh bool, err error)

// Rememberer stores the outcome of an idempotent admin write so a retry
// with the same Idempotency-Key is answered with the same resource.
type Rememberer func(ctx context.Context, userID, scope, key, resourceID string, status int) error

//
// Handler wiring
//

// Deps lists what the handlers need. Updates is nil when no bot token is
// configured; the webhook then answers 500.
type Deps struct {
	Broadcasts  BroadcastService
	Directory   DirectoryService
	Dashboard   DashboardService
	Updates     UpdateDispatcher
	ClaimUpdate UpdateClaimer
	Remember    Rememberer
}

// Handlers groups every HTTP endpoint.
type Handlers struct {
	broadcasts BroadcastService
	directory  DirectoryService
	dashboard  DashboardService
	updates    UpdateDispatcher
	claim      UpdateClaimer
	remember   Rememberer
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	return &Handlers{
		broadcasts: d.Broadcasts,
		directory:  d.Directory,
		dashboard:  d.Dashboard,
		updates:    d.Updates,
		claim:      d.ClaimUpdate,
		remember:   d.Remember,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func paginationOf(p utils.Page, total int64) Pagination {
	pages := utils.TotalPages(total, p.Size)
	return Pagination{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Number < pages,
	}
}

//
// Helpers
//

// pageParams reads page and page_size, clamping page_size to [1, max] with
// def when absent.
func pageParams(c *gin.Context, def, max int) utils.Page {
	return utils.NewPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), def),
		def, max,
	)
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	n := utils.AtoiDefault(c.Param(name), 0)
	if n <= 0 {
		return 0, false
	}
	return uint(n), true
}
