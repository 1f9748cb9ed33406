// Package services – StatsService
//
// StatsService serves the admin dashboard aggregates. Both payloads are
// cache-or-compute: a hit returns the stored JSON, a miss runs the counts
// through a StatsRepository and stores the result with its own TTL. A
// broken cache is never fatal; the aggregates are simply recomputed.
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tbourn/go-filebot-backend/internal/cache"
	"github.com/tbourn/go-filebot-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Cache keys of the dashboard payloads.
const (
	StatsCacheKey = "dashboard_main_statistics"
	ChartCacheKey = "dashboard_chart_data"
)

// StatsRepository exposes the exact counts behind the dashboard.
// *repo.StatsStore is the GORM implementation.
type StatsRepository interface {
	DocumentCounts(ctx context.Context) (repo.DocumentCounts, error)
	CountProducts(ctx context.Context) (int64, error)
	CountProductsCreated(ctx context.Context, from, to time.Time) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error)
	CountErrors(ctx context.Context) (int64, error)
	ErrorTypeCounts(ctx context.Context) ([]repo.ErrorTypeCount, error)
}

// Statistics is the main dashboard payload.
type Statistics struct {
	TotalDocuments     int64     `json:"total_documents"`
	CompletedDocuments int64     `json:"completed_documents"`
	PendingDocuments   int64     `json:"pending_documents"`
	FailedDocuments    int64     `json:"failed_documents"`
	TelegramSent       int64     `json:"telegram_sent"`
	TelegramFailed     int64     `json:"telegram_failed"`
	ParsedDocuments    int64     `json:"parsed_documents"`
	IndexedDocuments   int64     `json:"indexed_documents"`
	PipelineRunning    int64     `json:"pipeline_running"`
	TotalProducts      int64     `json:"total_products"`
	TotalUsers         int64     `json:"total_users"`
	TotalErrors        int64     `json:"total_errors"`
	TodayActivity      int64     `json:"today_activity"`
	ComputedAt         time.Time `json:"computed_at"`
}

// DailyCount is the number of products created on one day.
type DailyCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// StatusBuckets splits documents by pipeline state.
type StatusBuckets struct {
	Completed  int64 `json:"completed"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
	Pending    int64 `json:"pending"`
}

// StageProgress holds per-stage completion percentages over all documents.
type StageProgress struct {
	Download  float64 `json:"download"`
	Parse     float64 `json:"parse"`
	Index     float64 `json:"index"`
	Telegram  float64 `json:"telegram"`
	Completed float64 `json:"completed"`
}

// ChartData is the dashboard chart payload.
type ChartData struct {
	Daily      []DailyCount          `json:"daily"`
	Status     StatusBuckets         `json:"status"`
	ErrorTypes []repo.ErrorTypeCount `json:"error_types"`
	Stages     StageProgress         `json:"stages"`
	ComputedAt time.Time             `json:"computed_at"`
}

// UserCounts is the compact user summary shown by the bot.
type UserCounts struct {
	Total        int64 `json:"total"`
	ActiveLast24 int64 `json:"active_last_24h"`
}

// StatsService computes and caches the dashboard aggregates.
type StatsService struct {
	Repo  StatsRepository
	Cache cache.Store

	StatsTTL time.Duration
	ChartTTL time.Duration

	// Now returns the current time; it defaults to time.Now. Day buckets are
	// computed in UTC.
	Now func() time.Time
}

// NewStatsService returns a StatsService with 5m/10m TTLs.
func NewStatsService(r StatsRepository, store cache.Store) *StatsService {
	if store == nil {
		store = cache.Nop{}
	}
	return &StatsService{
		Repo:     r,
		Cache:    store,
		StatsTTL: 5 * time.Minute,
		ChartTTL: 10 * time.Minute,
		Now:      time.Now,
	}
}

func (s *StatsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetStatistics returns the main dashboard counters.
func (s *StatsService) GetStatistics(ctx context.Context) (Statistics, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "GetStatistics")
	defer span.End()

	var out Statistics
	if s.cached(ctx, StatsCacheKey, &out, span) {
		return out, nil
	}

	docs, err := s.Repo.DocumentCounts(ctx)
	if err != nil {
		span.RecordError(err)
		return Statistics{}, err
	}
	now := s.now()
	out = Statistics{
		TotalDocuments:     docs.Total,
		CompletedDocuments: docs.Completed,
		PendingDocuments:   docs.Pending,
		FailedDocuments:    docs.Failed,
		TelegramSent:       docs.TelegramSent,
		TelegramFailed:     docs.TelegramFailed,
		ParsedDocuments:    docs.Parsed,
		IndexedDocuments:   docs.Indexed,
		PipelineRunning:    docs.PipelineRunning,
		ComputedAt:         now.UTC(),
	}
	if out.TotalProducts, err = s.Repo.CountProducts(ctx); err != nil {
		return Statistics{}, err
	}
	if out.TotalUsers, err = s.Repo.CountUsers(ctx); err != nil {
		return Statistics{}, err
	}
	if out.TotalErrors, err = s.Repo.CountErrors(ctx); err != nil {
		return Statistics{}, err
	}
	today := startOfDay(now)
	if out.TodayActivity, err = s.Repo.CountProductsCreated(ctx, today, today.AddDate(0, 0, 1)); err != nil {
		return Statistics{}, err
	}

	s.store(ctx, StatsCacheKey, out, s.StatsTTL)
	return out, nil
}

// GetChartData returns the dashboard chart series.
func (s *StatsService) GetChartData(ctx context.Context) (ChartData, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "GetChartData")
	defer span.End()

	var out ChartData
	if s.cached(ctx, ChartCacheKey, &out, span) {
		return out, nil
	}

	now := s.now()
	today := startOfDay(now)
	out.Daily = make([]DailyCount, 0, 7)
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		n, err := s.Repo.CountProductsCreated(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			span.RecordError(err)
			return ChartData{}, err
		}
		out.Daily = append(out.Daily, DailyCount{Label: day.Format("01/02"), Count: n})
	}

	docs, err := s.Repo.DocumentCounts(ctx)
	if err != nil {
		return ChartData{}, err
	}
	out.Status = StatusBuckets{
		Completed:  docs.Completed,
		Processing: docs.Processing,
		Failed:     docs.Failed,
		Pending:    docs.Pending,
	}
	out.Stages = StageProgress{
		Download:  percent(docs.DownloadCompleted, docs.Total),
		Parse:     percent(docs.ParseCompleted, docs.Total),
		Index:     percent(docs.Indexed, docs.Total),
		Telegram:  percent(docs.TelegramSent, docs.Total),
		Completed: percent(docs.Completed, docs.Total),
	}
	if out.ErrorTypes, err = s.Repo.ErrorTypeCounts(ctx); err != nil {
		return ChartData{}, err
	}
	if out.ErrorTypes == nil {
		out.ErrorTypes = []repo.ErrorTypeCount{}
	}
	out.ComputedAt = now.UTC()

	s.store(ctx, ChartCacheKey, out, s.ChartTTL)
	return out, nil
}

// Invalidate drops both cached payloads. Missing keys are not an error.
func (s *StatsService) Invalidate(ctx context.Context) error {
	return s.Cache.Delete(ctx, StatsCacheKey, ChartCacheKey)
}

// UserStats returns the total user count and users active in the last 24h.
// It is always computed live.
func (s *StatsService) UserStats(ctx context.Context) (UserCounts, error) {
	total, err := s.Repo.CountUsers(ctx)
	if err != nil {
		return UserCounts{}, err
	}
	active, err := s.Repo.CountUsersActiveSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return UserCounts{}, err
	}
	return UserCounts{Total: total, ActiveLast24: active}, nil
}

func (s *StatsService) cached(ctx context.Context, key string, dst any, span trace.Span) bool {
	err := cache.GetJSON(ctx, s.Cache, key, dst)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		loggerFrom(ctx).Warn().Err(err).Str("key", key).Msg("dashboard cache read failed")
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return false
}

func (s *StatsService) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.SetJSON(ctx, s.Cache, key, v, ttl); err != nil {
		loggerFrom(ctx).Warn().Err(err).Str("key", key).Msg("dashboard cache write failed")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// percent returns part/total*100 rounded to one decimal, or 0 when total is 0.
func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}
