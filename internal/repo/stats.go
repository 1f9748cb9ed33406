// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the admin
// dashboard. StatsStore satisfies services.StatsRepository.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

// DocumentCounts holds per-condition document counts computed in one pass.
// Pending, Failed and Processing count documents where ANY of the download,
// parse, index or telegram stages is in that state.
type DocumentCounts struct {
	Total             int64
	Completed         int64
	Pending           int64
	Failed            int64
	Processing        int64
	TelegramSent      int64
	TelegramFailed    int64
	Parsed            int64
	Indexed           int64
	PipelineRunning   int64
	DownloadCompleted int64
	ParseCompleted    int64
}

// ErrorTypeCount is one bucket of the document error histogram.
type ErrorTypeCount struct {
	ErrorType domain.ErrorType `json:"error_type"`
	Count     int64            `json:"count"`
}

// StatsStore runs dashboard aggregates against the application database.
type StatsStore struct {
	DB *gorm.DB
}

// NewStatsStore wraps db.
func NewStatsStore(db *gorm.DB) *StatsStore { return &StatsStore{DB: db} }

func anyStage(status domain.StageStatus) string {
	s := "'" + string(status) + "'"
	return "download_status = " + s + " OR parse_status = " + s +
		" OR index_status = " + s + " OR telegram_status = " + s
}

func countWhen(cond, alias string) string {
	return "COALESCE(SUM(CASE WHEN " + cond + " THEN 1 ELSE 0 END), 0) AS " + alias
}

// DocumentCounts computes every document counter with a single query.
func (s *StatsStore) DocumentCounts(ctx context.Context) (DocumentCounts, error) {
	var out DocumentCounts
	err := s.DB.WithContext(ctx).
		Model(&domain.Document{}).
		Select(
			"COUNT(*) AS total",
			countWhen("completed = TRUE", "completed"),
			countWhen(anyStage(domain.StagePending), "pending"),
			countWhen(anyStage(domain.StageFailed), "failed"),
			countWhen(anyStage(domain.StageProcessing), "processing"),
			countWhen("telegram_status = 'completed'", "telegram_sent"),
			countWhen("telegram_status = 'failed'", "telegram_failed"),
			countWhen("json_data IS NOT NULL", "parsed"),
			countWhen("index_status = 'completed'", "indexed"),
			countWhen("pipeline_running = TRUE", "pipeline_running"),
			countWhen("download_status = 'completed'", "download_completed"),
			countWhen("parse_status = 'completed'", "parse_completed"),
		).
		Scan(&out).Error
	return out, err
}

// CountProducts returns the number of products.
func (s *StatsStore) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&domain.Product{}).Count(&n).Error
	return n, err
}

// CountProductsCreated returns products created in [from, to).
func (s *StatsStore) CountProductsCreated(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&domain.Product{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&n).Error
	return n, err
}

// CountUsers returns the number of users.
func (s *StatsStore) CountUsers(ctx context.Context) (int64, error) {
	return CountUsers(ctx, s.DB)
}

// CountUsersActiveSince returns users with last_active >= since.
func (s *StatsStore) CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return CountUsersActiveSince(ctx, s.DB, since)
}

// CountErrors returns the number of recorded document errors.
func (s *StatsStore) CountErrors(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&domain.DocumentError{}).Count(&n).Error
	return n, err
}

// ErrorTypeCounts groups document errors by type, most frequent first.
// Ties are broken by type name so the order is stable.
func (s *StatsStore) ErrorTypeCounts(ctx context.Context) ([]ErrorTypeCount, error) {
	var out []ErrorTypeCount
	err := s.DB.WithContext(ctx).
		Model(&domain.DocumentError{}).
		Select("error_type, COUNT(*) AS count").
		Group("error_type").
		Order("count DESC, error_type ASC").
		Scan(&out).Error
	return out, err
}
