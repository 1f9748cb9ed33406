// Package services – SearchService
//
// SearchService answers free-text searches over the document catalog. It
// fronts a search.Backend with a short-TTL result cache keyed by (text,
// mode, page), pages results ten at a time and resolves hit ids to
// deliverable products. A failing backend degrades to "no results"; a
// failing cache degrades to a miss.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/cache"
	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/observability"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/search"
	"github.com/tbourn/go-filebot-backend/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PageSize is the fixed number of results per page.
const PageSize = 10

// cachedPage is the cached value of one (text, mode, page) search.
type cachedPage struct {
	Total int64    `json:"total"`
	IDs   []string `json:"ids"`
}

// ResultPage is one rendered page of deliverable results.
type ResultPage struct {
	Query string
	Mode  search.Mode
	Page  int
	Pages int
	Total int64
	Items []domain.Product
}

// SearchService coordinates the search backend, the result cache and the
// catalog lookups.
type SearchService struct {
	DB      *gorm.DB
	Backend search.Backend
	Cache   cache.Store

	// TTL is how long a page of ids stays cached.
	TTL time.Duration
	// Timeout bounds one backend query.
	Timeout time.Duration
}

// NewSearchService constructs a SearchService with default TTL and timeout.
func NewSearchService(db *gorm.DB, backend search.Backend, store cache.Store) *SearchService {
	if store == nil {
		store = cache.Nop{}
	}
	return &SearchService{
		DB:      db,
		Backend: backend,
		Cache:   store,
		TTL:     5 * time.Minute,
		Timeout: 5 * time.Second,
	}
}

// CacheKey derives the cache key of a (text, mode, page) search. The text
// is trimmed and lowercased so trivially different inputs share an entry.
func CacheKey(text string, mode search.Mode, page int) string {
	raw := "search_" + strings.ToLower(strings.TrimSpace(text)) + "_" + string(mode) + "_" + strconv.Itoa(page)
	sum := sha256.Sum256([]byte(raw))
	return "search:" + hex.EncodeToString(sum[:])
}

// Search returns the total hit count and the document ids of the requested
// page, best first. Blank text returns (0, nil) without querying anything.
// Pages below 1 are treated as 1; pages past the end return no ids with the
// true total. Backend errors are logged and reported as no results.
func (s *SearchService) Search(ctx context.Context, text string, mode search.Mode, page int) (int64, []string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	if mode != search.ModeDeep {
		mode = search.ModeNormal
	}
	if page < 1 {
		page = 1
	}

	tr := otel.Tracer("services/SearchService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("search.mode", string(mode)),
			attribute.Int("search.page", page),
		),
	)
	defer span.End()
	lg := loggerFrom(ctx)

	key := CacheKey(text, mode, page)
	var hit cachedPage
	switch err := cache.GetJSON(ctx, s.Cache, key, &hit); {
	case err == nil:
		observability.SearchRequests.WithLabelValues(string(mode), "hit").Inc()
		span.SetAttributes(attribute.Bool("search.cache_hit", true))
		return hit.Total, hit.IDs
	case !errors.Is(err, cache.ErrMiss):
		lg.Warn().Err(err).Msg("search cache read failed")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := s.Backend.Search(qctx, search.NewQuery(text, mode, (page-1)*PageSize, PageSize))
	observability.SearchLatency.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SearchRequests.WithLabelValues(string(mode), "error").Inc()
		span.RecordError(err)
		lg.Error().Err(err).Str("mode", string(mode)).Int("page", page).Msg("search backend failed")
		return 0, nil
	}
	observability.SearchRequests.WithLabelValues(string(mode), "miss").Inc()

	if err := cache.SetJSON(ctx, s.Cache, key, cachedPage{Total: res.Total, IDs: res.IDs}, s.TTL); err != nil {
		lg.Warn().Err(err).Msg("search cache write failed")
	}
	span.SetAttributes(attribute.Int64("search.total", res.Total))
	return res.Total, res.IDs
}

// ResolveDeliverable maps ordered document ids to products whose document is
// completed and has a Telegram file id. Order is preserved; unknown or
// undeliverable ids are dropped.
func (s *SearchService) ResolveDeliverable(ctx context.Context, ids []string) ([]domain.Product, error) {
	return repo.ResolveDeliverableProducts(ctx, s.DB, ids)
}

// Results runs Search and resolves the page to products.
func (s *SearchService) Results(ctx context.Context, text string, mode search.Mode, page int) (ResultPage, error) {
	if page < 1 {
		page = 1
	}
	if mode != search.ModeDeep {
		mode = search.ModeNormal
	}
	total, ids := s.Search(ctx, text, mode, page)
	out := ResultPage{
		Query: strings.TrimSpace(text),
		Mode:  mode,
		Page:  page,
		Pages: utils.TotalPages(total, PageSize),
		Total: total,
	}
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.ResolveDeliverable(ctx, ids)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

// Find runs a first-page search on behalf of a user and records it in the
// search log. A zero userID skips the log.
func (s *SearchService) Find(ctx context.Context, userID uint, text string, mode search.Mode) (ResultPage, error) {
	page, err := s.Results(ctx, text, mode, 1)
	if err != nil {
		return page, err
	}
	if userID != 0 && page.Query != "" {
		if err := repo.LogSearch(ctx, s.DB, userID, page.Query, page.Total, page.Mode.Deep()); err != nil {
			loggerFrom(ctx).Warn().Err(err).Uint("user_id", userID).Msg("search log write failed")
		}
	}
	return page, nil
}
