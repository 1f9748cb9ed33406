// Package app assembles the application once at startup: storage, Redis,
// the job queue, the Telegram client, the search backend and every service.
// The entrypoint hands the assembled Context to the HTTP router and starts
// its background loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/bot"
	"github.com/tbourn/go-filebot-backend/internal/cache"
	"github.com/tbourn/go-filebot-backend/internal/config"
	"github.com/tbourn/go-filebot-backend/internal/queue"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/search"
	"github.com/tbourn/go-filebot-backend/internal/services"
	"github.com/tbourn/go-filebot-backend/internal/telegram"
)

// EmbeddedRedis is the REDIS_ADDR value that starts an in-process Redis
// instead of dialing one. State, cache and queue then live only as long as
// the process.
const EmbeddedRedis = "memory"

// CatalogReloadInterval is how often the local search index is rebuilt.
const CatalogReloadInterval = 5 * time.Minute

// Context holds every long-lived dependency.
type Context struct {
	Config config.Config
	DB     *gorm.DB
	Redis  redis.UniversalClient
	Cache  cache.Store
	Queue  queue.Queue

	// Bot is nil when BOT_TOKEN is empty.
	Bot *telegram.Client
	// Search is the configured backend; Catalog is set only for the local one.
	Search  search.Backend
	Catalog *search.Local

	Guards     *services.Guards
	Broadcasts *services.BroadcastService
	Directory  *services.DirectoryService
	Stats      *services.StatsService
	Searches   *services.SearchService
	Files      *services.FileService

	// Dispatcher is nil when BOT_TOKEN is empty.
	Dispatcher *bot.Dispatcher

	embedded *miniredis.Miniredis
	wg       sync.WaitGroup
}

// New connects to storage and builds all services. The database schema is
// migrated when migrate is set. On error everything opened so far is
// closed.
func New(ctx context.Context, cfg config.Config, migrate bool) (_ *Context, err error) {
	ac := &Context{Config: cfg}
	defer func() {
		if err != nil {
			ac.Close()
		}
	}()

	if ac.DB, err = repo.Open(cfg.Database); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if migrate {
		if err = repo.AutoMigrate(ac.DB); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	if err = ac.connectRedis(ctx); err != nil {
		return nil, err
	}
	ac.Cache = cache.NewRedis(ac.Redis)
	ac.Queue = queue.NewRedisQueue(ac.Redis, cfg.Broadcast.QueueKey)

	var messenger telegram.Messenger
	if cfg.BotEnabled() {
		if ac.Bot, err = telegram.New(cfg.Telegram); err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		messenger = ac.Bot
		log.Info().Str("bot", ac.Bot.Username()).Msg("telegram bot authorized")
	} else {
		log.Warn().Msg("BOT_TOKEN not set; webhook and deliveries are disabled")
	}

	switch cfg.Search.Backend {
	case "elasticsearch":
		es, esErr := search.NewElastic(cfg.Search.ESURLs, cfg.Search.ESIndex)
		if esErr != nil {
			return nil, esErr
		}
		ac.Search = es
	default:
		ac.Catalog = search.NewLocal(CatalogLoader(ac.DB))
		if _, rerr := ac.Catalog.Reload(ctx); rerr != nil {
			log.Warn().Err(rerr).Msg("initial catalog load failed; starting with an empty index")
		}
		ac.Search = ac.Catalog
	}

	ac.Guards = services.NewGuards(ac.DB, messenger)
	ac.Directory = services.NewDirectoryService(ac.DB)

	ac.Broadcasts = services.NewBroadcastService(ac.DB, ac.Queue, messenger)
	ac.Broadcasts.EnqueueDelay = cfg.Broadcast.EnqueueDelay
	ac.Broadcasts.IncludeLeft = cfg.Broadcast.IncludeLeft
	ac.Broadcasts.DeliveryTimeout = cfg.Telegram.Timeout

	ac.Stats = services.NewStatsService(repo.NewStatsStore(ac.DB), ac.Cache)
	ac.Stats.StatsTTL = cfg.StatsTTL
	ac.Stats.ChartTTL = cfg.ChartTTL

	ac.Searches = services.NewSearchService(ac.DB, ac.Search, ac.Cache)
	ac.Searches.TTL = cfg.Search.CacheTTL
	ac.Searches.Timeout = cfg.Search.Timeout

	ac.Files = services.NewFileService(ac.DB, messenger)
	ac.Files.Timeout = cfg.Telegram.Timeout

	if messenger != nil {
		ac.Dispatcher = &bot.Dispatcher{
			Bot:        messenger,
			Guards:     ac.Guards,
			Search:     ac.Searches,
			Files:      ac.Files,
			Broadcasts: ac.Broadcasts,
			Stats:      ac.Stats,
			Directory:  ac.Directory,
			State:      bot.NewStateStore(ac.Cache, cfg.UserStateTTL),
		}
	}
	return ac, nil
}

func (ac *Context) connectRedis(ctx context.Context) error {
	addr := ac.Config.Redis.Addr
	if strings.EqualFold(addr, EmbeddedRedis) {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("embedded redis: %w", err)
		}
		ac.embedded = mr
		addr = mr.Addr()
		log.Warn().Msg("using embedded redis; cache, bot state and queued jobs are not shared or persisted")
	}
	ac.Redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: ac.Config.Redis.Password,
		DB:       ac.Config.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ac.Redis.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return nil
}

// CatalogLoader reads the searchable products for the local index.
func CatalogLoader(db *gorm.DB) search.Loader {
	return func(ctx context.Context) ([]search.Entry, error) {
		products, err := repo.ListSearchableProducts(ctx, db)
		if err != nil {
			return nil, err
		}
		out := make([]search.Entry, 0, len(products))
		for _, p := range products {
			out = append(out, search.Entry{
				DocumentID: p.DocumentID,
				Title:      p.Title,
				Slug:       p.Slug,
				Content:    p.ParsedContent,
				Completed:  true,
			})
		}
		return out, nil
	}
}

// Start launches the worker pool and the periodic jobs: due-broadcast
// scheduling, idempotency purge and, for the local backend, catalog
// reloads. They stop when ctx is cancelled; Wait blocks until they have.
func (ac *Context) Start(ctx context.Context) {
	pool := queue.NewPool(ac.Queue, ac.Broadcasts, ac.Config.Broadcast.Workers)
	ac.goRun(func() { pool.Run(ctx) })

	schedulers := []*queue.Scheduler{
		{
			Name:     "due_broadcasts",
			Interval: ac.Config.Broadcast.SchedulerInterval,
			Tick:     ac.Broadcasts.EnqueueDue,
		},
		{
			Name:     "idempotency_purge",
			Interval: time.Hour,
			Tick: func(ctx context.Context) error {
				n, err := repo.PurgeExpiredIdempotency(ctx, ac.DB, time.Now().UTC())
				if n > 0 {
					log.Debug().Int64("rows", n).Msg("expired idempotency records purged")
				}
				return err
			},
		},
	}
	if ac.Catalog != nil {
		schedulers = append(schedulers, &queue.Scheduler{
			Name:     "catalog_reload",
			Interval: CatalogReloadInterval,
			Tick: func(ctx context.Context) error {
				n, err := ac.Catalog.Reload(ctx)
				if err == nil {
					log.Debug().Int("documents", n).Msg("search catalog reloaded")
				}
				return err
			},
		})
	}
	for _, s := range schedulers {
		ac.goRun(func() { s.Run(ctx) })
	}
}

func (ac *Context) goRun(fn func()) {
	ac.wg.Add(1)
	go func() {
		defer ac.wg.Done()
		fn()
	}()
}

// Wait blocks until every loop started by Start has returned.
func (ac *Context) Wait() { ac.wg.Wait() }

// Close releases Redis and the database. It is safe on a partially built
// Context.
func (ac *Context) Close() error {
	var errs []error
	if ac.Redis != nil {
		errs = append(errs, ac.Redis.Close())
	}
	if ac.embedded != nil {
		ac.embedded.Close()
	}
	if ac.DB != nil {
		if sqlDB, err := ac.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
