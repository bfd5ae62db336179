package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/SolanaSergio/apexbets-live/internal/config"
	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
	"github.com/SolanaSergio/apexbets-live/internal/infrastructure/repository/memory"
	"github.com/SolanaSergio/apexbets-live/internal/infrastructure/repository/postgres"
	"github.com/SolanaSergio/apexbets-live/internal/interfaces/httpapi"
	"github.com/SolanaSergio/apexbets-live/internal/platform/cache"
	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
	"github.com/SolanaSergio/apexbets-live/internal/stream"
	"github.com/SolanaSergio/apexbets-live/internal/usecase"
)

// App bundles the wired components so main can drive their lifecycles in
// order: hub and poll loop start before the HTTP server accepts, and stop
// after it drains.
type App struct {
	Server      *http.Server
	Hub         *stream.Hub
	LiveUpdates *usecase.LiveUpdateService

	db     *sqlx.DB
	logger *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	repo, db, err := buildGameRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	var store *cache.Store
	if cfg.CacheEnabled {
		store = cache.NewStore(cfg.CacheTTL)
	}

	queries := usecase.NewGameQueryService(repo, store, usecase.GameQueryConfig{
		RecentLookback:    cfg.PollRecentLookback,
		UpcomingLookahead: cfg.PollUpcomingAhead,
		CacheTTL:          cfg.CacheTTL,
	})

	hub := stream.NewHub(stream.HubConfig{
		HeartbeatInterval: cfg.StreamHeartbeatInterval,
		SweepInterval:     cfg.StreamSweepInterval,
		IdleTimeout:       cfg.StreamIdleTimeout,
		SendBuffer:        cfg.StreamSendBuffer,
	}, logger)

	liveUpdates := usecase.NewLiveUpdateService(queries, hub, usecase.LiveUpdateConfig{
		Sports:              cfg.ActiveSports,
		Interval:            cfg.PollInterval,
		MaxConcurrentTopics: cfg.MaxConcurrentTopics,
		TopicTimeout:        cfg.PollTopicTimeout,
	}, logger)

	handler := httpapi.NewHandler(queries, liveUpdates, hub, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalBroadcastToken)

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		// WriteTimeout must stay zero unless overridden: a deadline would
		// kill long-lived stream responses.
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:      server,
		Hub:         hub,
		LiveUpdates: liveUpdates,
		db:          db,
		logger:      logger,
	}, nil
}

// Start launches the hub coordinator and the poll loop.
func (a *App) Start(ctx context.Context) {
	a.Hub.Start(ctx)
	a.LiveUpdates.Start(ctx)
}

// Close stops background work and releases the database pool. The HTTP
// server is shut down separately by the caller so in-flight responses drain
// before broadcasts stop.
func (a *App) Close() {
	a.LiveUpdates.Stop()
	a.Hub.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

// buildGameRepository selects storage by environment: dev runs on the seeded
// in-memory store, everything else on postgres with traced queries.
func buildGameRepository(cfg config.Config, logger *logging.Logger) (game.Repository, *sqlx.DB, error) {
	if cfg.AppEnv == config.EnvDev {
		logger.Info("using in-memory game repository", "env", cfg.AppEnv)
		return memory.NewGameRepository(memory.SeedGames(time.Now())), nil, nil
	}

	dsn := databaseDSN(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(databaseName(cfg.DBURL)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info("using postgres game repository", "db", databaseName(cfg.DBURL))
	return postgres.NewGameRepository(db), db, nil
}
