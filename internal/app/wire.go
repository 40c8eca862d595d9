package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/outcomelabs/marketd/internal/blob/s3"
	"github.com/outcomelabs/marketd/internal/cache/redis"
	"github.com/outcomelabs/marketd/internal/config"
	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/engine"
	"github.com/outcomelabs/marketd/internal/notify"
	"github.com/outcomelabs/marketd/internal/oracle"
	"github.com/outcomelabs/marketd/internal/server/ws"
	"github.com/outcomelabs/marketd/internal/service"
	"github.com/outcomelabs/marketd/internal/store/memory"
	"github.com/outcomelabs/marketd/internal/store/postgres"
)

// Dependencies bundles every runtime dependency the application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional integrations (Redis, S3) leave their fields nil when disabled.
type Dependencies struct {
	Store domain.Store

	// Redis-backed; nil when Redis is disabled.
	MarketCache      domain.MarketCache
	ObservationCache domain.ObservationCache
	RateLimiter      domain.RateLimiter
	SignalBus        domain.SignalBus

	// Always set: Redis when enabled, process-local otherwise.
	LockManager domain.LockManager

	// Oracle. ManualOracle is set only for the static source so the server
	// can expose the admin height/feed endpoints.
	Observations domain.ObservationSource
	Heights      domain.HeightSource
	ManualOracle *oracle.StaticSource

	// S3-backed; nil when S3 is disabled.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier

	Engine     *engine.Engine
	Markets    *service.MarketService
	Trades     *service.TradeService
	Settlement *service.SettlementService

	// Hub fans events out to WebSocket clients. With Redis it subscribes
	// to the signal bus; without, it joins the event fan-out directly.
	Hub *ws.Hub

	// Checks holds per-dependency readiness probes for the health endpoint.
	Checks map[string]func(context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// releases resources in reverse construction order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Checks: map[string]func(context.Context) error{},
	}

	// --- State store ---
	switch cfg.Storage.Backend {
	case "memory":
		deps.Store = memory.New()
		logger.WarnContext(ctx, "using in-memory store, state is not persisted")
	default:
		pgClient, err := postgres.NewClient(ctx, postgres.ClientConfig{
			DSN:      cfg.Storage.DSN,
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			Database: cfg.Storage.Database,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			SSLMode:  cfg.Storage.SSLMode,
			MaxConns: cfg.Storage.PoolMaxConns,
			MinConns: cfg.Storage.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Storage.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Store = postgres.NewStore(pgClient)
		deps.Checks["postgres"] = pgClient.Pool().Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		obsTTL := time.Duration(cfg.Oracle.CacheTTLSecs) * time.Second

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.ObservationCache = redis.NewObservationCache(redisClient, obsTTL)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.LockManager = service.NewLocalLockManager()
	}

	// --- Oracle ---
	switch cfg.Oracle.Source {
	case "static":
		static := oracle.NewStaticSource(cfg.Oracle.StaticFeeds, cfg.Oracle.StaticHeight)
		deps.Observations = static
		deps.Heights = static
		deps.ManualOracle = static
	default:
		client := oracle.NewFeedClient(cfg.Oracle.BaseURL, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
		deps.Heights = client
		if deps.ObservationCache != nil {
			deps.Observations = oracle.NewCachedSource(client, deps.ObservationCache)
		} else {
			deps.Observations = client
		}
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewMarketArchiver(deps.Store, deps.BlobWriter, deps.BlobReader, logger)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	// --- Engine and services ---
	deps.Engine = engine.New(deps.Store, deps.Observations, deps.Heights, engine.Params{
		Owner:             cfg.Engine.Owner,
		Creators:          cfg.Engine.Creators,
		FeeRecipient:      cfg.Engine.FeeRecipient,
		FlatTax:           cfg.Engine.FlatTax,
		ResolutionWindow:  cfg.Engine.ResolutionWindow,
		CancelTimeout:     cfg.Engine.CancelTimeout,
		MinConfidence:     cfg.Engine.MinConfidence,
		MaxObservationLag: cfg.Engine.MaxObservationLag,
	}, logger)

	// Event routing: with Redis the bus carries events and the hub mirrors
	// the bus; without it the hub joins the fan-out directly so WebSocket
	// clients still see every event exactly once.
	deps.Hub = ws.NewHub(deps.SignalBus, logger)

	var sink service.Sink
	if deps.SignalBus != nil {
		sink = service.NewFanout(service.NewBusSink(deps.SignalBus, logger))
	} else {
		sink = service.NewFanout(deps.Hub)
	}

	deps.Markets = service.NewMarketService(deps.Engine, deps.MarketCache, sink, logger)
	deps.Trades = service.NewTradeService(deps.Engine, deps.Markets, deps.LockManager, sink, logger)
	deps.Settlement = service.NewSettlementService(
		deps.Engine,
		deps.Markets,
		deps.LockManager,
		sink,
		deps.Notifier,
		deps.Archiver,
		logger,
	)

	return deps, cleanup, nil
}
