package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/quizhub/rewards-hub/config"
	"github.com/quizhub/rewards-hub/internal/application/command"
	"github.com/quizhub/rewards-hub/internal/application/query"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/infrastructure/messaging"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/quizhub/rewards-hub/internal/infrastructure/persistence/redis"
	"github.com/quizhub/rewards-hub/pkg/apikey"
	"github.com/quizhub/rewards-hub/pkg/logger"
)

// eventBus is the closable bus surface the app owns.
type eventBus interface {
	shared.EventBus
	Close() error
}

// app bundles the wired-up dependencies every command starts from.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	slog *slog.Logger

	db        *postgres.Connection
	cache     *redisinfra.Cache // nil when Redis is disabled or unreachable
	bus       eventBus
	busClient *messaging.CacheRedisClient // nil when the bus is purely local

	verifier *apikey.Verifier
	plan     reward.Plan

	users     *postgres.UserRepository
	snapshots *postgres.SnapshotRepository
	jobs      *postgres.RewardJobRepository
	ledger    *postgres.RewardLedger

	initMonth   *command.InitMonthHandler
	processJobs *command.ProcessJobsHandler
	jobStatus   *query.JobStatusHandler
	history     *query.RewardHistoryHandler
	leaderboard *query.LeaderboardHandler
}

// newApp loads configuration and wires the full dependency graph.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(cfg.Observability.LogLevel),
	}))

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{
		cfg:  cfg,
		log:  log,
		slog: slogger,
		db:   db,
	}

	// Redis is an accelerator, not a dependency: the service degrades to
	// uncached reads when it is absent.
	if !cfg.Redis.Disabled {
		cache, err := redisinfra.NewCache(redisCacheConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, running without cache", logger.Err(err))
		} else {
			a.cache = cache
		}
	}

	// With Redis present the bus fans events out to sibling instances over
	// pub/sub; without it events stay in-process.
	busConfig := messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         slogger,
		EnableMetrics:  true,
	}
	if a.cache != nil {
		a.busClient = messaging.NewCacheRedisClient(a.cache)
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         a.busClient,
			Logger:         slogger,
			LocalBusConfig: busConfig,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis event bus: %w", err)
		}
		a.bus = bus
	} else {
		a.bus = messaging.NewInMemoryEventBus(busConfig)
	}

	a.verifier, err = apikey.NewVerifier(cfg.Rewards.APIKeyHash)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("api key hash: %w", err)
	}

	a.plan, err = config.LoadRewardPlan(cfg.Rewards.PlanFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.users = postgres.NewUserRepository(db)
	a.snapshots = postgres.NewSnapshotRepository(db)
	a.jobs = postgres.NewRewardJobRepository(db)
	a.ledger = postgres.NewRewardLedger(db)

	a.initMonth = command.NewInitMonthHandler(a.users, a.snapshots, a.jobs, a.bus, log,
		command.InitMonthHandlerConfig{BatchSize: cfg.Rewards.BatchSize})
	a.processJobs = command.NewProcessJobsHandler(a.jobs, a.snapshots, a.ledger, a.plan, a.bus, log,
		command.ProcessJobsHandlerConfig{
			Budget:    cfg.Rewards.ProcessBudget,
			Staleness: cfg.Rewards.Staleness,
		})
	a.jobStatus = query.NewJobStatusHandler(a.jobs)
	a.history = query.NewRewardHistoryHandler(a.ledger, a.cache, cfg.Redis.CacheTTL, log)

	var lbCache *redisinfra.LeaderboardCache
	if a.cache != nil {
		lbCache = redisinfra.NewLeaderboardCache(a.cache, redisinfra.TTLLeaderboard)
	}
	a.leaderboard = query.NewLeaderboardHandler(a.snapshots, lbCache, a.cache, redisinfra.TTLLeaderboard, log)

	a.subscribeEventLogging()
	a.subscribeCacheInvalidation()

	return a, nil
}

// subscribeEventLogging records every domain event in the structured log,
// so the reward trail is reconstructable without querying the ledger.
func (a *app) subscribeEventLogging() {
	_ = a.bus.SubscribeAll(func(event shared.Event) error {
		a.log.Info("domain event",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
		)
		return nil
	})
}

// subscribeCacheInvalidation drops a user's cached history when a reward
// lands, so history reads never serve a stale payout for the TTL window.
func (a *app) subscribeCacheInvalidation() {
	if a.cache == nil {
		return
	}
	_ = a.bus.Subscribe(shared.EventRewardGranted, func(event shared.Event) error {
		granted, ok := event.(shared.RewardGrantedEvent)
		if !ok {
			return nil
		}
		pattern := fmt.Sprintf("%s%d:*", redisinfra.PrefixRewardHistory, granted.UserID)
		return a.cache.DeleteByPattern(context.Background(), pattern)
	})
}

// Close releases every resource newApp acquired.
func (a *app) Close() {
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.busClient != nil {
		_ = a.busClient.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func redisCacheConfig(cfg config.RedisConfig) redisinfra.Config {
	rc := redisinfra.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}
	return rc
}

func slogLevel(level string) slog.Level {
	switch logger.ParseLevel(level) {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func hashAPIKey(key string) (string, error) {
	return apikey.HashKey(key)
}
