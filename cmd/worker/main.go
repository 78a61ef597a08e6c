package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sellsi/backend-sellsi/internal/config"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/lock"
	"github.com/sellsi/backend-sellsi/internal/notify"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/store"
	"github.com/sellsi/backend-sellsi/internal/tasks"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, queries := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	asynqClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue client")
		}
	}()

	// The worker's bus persists follow-up events but delivers them through
	// the same queue, so it schedules rather than notifying inline.
	bus := &events.Bus{Store: queries, Scheduler: tasks.Scheduler{Client: asynqClient}}

	handlers := &tasks.Handlers{
		ExpiryQ: queries,
		SweepQ:  queries,
		Events:  bus,
		Notifier: notify.EmailNotifier{
			Mail:    notify.LogSender{Logger: logger},
			Enabled: true,
			From:    cfg.NotifyEmailFrom,
		},
		SweepLimit: int32(cfg.FinancingSweepLimit),
		Logger:     logger,
	}

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      asynqZerolog{logger},
	})

	sweepInterval := envDuration("FINANCING_SWEEP_INTERVAL", time.Hour)
	locker := lock.Locker{R: redisClient, RetryBackoff: 200 * time.Millisecond}
	go runSweepScheduler(ctx, asynqClient, locker, sweepInterval, logger)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// runSweepScheduler enqueues the financing expiry sweep on a fixed interval.
// The redis lock keeps multiple worker replicas from double-enqueueing within
// the same window.
func runSweepScheduler(ctx context.Context, client *asynq.Client, locker lock.Locker, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := locker.WithLock(ctx, "financing:sweep:schedule", interval/2, func(lockCtx context.Context) error {
				_, err := client.EnqueueContext(lockCtx, tasks.NewFinancingSweepTask())
				return err
			})
			if err != nil {
				logger.Warn().Err(err).Msg("enqueue financing sweep")
			}
		}
	}
}

type asynqZerolog struct {
	l zerolog.Logger
}

func (a asynqZerolog) Debug(args ...interface{}) { a.l.Debug().Msgf("%v", args) }
func (a asynqZerolog) Info(args ...interface{})  { a.l.Info().Msgf("%v", args) }
func (a asynqZerolog) Warn(args ...interface{})  { a.l.Warn().Msgf("%v", args) }
func (a asynqZerolog) Error(args ...interface{}) { a.l.Error().Msgf("%v", args) }
func (a asynqZerolog) Fatal(args ...interface{}) { a.l.Fatal().Msgf("%v", args) }

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, *store.Queries) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "sellsi-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool, store.New(pool)
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
