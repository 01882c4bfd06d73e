package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vikashkrdeveloper/SafeExec/internal/config"
	amqpdelivery "github.com/vikashkrdeveloper/SafeExec/internal/delivery/amqp"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/pool"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository/postgres"
	redisrepo "github.com/vikashkrdeveloper/SafeExec/internal/repository/redis"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

func workerAction(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := loadConfig()
	defer logger.Sync()
	if err != nil {
		return err
	}

	logger.Info("Starting SafeExec worker", zap.Int("pool_size", cfg.Worker.PoolSize))

	dbPool, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	jobRepo := postgres.NewPostgresJobRepository(dbPool)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient)
	executeUC := usecase.NewExecuteJobUsecase(jobRepo, idempotencyStore, newPipeline(cfg, logger), logger)

	jobsChan := make(chan *domain.JobMessage, cfg.Worker.PoolSize)

	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP consumer: %w", err)
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	g, gctx := errgroup.WithContext(ctx)

	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, executeUC, logger)
	workerPool.Start(gctx)

	g.Go(func() error {
		if err := consumer.Start(gctx); err != nil {
			return fmt.Errorf("AMQP consumer: %w", err)
		}
		return nil
	})

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("Metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("Shutting down worker...")

	// In-flight jobs run to a stored status. The consumer's channel stays
	// open until they are acked.
	workerPool.Stop()

	logger.Info("Worker stopped")
	return err
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func connectPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	if err := postgres.Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, err
	}
	logger.Info("Connected to PostgreSQL")
	return dbPool, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*goredis.Client, error) {
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	logger.Info("Connected to Redis")
	return redisClient, nil
}
