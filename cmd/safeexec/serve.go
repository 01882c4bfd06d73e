package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vikashkrdeveloper/SafeExec/internal/decoder"
	amqpdelivery "github.com/vikashkrdeveloper/SafeExec/internal/delivery/amqp"
	handler "github.com/vikashkrdeveloper/SafeExec/internal/delivery/http"
	"github.com/vikashkrdeveloper/SafeExec/internal/delivery/stdio"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository/postgres"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

// serveAction runs the HTTP submission API in front of the queue.
func serveAction(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := loadConfig()
	defer logger.Sync()
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.GinMode)
	logger.Info("Starting SafeExec API server")

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

	pub, err := amqpdelivery.NewPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		return err
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	jobRepo := postgres.NewPostgresJobRepository(dbPool)

	router := handler.NewRouter(ctx, &handler.RouterDeps{
		SubmitUC: usecase.NewSubmitJobUsecase(decoder.New(cfg.Sandbox.MaxCodeBytes), jobRepo, pub, logger),
		GetJobUC: usecase.NewGetJobUsecase(jobRepo, logger),
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    stdio.MaxPayloadBytes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("API server stopped")
	return err
}
