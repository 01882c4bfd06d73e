package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/vikashkrdeveloper/SafeExec/internal/decoder"
	amqpdelivery "github.com/vikashkrdeveloper/SafeExec/internal/delivery/amqp"
	"github.com/vikashkrdeveloper/SafeExec/internal/delivery/stdio"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository/postgres"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

type submitResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

func submitAction(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := loadConfig()
	defer logger.Sync()
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(os.Stdin, stdio.MaxPayloadBytes))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	dbPool, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	pub, err := amqpdelivery.NewPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	uc := usecase.NewSubmitJobUsecase(
		decoder.New(cfg.Sandbox.MaxCodeBytes),
		postgres.NewPostgresJobRepository(dbPool),
		pub,
		logger,
	)
	job, err := uc.Execute(ctx, raw)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(submitResponse{
		JobID:  job.JobID,
		Status: string(job.Status),
	})
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	id, err := uuid.Parse(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", cmd.Args().First(), err)
	}

	cfg, logger, err := loadConfig()
	defer logger.Sync()
	if err != nil {
		return err
	}

	dbPool, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	job, err := usecase.NewGetJobUsecase(postgres.NewPostgresJobRepository(dbPool), logger).Execute(ctx, id)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(job)
}
