package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/config"
	"github.com/vikashkrdeveloper/SafeExec/internal/decoder"
	"github.com/vikashkrdeveloper/SafeExec/internal/executor"
	"github.com/vikashkrdeveloper/SafeExec/internal/limits"
	"github.com/vikashkrdeveloper/SafeExec/internal/sandbox"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

func main() {
	// The binary re-executes itself to apply limits before exec'ing the
	// interpreter. That role must not touch config, logging or stdio.
	if sandbox.IsInit(os.Args) {
		sandbox.Main()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "safeexec:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "safeexec",
		Usage:  "run untrusted code under resource limits",
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "execute one JSON invocation from stdin and print one JSON result",
				Action: runAction,
			},
			{
				Name:   "worker",
				Usage:  "consume queued jobs and store their results",
				Action: workerAction,
			},
			{
				Name:   "submit",
				Usage:  "queue one JSON invocation from stdin for the worker",
				Action: submitAction,
			},
			{
				Name:      "status",
				Usage:     "print a queued job and its result",
				ArgsUsage: "<job-id>",
				Action:    statusAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the HTTP submission API",
				Action: serveAction,
			},
		},
	}
}

// newLogger builds the stderr logger. stdout carries the result document
// and nothing else.
func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadConfig loads configuration and a logger at the configured level.
// On a config error the logger still works at info level.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, newLogger("info"), err
	}
	return cfg, newLogger(cfg.Log.Level), nil
}

// newPipeline wires decoder, limit policy, runner and classifier.
func newPipeline(cfg *config.Config, logger *zap.Logger) *usecase.ExecuteUsecase {
	runner := executor.NewRunner(executor.Options{
		Interpreter:    cfg.Sandbox.Interpreter,
		FileSuffix:     cfg.Sandbox.FileSuffix,
		WorkDir:        cfg.Sandbox.WorkDir,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	}, logger)

	return usecase.NewExecuteUsecase(
		decoder.New(cfg.Sandbox.MaxCodeBytes),
		runner,
		limits.Resolve(cfg.Sandbox),
		logger,
	)
}
