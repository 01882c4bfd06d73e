package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/classifier"
	"github.com/vikashkrdeveloper/SafeExec/internal/delivery/stdio"
)

// runAction handles one invocation. Whatever happens to the program, the
// process prints exactly one result and exits 0.
func runAction(ctx context.Context, _ *cli.Command) error {
	cfg, logger, err := loadConfig()
	defer logger.Sync()

	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return stdio.WriteResult(os.Stdout, classifier.SystemFailure(err))
	}

	return stdio.Serve(ctx, os.Stdin, os.Stdout, newPipeline(cfg, logger), logger)
}
