// Package stdio is the one-shot transport: one invocation document on
// stdin, one result line on stdout.
package stdio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/classifier"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

// MaxPayloadBytes caps how much of stdin is read. Anything longer cannot
// carry a valid code field under the default limits and is cut off, which
// makes it malformed.
const MaxPayloadBytes = 8 << 20

// Handler executes one raw invocation payload.
type Handler interface {
	Handle(ctx context.Context, raw []byte) *domain.ExecutionResult
}

// Serve reads the whole invocation from r, runs it through h and writes
// exactly one result line to w. Only a failure to write the result is
// returned; every other failure is reported inside the result.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h Handler, logger *zap.Logger) error {
	return WriteResult(w, handle(ctx, r, h, logger))
}

func handle(ctx context.Context, r io.Reader, h Handler, logger *zap.Logger) (res *domain.ExecutionResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Invocation panic recovered", zap.Any("panic", p))
			res = classifier.SystemFailure(fmt.Errorf("%v", p))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(r, MaxPayloadBytes))
	if err != nil {
		logger.Error("Failed to read invocation", zap.Error(err))
		return classifier.SystemFailure(fmt.Errorf("read input: %w", err))
	}
	logger.Debug("Invocation received", zap.Int("bytes", len(raw)))

	res = h.Handle(ctx, raw)
	if res == nil {
		return classifier.SystemFailure(fmt.Errorf("no result produced"))
	}
	return res
}

// WriteResult writes res as a single JSON line.
func WriteResult(w io.Writer, res *domain.ExecutionResult) error {
	line, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
