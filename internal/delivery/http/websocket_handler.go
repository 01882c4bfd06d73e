package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

const streamPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// WebSocketHandler pushes job snapshots until the job is terminal.
type WebSocketHandler struct {
	getJobUC *usecase.GetJobUsecase
	logger   *zap.Logger
	interval time.Duration
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(getJobUC *usecase.GetJobUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		getJobUC: getJobUC,
		logger:   logger,
		interval: streamPollInterval,
	}
}

// Stream handles GET /api/v1/executions/:id/stream (WebSocket upgrade)
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	jobID := zap.String("job_id", id.String())
	h.logger.Debug("WebSocket connection opened", jobID)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		job, err := h.getJobUC.Execute(ctx, id)
		if err != nil {
			msg := "Job not found"
			if !errors.Is(err, domain.ErrJobNotFound) {
				h.logger.Error("Stream lookup failed", zap.Error(err), jobID)
				msg = "Job status temporarily unavailable"
			}
			_ = conn.WriteJSON(gin.H{"error": msg})
			return
		}

		if err := conn.WriteJSON(job); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}

		// Stop streaming once the job reaches a terminal state
		if job.Status.IsTerminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			h.logger.Debug("Job reached terminal state, closing WebSocket", jobID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
