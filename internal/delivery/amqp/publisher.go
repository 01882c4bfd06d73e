package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
)

const publishTimeout = 5 * time.Second

var _ repository.Publisher = (*Publisher)(nil)

// Publisher sends jobs to the work queue with publisher confirms.
type Publisher struct {
	conn    *amqplib.Connection
	channel *amqplib.Channel
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// jobBody is the queued message. It carries only what the worker needs.
type jobBody struct {
	JobID string `json:"job_id"`
	Code  string `json:"code"`
	Input string `json:"input"`
}

// NewPublisher dials the broker, enables confirms and declares the topology.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqplib.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp enable confirms: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Debug("AMQP publisher initialized",
		zap.String("exchange", exchangeName),
		zap.String("queue", queueName),
	)

	return &Publisher{conn: conn, channel: ch, logger: logger}, nil
}

// Publish sends job and waits for the broker to confirm it.
func (p *Publisher) Publish(ctx context.Context, job *domain.Job) error {
	body, err := encodeJob(job)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("amqp publisher closed")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	confirmation, err := p.channel.PublishWithDeferredConfirmWithContext(publishCtx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqplib.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqplib.Persistent,
			MessageId:    job.JobID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}

	// Wait for broker confirmation
	acked, err := confirmation.WaitContext(publishCtx)
	if err != nil {
		return fmt.Errorf("amqp publish confirmation (job_id=%s): %w", job.JobID, err)
	}
	if !acked {
		return fmt.Errorf("amqp broker nacked message (job_id=%s)", job.JobID)
	}

	p.logger.Debug("Published job",
		zap.String("job_id", job.JobID.String()),
		zap.Int("body_size", len(body)),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func encodeJob(job *domain.Job) ([]byte, error) {
	body, err := json.Marshal(jobBody{
		JobID: job.JobID.String(),
		Code:  job.Code,
		Input: job.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("amqp marshal job: %w", err)
	}
	return body, nil
}
