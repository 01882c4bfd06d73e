package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

const (
	baseReconnectDelay = time.Second
	maxReconnectDelay  = 30 * time.Second
)

var errDeliveriesClosed = errors.New("amqp delivery channel closed")

// Consumer feeds queued jobs to the worker pool. It never acks on its own:
// each JobMessage carries Ack/Nack bound to its delivery, and the pool
// settles it once the job's outcome is stored.
type Consumer struct {
	url      string
	prefetch int
	jobs     chan<- *domain.JobMessage
	logger   *zap.Logger

	mu     sync.Mutex
	sess   *session
	closed bool
}

// session is one broker connection and the channel consuming on it.
type session struct {
	conn *amqplib.Connection
	ch   *amqplib.Channel
}

// dial opens a session with QoS set and the topology declared.
func dial(url string, prefetch int) (*session, error) {
	conn, err := amqplib.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	s := &session{conn: conn, ch: ch}

	// The broker hands out no more unacked jobs than there are workers.
	if err := ch.Qos(prefetch, 0, false); err != nil {
		s.close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) close() error {
	err := s.ch.Close()
	if cerr := s.conn.Close(); err == nil || errors.Is(err, amqplib.ErrClosed) {
		err = cerr
	}
	if errors.Is(err, amqplib.ErrClosed) {
		return nil
	}
	return err
}

// NewConsumer connects once so a bad URL fails at start-up. prefetch
// should match the pool size.
func NewConsumer(url string, prefetch int, jobs chan<- *domain.JobMessage, logger *zap.Logger) (*Consumer, error) {
	prefetch = max(prefetch, 1)
	sess, err := dial(url, prefetch)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		url:      url,
		prefetch: prefetch,
		jobs:     jobs,
		logger:   logger,
		sess:     sess,
	}, nil
}

// Start consumes until ctx is done, redialling with exponential backoff
// when the connection drops. On return the session is left open so jobs
// already handed out can still be acked; Close releases it.
func (c *Consumer) Start(ctx context.Context) error {
	retry := backoff{base: baseReconnectDelay, max: maxReconnectDelay}
	for {
		sess, closed := c.current()
		if closed {
			return nil
		}
		if sess == nil {
			var err error
			if sess, err = c.redial(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				if !retry.wait(ctx, c.logger) {
					return nil
				}
				continue
			}
			c.logger.Info("Reconnected to RabbitMQ")
			retry.reset()
		}

		err := c.serve(ctx, sess)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("AMQP consumer lost connection, reconnecting...", zap.Error(err))
		c.drop(sess)
		if !retry.wait(ctx, c.logger) {
			return nil
		}
	}
}

// serve runs one consume session. It returns nil once ctx is done and an
// error when the session breaks.
func (c *Consumer) serve(ctx context.Context, sess *session) error {
	// The broker-side consumer is cancelled with ctx; the channel itself
	// stays open for acks.
	deliveries, err := sess.ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	c.logger.Info("AMQP consumer started", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			if !c.dispatch(ctx, d) {
				return nil
			}
		}
	}
}

// dispatch hands one delivery to the pool. Bodies that cannot be tracked
// are dead-lettered. It returns false if ctx ended before a worker was
// free, in which case the delivery goes back to the queue.
func (c *Consumer) dispatch(ctx context.Context, d amqplib.Delivery) bool {
	job, err := decodeJob(d.Body)
	if err != nil {
		c.logger.Error("Failed to decode job", zap.Error(err), zap.Int("body_bytes", len(d.Body)))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to reject message", zap.Error(nackErr))
		}
		return true
	}

	msg := &domain.JobMessage{
		Job:  job,
		Ack:  func() error { return d.Ack(false) },
		Nack: func(requeue bool) error { return d.Nack(false, requeue) },
	}

	// Blocks while every worker is busy. Prefetch keeps the broker from
	// running ahead of the pool.
	select {
	case c.jobs <- msg:
		c.logger.Debug("Received job from queue", zap.String("job_id", job.JobID.String()))
		return true
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return false
	}
}

// decodeJob parses a queued job. A job without an ID cannot be tracked, so
// it is rejected here. Missing code is left to the execution pipeline,
// which records it as an invalid input result.
func decodeJob(body []byte) (*domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if job.JobID == uuid.Nil {
		return nil, fmt.Errorf("job has no job_id")
	}
	return &job, nil
}

func (c *Consumer) current() (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess, c.closed
}

func (c *Consumer) redial() (*session, error) {
	sess, err := dial(c.url, c.prefetch)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sess.close()
		return nil, errors.New("consumer closed")
	}
	c.sess = sess
	return sess, nil
}

// drop discards a broken session so the next pass redials.
func (c *Consumer) drop(sess *session) {
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	c.mu.Unlock()
	_ = sess.close()
}

// Close releases the connection. Call it after the pool has settled its
// in-flight jobs.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.sess == nil {
		return nil
	}
	err := c.sess.close()
	c.sess = nil
	return err
}

// backoff yields doubling delays from base up to max.
type backoff struct {
	base, max time.Duration
	attempt   int
}

func (b *backoff) next() time.Duration {
	d := b.base << b.attempt
	if d <= 0 || d >= b.max {
		return b.max
	}
	b.attempt++
	return d
}

func (b *backoff) reset() { b.attempt = 0 }

// wait sleeps for the next delay. It reports false if ctx ended first.
func (b *backoff) wait(ctx context.Context, logger *zap.Logger) bool {
	d := b.next()
	logger.Info("Reconnect attempt", zap.Int("attempt", b.attempt), zap.Duration("delay", d))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
