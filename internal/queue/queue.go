package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TopicChainJobs carries model.ChainJob payloads for the chain worker
const TopicChainJobs = "chain_jobs"

// Handler processes one message body. A non-nil error triggers a retry.
type Handler func(ctx context.Context, body []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue delivers to in-process subscribers with retry
type InMemoryQueue struct {
	MaxRetries int
	Backoff    time.Duration

	mu       sync.Mutex
	handlers map[string][]Handler
	closed   bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(maxRetries int, logger *zap.Logger) *InMemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryQueue{
		MaxRetries: maxRetries,
		Backoff:    500 * time.Millisecond,
		handlers:   make(map[string][]Handler),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// job wraps a message body with retry info
type job struct {
	Topic      string
	Body       []byte
	RetryCount int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue closed")
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.processJob(handler, job{Topic: topic, Body: body})
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler Handler, j job) {
	defer q.wg.Done()

	for {
		err := handler(q.ctx, j.Body)
		if err == nil {
			q.logger.Debug("job processed", zap.String("topic", j.Topic), zap.Int("retries", j.RetryCount))
			return // ACK
		}

		j.RetryCount++
		q.logger.Warn("job failed",
			zap.String("topic", j.Topic),
			zap.Int("attempt", j.RetryCount),
			zap.Int("max_retries", q.MaxRetries),
			zap.Error(err))

		if j.RetryCount > q.MaxRetries {
			q.logger.Error("job permanently failed", zap.String("topic", j.Topic), zap.ByteString("body", j.Body))
			return // no requeue
		}

		// linear backoff before retry
		select {
		case <-time.After(time.Duration(j.RetryCount) * q.Backoff):
		case <-q.ctx.Done():
			return
		}
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops pending retries and waits for in-flight handlers
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
