package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes to durable RabbitMQ queues named after the topic
type AMQPQueue struct {
	MaxRetries int

	conn   *amqp.Connection
	mu     sync.Mutex // guards ch for publishing
	ch     *amqp.Channel
	wg     sync.WaitGroup
	ctx    context.Context // cancelled by Close, passed to handlers
	cancel context.CancelFunc
	logger *zap.Logger
}

func DialAMQP(url string, maxRetries int, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return newAMQPQueue(conn, ch, maxRetries, logger), nil
}

func newAMQPQueue(conn *amqp.Connection, ch *amqp.Channel, maxRetries int, logger *zap.Logger) *AMQPQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQPQueue{
		MaxRetries: maxRetries,
		conn:       conn,
		ch:         ch,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

func (q *AMQPQueue) declare(topic string) error {
	_, err := q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	return nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}
	return q.publish(topic, body, 0)
}

func (q *AMQPQueue) publish(topic string, body []byte, retries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.declare(topic); err != nil {
		return err
	}
	err := q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{retryHeader: int32(retries)},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes topic until the connection closes. Failed deliveries are
// republished with an incremented retry header, then dropped after MaxRetries.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	if err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return err
	}
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.consume(topic, msgs, handler)
	return nil
}

// consume handles deliveries one at a time until msgs closes or the queue is closed
func (q *AMQPQueue) consume(topic string, msgs <-chan amqp.Delivery, handler Handler) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-q.ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				q.handleDelivery(topic, d, handler)
			}
		}
	}()
}

func (q *AMQPQueue) handleDelivery(topic string, d amqp.Delivery, handler Handler) {
	err := handler(q.ctx, d.Body)
	if err == nil {
		d.Ack(false)
		return
	}
	if q.ctx.Err() != nil {
		// shutting down: hand the job back to the broker untouched
		q.logger.Info("job interrupted by shutdown", zap.String("topic", topic), zap.String("message_id", d.MessageId))
		d.Nack(false, true)
		return
	}

	retries := retryCount(d.Headers)
	q.logger.Warn("job failed",
		zap.String("topic", topic),
		zap.String("message_id", d.MessageId),
		zap.Int("attempt", retries+1),
		zap.Error(err))

	if retries >= q.MaxRetries {
		q.logger.Error("job permanently failed", zap.String("topic", topic), zap.ByteString("body", d.Body))
		d.Ack(false)
		return
	}
	if perr := q.publish(topic, d.Body, retries+1); perr != nil {
		q.logger.Error("failed to requeue job", zap.Error(perr))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Close cancels running handlers, closes the connection and waits for consumers to exit
func (q *AMQPQueue) Close() error {
	q.cancel()

	var err error
	q.mu.Lock()
	if q.ch != nil {
		err = q.ch.Close()
	}
	q.mu.Unlock()
	if q.conn != nil {
		if cerr := q.conn.Close(); err == nil {
			err = cerr
		}
	}
	q.wg.Wait()
	return err
}

var _ Queue = (*AMQPQueue)(nil)
