package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// AMQPQueue publishes to and consumes from durable RabbitMQ queues named after the topic.
// Deliveries are acked after the handler returns, whatever its outcome, except
// when the handler was stopped by cancellation: those are requeued.
type AMQPQueue struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	mu       sync.Mutex
	prefetch int
	logger   *slog.Logger

	declared map[string]bool
}

func DialAMQP(url string, prefetch int, log *slog.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	return &AMQPQueue{
		conn:     conn,
		ch:       ch,
		prefetch: prefetch,
		logger:   log.With(slog.String("component", "amqp_queue")),
		declared: map[string]bool{},
	}, nil
}

func (q *AMQPQueue) declare(topic string) error {
	if q.declared[topic] {
		return nil
	}
	if _, err := q.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.declare(topic); err != nil {
		return err
	}
	return q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
}

// Subscribe starts one consumer goroutine per prefetch slot for topic. They stop
// when the channel closes.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	if err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return err
	}
	deliveries, err := q.ch.Consume(topic, "", false, false, false, false, nil)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", topic, err)
	}

	var consumers sync.WaitGroup
	for i := 0; i < q.prefetch; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for d := range deliveries {
				q.deliver(topic, d, handler)
			}
		}()
	}
	go func() {
		consumers.Wait()
		q.logger.Info("consumer stopped", slog.String("topic", topic))
	}()
	return nil
}

func (q *AMQPQueue) deliver(topic string, d amqp.Delivery, handler Handler) {
	log := q.logger.With(slog.String("topic", topic), slog.String("message_id", d.MessageId))
	err := handler(context.Background(), Message{ID: d.MessageId, Body: d.Body})
	if errors.Is(err, context.Canceled) {
		log.Warn("job interrupted, requeueing")
		if err := d.Nack(false, true); err != nil {
			log.Error("nack failed", slog.Any("error", err))
		}
		return
	}
	if err != nil {
		log.Error("job failed", slog.Any("error", err))
	}
	if err := d.Ack(false); err != nil {
		log.Error("ack failed", slog.Any("error", err))
	}
}

// NotifyClose reports connection loss.
func (q *AMQPQueue) NotifyClose() <-chan *amqp.Error {
	return q.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
