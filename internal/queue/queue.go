package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Message is one unit of work on a topic. ID is carried as the broker message id
// where the transport has one.
type Message struct {
	ID   string
	Body []byte
}

// Handler processes one delivered message. A non-nil error is logged and, for
// queues configured with retries, triggers redelivery.
type Handler func(ctx context.Context, msg Message) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue runs handlers in goroutines inside the publishing process.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup

	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewInMemoryQueue creates a queue that retries a failed job up to maxRetries
// times with linear backoff. maxRetries of 0 means failures are only logged.
func NewInMemoryQueue(maxRetries int, backoff time.Duration, log *slog.Logger) *InMemoryQueue {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     log.With(slog.String("component", "memory_queue")),
	}
}

// JobPayload wraps a message with retry info
type JobPayload struct {
	Topic      string
	Message    Message
	RetryCount int
	MaxRetries int
}

// Publish hands the message to every subscriber of topic.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, msg Message) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{Topic: topic, Message: msg, MaxRetries: q.maxRetries}
	for _, handler := range handlers {
		q.wg.Add(1)
		// Processing outlives the publishing request.
		go q.processJob(context.WithoutCancel(ctx), handler, job)
	}
	return nil
}

func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, job JobPayload) {
	defer q.wg.Done()
	log := q.logger.With(slog.String("topic", job.Topic), slog.String("message_id", job.Message.ID))

	for {
		err := handler(ctx, job.Message)
		if err == nil {
			return
		}
		if job.RetryCount >= job.MaxRetries {
			log.Error("job failed", slog.Int("attempts", job.RetryCount+1), slog.Any("error", err))
			return
		}
		job.RetryCount++
		log.Warn("job failed, retrying", slog.Int("attempt", job.RetryCount), slog.Int("max_retries", job.MaxRetries), slog.Any("error", err))
		time.Sleep(time.Duration(job.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ Queue = (*InMemoryQueue)(nil)
