package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WebhookJob is a signature-verified webhook delivery waiting to be ingested.
type WebhookJob struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	// Body is the raw request body exactly as signed. It is not required to be valid JSON.
	Body       []byte    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`

	done func()
}

// Done reports that the job has been processed. Subscribers wait for it before
// the queue acknowledges the delivery. It is safe to call more than once and on
// jobs that did not come from a subscriber.
func (j WebhookJob) Done() {
	if j.done != nil {
		j.done()
	}
}

// NewWebhookJob wraps a raw body. object is the envelope's provider tag when known.
func NewWebhookJob(object string, body []byte) WebhookJob {
	return WebhookJob{
		ID:         uuid.NewString(),
		Object:     object,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
}

// PublishWebhook enqueues job on topic.
func PublishWebhook(ctx context.Context, q Queue, topic string, job WebhookJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode webhook job: %w", err)
	}
	return q.Publish(ctx, topic, Message{ID: job.ID, Body: body})
}

func DecodeWebhookJob(body []byte) (WebhookJob, error) {
	var job WebhookJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("decode webhook job: %w", err)
	}
	if len(job.Body) == 0 {
		return job, fmt.Errorf("webhook job %s has no body", job.ID)
	}
	return job, nil
}

// StartWebhookSubscriber decodes jobs from topic and hands them to jobs. The
// queue handler returns once a worker has called Done on the job, so the
// delivery is acknowledged after processing. A job not yet taken by a worker
// when stop is cancelled is returned to the queue with the context error.
// jobs should be unbuffered so a job is never parked where no worker will take it.
// Undecodable messages are logged and dropped.
func StartWebhookSubscriber(stop context.Context, q Queue, topic string, jobs chan<- WebhookJob, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "webhook_subscriber"))

	return q.Subscribe(topic, func(ctx context.Context, msg Message) error {
		job, err := DecodeWebhookJob(msg.Body)
		if err != nil {
			log.Warn("dropping undecodable job", slog.String("message_id", msg.ID), slog.Any("error", err))
			return nil
		}
		processed := make(chan struct{})
		job.done = sync.OnceFunc(func() { close(processed) })

		select {
		case jobs <- job:
		case <-stop.Done():
			return stop.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
		<-processed
		return nil
	})
}
