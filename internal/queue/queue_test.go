package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueueNoSubscribers(t *testing.T) {
	q := NewInMemoryQueue(0, 0, nil)
	err := q.Publish(context.Background(), "webhook_events", Message{ID: "1"})
	assert.Error(t, err)
}

func TestInMemoryQueueNoRetryByDefault(t *testing.T) {
	q := NewInMemoryQueue(0, time.Millisecond, nil)
	var calls int32
	require.NoError(t, q.Subscribe("t", func(ctx context.Context, msg Message) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}))

	require.NoError(t, q.Publish(context.Background(), "t", Message{ID: "1"}))
	q.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInMemoryQueueRetriesUntilSuccess(t *testing.T) {
	q := NewInMemoryQueue(3, time.Millisecond, nil)
	var calls int32
	require.NoError(t, q.Subscribe("t", func(ctx context.Context, msg Message) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), "t", Message{ID: "1"}))
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInMemoryQueueOutlivesPublisherContext(t *testing.T) {
	q := NewInMemoryQueue(0, 0, nil)
	seen := make(chan error, 1)
	require.NoError(t, q.Subscribe("t", func(ctx context.Context, msg Message) error {
		seen <- ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, "t", Message{ID: "1"}))
	cancel()
	q.Wait()
	assert.NoError(t, <-seen)
}

func TestWebhookJobRoundTripThroughSubscriber(t *testing.T) {
	q := NewInMemoryQueue(0, 0, nil)
	jobs := make(chan WebhookJob)
	require.NoError(t, StartWebhookSubscriber(context.Background(), q, "webhook_events", jobs, nil))

	// Bodies are carried byte-for-byte, even when they are not valid JSON.
	raw := []byte(`{"object":"page",`)
	job := NewWebhookJob("page", raw)
	require.NoError(t, PublishWebhook(context.Background(), q, "webhook_events", job))

	got := <-jobs
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "page", got.Object)
	assert.Equal(t, raw, got.Body)
	got.Done()
	q.Wait()
}

type recordingQueue struct {
	handler Handler
}

func (r *recordingQueue) Publish(context.Context, string, Message) error { return nil }

func (r *recordingQueue) Subscribe(_ string, h Handler) error {
	r.handler = h
	return nil
}

func webhookMessage(t *testing.T) Message {
	t.Helper()
	job := NewWebhookJob("page", []byte(`{}`))
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return Message{ID: job.ID, Body: body}
}

func TestWebhookSubscriberReturnsOnlyAfterDone(t *testing.T) {
	rq := &recordingQueue{}
	jobs := make(chan WebhookJob)
	require.NoError(t, StartWebhookSubscriber(context.Background(), rq, "webhook_events", jobs, nil))

	msg := webhookMessage(t)
	returned := make(chan error, 1)
	go func() { returned <- rq.handler(context.Background(), msg) }()

	job := <-jobs
	select {
	case <-returned:
		t.Fatal("handler returned before the job was processed")
	case <-time.After(20 * time.Millisecond):
	}

	job.Done()
	job.Done()
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler did not return after Done")
	}
}

func TestWebhookSubscriberUnblocksOnStop(t *testing.T) {
	rq := &recordingQueue{}
	stop, cancel := context.WithCancel(context.Background())
	// nobody reads jobs: every worker has already exited
	require.NoError(t, StartWebhookSubscriber(stop, rq, "webhook_events", make(chan WebhookJob), nil))

	msg := webhookMessage(t)
	returned := make(chan error, 1)
	go func() { returned <- rq.handler(context.WithoutCancel(stop), msg) }()
	cancel()

	select {
	case err := <-returned:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("handler stayed blocked after stop")
	}
}

func TestDecodeWebhookJobRejectsEmptyBody(t *testing.T) {
	_, err := DecodeWebhookJob([]byte(`{"id":"x","object":"page"}`))
	assert.Error(t, err)

	_, err = DecodeWebhookJob([]byte(`not json`))
	assert.Error(t, err)
}
