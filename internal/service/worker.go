package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/zentrodesk/zentro-desk/internal/queue"
)

// WebhookProcessor ingests one webhook job.
type WebhookProcessor interface {
	Process(ctx context.Context, job queue.WebhookJob) (IngestReport, error)
}

// Worker drains webhook jobs. Failures are logged and never retried.
type Worker struct {
	Processor WebhookProcessor
	JobChan   <-chan queue.WebhookJob
	logger    *slog.Logger
}

func NewWorker(p WebhookProcessor, jobChan <-chan queue.WebhookJob, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		Processor: p,
		JobChan:   jobChan,
		logger:    log.With(slog.String("component", "worker")),
	}
}

// Start processes jobs until the channel is closed or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.JobChan:
			if !ok {
				return
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job queue.WebhookJob) {
	defer job.Done()
	report, err := w.Processor.Process(ctx, job)
	if err != nil {
		w.logger.Warn("webhook job rejected", slog.String("job_id", job.ID), slog.Any("error", err))
		return
	}
	w.logger.Info("webhook job processed",
		slog.String("job_id", job.ID),
		slog.String("object", report.Object),
		slog.Int("events", report.Events),
		slog.Int("stored", report.Stored),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Duration("latency", time.Since(job.ReceivedAt)))
}
