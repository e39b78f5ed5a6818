package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/zentrodesk/zentro-desk/internal/config"
	"github.com/zentrodesk/zentro-desk/internal/db"
	"github.com/zentrodesk/zentro-desk/internal/logger"
	"github.com/zentrodesk/zentro-desk/internal/meta"
	"github.com/zentrodesk/zentro-desk/internal/queue"
	"github.com/zentrodesk/zentro-desk/internal/repository"
	"github.com/zentrodesk/zentro-desk/internal/service"
)

// The worker consumes verified webhook deliveries from RabbitMQ and ingests them.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Postgres.DSN(), log)
	if err != nil {
		log.Error("database unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	identity := service.NewIdentityService(&repository.ContactRepository{DB: conn}, log)
	router := service.NewConversationService(&repository.ConversationRepository{DB: conn}, &repository.MessageRepository{DB: conn}, log)
	graph := meta.NewClient(cfg.Meta.GraphURL, cfg.Meta.GraphVersion, cfg.Meta.HTTPTimeout, log)
	ingest := service.NewIngestService(&repository.InboxRepository{DB: conn}, identity, router, graph, log)

	q, err := queue.DialAMQP(cfg.Queue.AMQPURL, cfg.Queue.Workers, log)
	if err != nil {
		log.Error("broker unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer q.Close()

	jobs := make(chan queue.WebhookJob)
	if err := queue.StartWebhookSubscriber(ctx, q, cfg.Queue.WebhookQueue, jobs, log); err != nil {
		log.Error("subscribe failed", slog.Any("error", err))
		os.Exit(1)
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Queue.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			service.NewWorker(ingest, jobs, log).Start(ctx)
		}()
	}
	log.Info("worker running", slog.String("queue", cfg.Queue.WebhookQueue), slog.Int("workers", cfg.Queue.Workers))

	select {
	case <-ctx.Done():
	case amqpErr := <-q.NotifyClose():
		log.Error("broker connection lost", slog.Any("error", amqpErr))
		stop()
	}
	wg.Wait()
	log.Info("worker stopped")
}
