// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zentrodesk/zentro-desk/internal/config"
	"github.com/zentrodesk/zentro-desk/internal/controller"
	"github.com/zentrodesk/zentro-desk/internal/db"
	"github.com/zentrodesk/zentro-desk/internal/handler"
	"github.com/zentrodesk/zentro-desk/internal/logger"
	"github.com/zentrodesk/zentro-desk/internal/meta"
	"github.com/zentrodesk/zentro-desk/internal/queue"
	"github.com/zentrodesk/zentro-desk/internal/repository"
	"github.com/zentrodesk/zentro-desk/internal/service"
	"github.com/zentrodesk/zentro-desk/internal/signature"
)

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

	if cfg.Meta.AppSecret == "" {
		log.Warn("META_APP_SECRET is not set; every webhook delivery will be rejected")
	}

	inboxRepo := &repository.InboxRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	conversationRepo := &repository.ConversationRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}
	sessionRepo := &repository.WidgetSessionRepository{DB: conn}

	graph := meta.NewClient(cfg.Meta.GraphURL, cfg.Meta.GraphVersion, cfg.Meta.HTTPTimeout, log)
	identity := service.NewIdentityService(contactRepo, log)
	router := service.NewConversationService(conversationRepo, messageRepo, log)
	dispatch := service.NewDispatchService(conversationRepo, router, graph, log)
	widgets := service.NewWidgetService(inboxRepo, conversationRepo, messageRepo, sessionRepo, identity, router, log)

	// With the memory driver webhooks are ingested in this process; with AMQP
	// cmd/worker consumes them.
	var (
		q       queue.Queue
		workers sync.WaitGroup
	)
	switch cfg.Queue.Driver {
	case config.QueueDriverAMQP:
		aq, err := queue.DialAMQP(cfg.Queue.AMQPURL, 1, log)
		if err != nil {
			log.Error("broker unavailable", slog.Any("error", err))
			os.Exit(1)
		}
		defer aq.Close()
		q = aq
	default:
		mq := queue.NewInMemoryQueue(0, 0, log)
		ingest := service.NewIngestService(inboxRepo, identity, router, graph, log)
		jobs := make(chan queue.WebhookJob)
		if err := queue.StartWebhookSubscriber(ctx, mq, cfg.Queue.WebhookQueue, jobs, log); err != nil {
			log.Error("subscribe failed", slog.Any("error", err))
			os.Exit(1)
		}
		for i := 0; i < cfg.Queue.Workers; i++ {
			workers.Add(1)
			go func() {
				defer workers.Done()
				service.NewWorker(ingest, jobs, log).Start(ctx)
			}()
		}
		q = mq
	}

	h := handler.NewRouter(handler.Controllers{
		Webhook:       controller.NewWebhookController(signature.NewVerifier(cfg.Meta.AppSecret), cfg.Meta.WebhookVerifyToken, q, cfg.Queue.WebhookQueue, log),
		Messages:      controller.NewMessageController(dispatch, log),
		Conversations: controller.NewConversationController(router, log),
		Widget:        controller.NewWidgetController(widgets, log),
		Health:        conn.PingContext,
	}, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", slog.String("addr", cfg.HTTPAddr), slog.String("queue", cfg.Queue.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", slog.Any("error", err))
	}
	workers.Wait()
	log.Info("server stopped")
}
