// Package handler assembles the HTTP router.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zentrodesk/zentro-desk/internal/controller"
)

// Controllers groups the HTTP entry points. Nil controllers leave their routes unmounted.
type Controllers struct {
	Webhook       *controller.WebhookController
	Messages      *controller.MessageController
	Conversations *controller.ConversationController
	Widget        *controller.WidgetController
	// Health reports whether dependencies are reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

func NewRouter(c Controllers, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.With(slog.String("component", "http"))))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(c.Health))

	if c.Webhook != nil {
		r.Get("/webhooks/meta", c.Webhook.Verify)
		r.Post("/webhooks/meta", c.Webhook.Receive)
	}
	if c.Messages != nil {
		r.Post("/send-message", c.Messages.Send)
		r.Post("/conversations/{id}/notes", c.Messages.AddNote)
	}
	if c.Conversations != nil {
		r.Patch("/conversations/{id}/status", c.Conversations.UpdateStatus)
	}
	if c.Widget != nil {
		r.Options("/widget-chat", c.Widget.Preflight)
		r.Post("/widget-chat", c.Widget.Handle)
	}
	return r
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
