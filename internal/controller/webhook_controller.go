package controller

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zentrodesk/zentro-desk/internal/queue"
	"github.com/zentrodesk/zentro-desk/internal/signature"
)

// MaxWebhookBody caps the size of a webhook delivery.
const MaxWebhookBody = 1 << 20

// WebhookController receives Meta webhooks. Deliveries are only verified and
// queued here; ingestion happens in a worker after the provider is acknowledged.
type WebhookController struct {
	Verifier    *signature.Verifier
	VerifyToken string
	Queue       queue.Queue
	Topic       string
	logger      *slog.Logger
}

func NewWebhookController(v *signature.Verifier, verifyToken string, q queue.Queue, topic string, log *slog.Logger) *WebhookController {
	return &WebhookController{
		Verifier:    v,
		VerifyToken: verifyToken,
		Queue:       q,
		Topic:       topic,
		logger:      orDefault(log).With(slog.String("component", "webhook")),
	}
}

// Verify answers the subscription handshake.
func (c *WebhookController) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")

	if mode != "subscribe" || c.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(c.VerifyToken)) != 1 {
		c.logger.Warn("webhook verification rejected", slog.String("mode", mode))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// Receive checks the body signature, enqueues the delivery and acknowledges it.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if err := c.Verifier.Verify(body, r.Header.Get(signature.Header)); err != nil {
		c.logger.Warn("webhook signature rejected", slog.String("remote_addr", r.RemoteAddr), slog.Any("error", err))
		writeError(w, c.logger, err)
		return
	}

	// The object tag is only informational here; a malformed body is still
	// acknowledged and rejected by the worker.
	var head struct {
		Object string `json:"object"`
	}
	_ = json.Unmarshal(body, &head)

	job := queue.NewWebhookJob(head.Object, body)
	if err := queue.PublishWebhook(r.Context(), c.Queue, c.Topic, job); err != nil {
		c.logger.Error("enqueue webhook failed", slog.String("job_id", job.ID), slog.Any("error", err))
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
		return
	}

	c.logger.Debug("webhook queued", slog.String("job_id", job.ID), slog.String("object", head.Object))
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "EVENT_RECEIVED")
}
