package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/normalizer"
	"github.com/zentrodesk/zentro-desk/internal/queue"
	"github.com/zentrodesk/zentro-desk/internal/repository"
)

// MediaResolver turns a provider media id into a downloadable URL.
type MediaResolver interface {
	MediaURL(ctx context.Context, accessToken, mediaID string) (string, error)
}

// IngestService runs a verified webhook delivery through normalization,
// identity resolution and conversation routing.
type IngestService struct {
	Inboxes  repository.InboxRepositoryInterface
	Identity *IdentityService
	Router   *ConversationService
	Media    MediaResolver
	logger   *slog.Logger
}

func NewIngestService(inboxes repository.InboxRepositoryInterface, identity *IdentityService, router *ConversationService, media MediaResolver, log *slog.Logger) *IngestService {
	if log == nil {
		log = slog.Default()
	}
	return &IngestService{
		Inboxes:  inboxes,
		Identity: identity,
		Router:   router,
		Media:    media,
		logger:   log.With(slog.String("component", "ingest")),
	}
}

// IngestReport summarises one processed delivery.
type IngestReport struct {
	JobID   string
	Object  string
	Events  int
	Stored  int
	Skipped int
	Failed  int
}

// Process ingests every message in the job. Events are handled in delivery order
// and a failing event never stops its siblings. The returned error is only set
// when the body cannot be decoded at all.
func (s *IngestService) Process(ctx context.Context, job queue.WebhookJob) (IngestReport, error) {
	report := IngestReport{JobID: job.ID, Object: job.Object}
	log := s.logger.With(slog.String("job_id", job.ID))

	res, err := normalizer.NormalizeBody(job.Body)
	if err != nil {
		return report, err
	}
	report.Object = res.Object
	report.Events = len(res.Events)
	report.Skipped = res.Skipped
	report.Failed = len(res.Errors)
	for _, nerr := range res.Errors {
		log.Warn("event not normalized", slog.String("object", res.Object), slog.Any("error", nerr))
	}

	for i := range res.Events {
		ev := &res.Events[i]
		stored, err := s.ingestEvent(ctx, ev)
		switch {
		case err != nil:
			report.Failed++
			level := slog.LevelError
			if appErrors.IsNotFound(err) {
				level = slog.LevelWarn
			}
			log.Log(ctx, level, "event dropped",
				slog.String("channel", string(ev.Channel)),
				slog.String("account_id", ev.ProviderAccountID),
				slog.String("provider_message_id", ev.ProviderMessageID),
				slog.Any("error", err))
		case stored:
			report.Stored++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

func (s *IngestService) ingestEvent(ctx context.Context, ev *normalizer.InboundEvent) (bool, error) {
	inbox, err := s.Inboxes.FindActiveByChannelAccount(ctx, ev.Channel, ev.ProviderAccountID)
	if err != nil {
		return false, err
	}

	key, err := model.KeyForChannel(ev.Channel)
	if err != nil {
		return false, err
	}
	profile := ContactProfile{Name: ev.DisplayName}
	if ev.Channel == model.ChannelWhatsApp {
		profile.Phone = "+" + strings.TrimPrefix(ev.SenderExternalID, "+")
	}
	contact, err := s.Identity.ResolveOrCreate(ctx, inbox.OrganizationID, key, ev.SenderExternalID, profile)
	if err != nil {
		return false, err
	}

	conv, err := s.Router.ResolveOrOpen(ctx, inbox, contact, OpenOptions{ProviderMessageID: ev.ProviderMessageID})
	if err != nil {
		return false, err
	}

	msg := &model.Message{
		SenderType:     model.SenderContact,
		SenderID:       &contact.ID,
		SenderName:     contact.DisplayName(),
		MessageType:    ev.MessageType,
		Content:        ev.Text,
		AttachmentURLs: append(ev.AttachmentURLs, s.resolveMedia(ctx, inbox, ev)...),
	}
	if ev.ProviderMessageID != "" {
		id := ev.ProviderMessageID
		msg.ChannelMessageID = &id
	}
	if !ev.OccurredAt.IsZero() {
		sent := ev.OccurredAt
		msg.SentAt = &sent
	}
	return s.Router.Append(ctx, conv, msg)
}

// resolveMedia looks up download URLs for WhatsApp media. Failures are logged
// and the message is kept without the attachment URL.
func (s *IngestService) resolveMedia(ctx context.Context, inbox *model.Inbox, ev *normalizer.InboundEvent) []string {
	if len(ev.MediaIDs) == 0 || s.Media == nil || inbox.WAAccessToken == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	urls := make([]string, 0, len(ev.MediaIDs))
	for _, id := range ev.MediaIDs {
		u, err := s.Media.MediaURL(ctx, inbox.WAAccessToken, id)
		if err != nil {
			s.logger.Warn("media lookup failed", slog.String("media_id", id), slog.Any("error", err))
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
