package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/queue"
)

func TestIngestWhatsAppText(t *testing.T) {
	f := newFixture(t)

	report := f.process(t, whatsAppPayload("PN-1", "923001234567", "Ayesha", "wamid.1", "Hello"))
	assert.Equal(t, 1, report.Events)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 0, report.Failed)

	contacts := f.store.AllContacts()
	require.Len(t, contacts, 1)
	c := contacts[0]
	assert.Equal(t, "923001234567", *c.WAID)
	assert.Equal(t, "+923001234567", *c.Phone)
	assert.Equal(t, "Ayesha", *c.Name)
	assert.Nil(t, c.FBPSID)
	assert.Nil(t, c.IGID)

	convs := f.store.AllConversations()
	require.Len(t, convs, 1)
	assert.Equal(t, f.whatsapp.ID, convs[0].InboxID)
	assert.Equal(t, model.StatusOpen, convs[0].Status)
	assert.Equal(t, "wamid.1", *convs[0].ChannelConversationID)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, "Hello", *convs[0].LatestMessage)
	assert.Equal(t, "Ayesha", *convs[0].LatestMessageSender)

	msgs := f.store.AllMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, model.SenderContact, msgs[0].SenderType)
	assert.Equal(t, c.ID, *msgs[0].SenderID)
	assert.Equal(t, "wamid.1", *msgs[0].ChannelMessageID)
	assert.False(t, msgs[0].IsPrivate)
	require.NotNil(t, msgs[0].SentAt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *msgs[0].SentAt)
}

func TestIngestFacebookEchoCreatesNothing(t *testing.T) {
	f := newFixture(t)

	report := f.process(t, messengerPayload("page", "PAGE-1", "psid-1", "mid.echo", "agent text", true))
	assert.Equal(t, 0, report.Events)
	assert.Equal(t, 1, report.Skipped)

	assert.Empty(t, f.store.AllContacts())
	assert.Empty(t, f.store.AllConversations())
	assert.Empty(t, f.store.AllMessages())
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	body := messengerPayload("page", "PAGE-1", "psid-1", "mid.1", "hi", false)

	first := f.process(t, body)
	second := f.process(t, body)
	assert.Equal(t, 1, first.Stored)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, 1, second.Skipped)

	assert.Len(t, f.store.AllContacts(), 1)
	assert.Len(t, f.store.AllConversations(), 1)
	assert.Len(t, f.store.AllMessages(), 1)
}

func TestIngestConcurrentDuplicateDeliveries(t *testing.T) {
	f := newFixture(t)
	const n = 16

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ingest.Process(context.Background(), queue.NewWebhookJob("whatsapp_business_account",
				whatsAppPayload("PN-1", "923001234567", "Ayesha", "wamid.burst", "Hello")))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.AllContacts(), 1)
	convs := f.store.AllConversations()
	require.Len(t, convs, 1)
	assert.Equal(t, model.StatusOpen, convs[0].Status)
	assert.Len(t, f.store.AllMessages(), 1)
}

func TestIngestInstagramRoutesByAccountOrPage(t *testing.T) {
	f := newFixture(t)

	f.process(t, messengerPayload("instagram", "IG-1", "igsid-1", "mid.a", "from ig", false))
	f.process(t, messengerPayload("instagram", "PAGE-1", "igsid-1", "mid.b", "via page", false))

	contacts := f.store.AllContacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, "igsid-1", *contacts[0].IGID)

	convs := f.store.AllConversations()
	require.Len(t, convs, 1)
	assert.Equal(t, f.instagram.ID, convs[0].InboxID)
	assert.Len(t, messagesIn(f.store, convs[0].ID), 2)
}

func TestIngestIsolatesUnknownInbox(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{
  "object": "page",
  "entry": [
    {"id": "PAGE-UNKNOWN", "messaging": [{"sender": {"id": "psid-9"}, "recipient": {"id": "PAGE-UNKNOWN"}, "timestamp": 1700000000, "message": {"mid": "mid.x", "text": "lost"}}]},
    {"id": "PAGE-1", "messaging": [{"sender": {"id": "psid-1"}, "recipient": {"id": "PAGE-1"}, "timestamp": 1700000000, "message": {"mid": "mid.y", "text": "found"}}]}
  ]
}`)

	report := f.process(t, body)
	assert.Equal(t, 2, report.Events)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Stored)

	msgs := f.store.AllMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "found", msgs[0].Content)
}

func TestIngestResolvesWhatsAppMedia(t *testing.T) {
	f := newFixture(t)
	f.media.Fail["media-bad"] = true
	body := []byte(`{
  "object": "whatsapp_business_account",
  "entry": [{"changes": [{"value": {
    "metadata": {"phone_number_id": "PN-1"},
    "messages": [
      {"from": "111", "id": "m1", "timestamp": "1700000000", "type": "image", "image": {"id": "media-1", "caption": "receipt"}},
      {"from": "111", "id": "m2", "timestamp": "1700000001", "type": "audio", "audio": {"id": "media-bad"}}
    ]
  }}]}]
}`)

	report := f.process(t, body)
	assert.Equal(t, 2, report.Stored)

	msgs := f.store.AllMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "receipt", msgs[0].Content)
	assert.Equal(t, model.MessageImage, msgs[0].MessageType)
	assert.Equal(t, []string{"https://media.example/media-1"}, msgs[0].AttachmentURLs)

	// lookup failure keeps the message without a URL
	assert.Equal(t, model.AttachmentPlaceholder, msgs[1].Content)
	assert.Empty(t, msgs[1].AttachmentURLs)
}

func TestIngestRejectsUndecodableBody(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingest.Process(context.Background(), queue.NewWebhookJob("", []byte(`{"object":`)))
	assert.Error(t, err)
}

func TestIngestInactiveInboxDropsEvent(t *testing.T) {
	f := newFixture(t)
	f.store.AddInbox(model.Inbox{
		OrganizationID: f.org.ID, Name: "Old number", ChannelType: model.ChannelWhatsApp,
		WAPhoneNumberID: "PN-OLD", IsActive: false,
	})

	report := f.process(t, whatsAppPayload("PN-OLD", "111", "X", "wamid.1", "hi"))
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, f.store.AllContacts())
}
