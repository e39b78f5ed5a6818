package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/queue"
	"github.com/zentrodesk/zentro-desk/internal/repository/memrepo"
	"github.com/zentrodesk/zentro-desk/internal/service"
)

// MockSender records Graph API sends and returns canned ids or errors.
type MockSender struct {
	mu    sync.Mutex
	calls []string
	Err   error
}

func (m *MockSender) SendMessengerText(_ context.Context, channel, token, recipient, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("%s token=%s to=%s text=%s", channel, token, recipient, text))
	if m.Err != nil {
		return "", m.Err
	}
	return "m_out_1", nil
}

func (m *MockSender) SendWhatsAppText(_ context.Context, pnid, token, to, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("whatsapp pnid=%s token=%s to=%s text=%s", pnid, token, to, text))
	if m.Err != nil {
		return "", m.Err
	}
	return "wamid.OUT", nil
}

func (m *MockSender) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockMedia resolves media ids to predictable URLs, failing for ids in Fail.
type MockMedia struct {
	Fail map[string]bool
}

func (m *MockMedia) MediaURL(_ context.Context, token, id string) (string, error) {
	if m.Fail[id] {
		return "", &appErrors.ProviderError{Channel: "whatsapp", StatusCode: 404, Message: "not found"}
	}
	return "https://media.example/" + id, nil
}

type fixture struct {
	store *memrepo.Store
	org   *model.Organization

	whatsapp  *model.Inbox
	facebook  *model.Inbox
	instagram *model.Inbox
	widget    *model.Inbox

	sender *MockSender
	media  *MockMedia

	identity *service.IdentityService
	router   *service.ConversationService
	ingest   *service.IngestService
	dispatch *service.DispatchService
	widgets  *service.WidgetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memrepo.New()
	f := &fixture{
		store:  store,
		sender: &MockSender{},
		media:  &MockMedia{Fail: map[string]bool{}},
	}
	f.org = store.AddOrganization(model.Organization{Name: "Acme Support", Slug: "acme", IsActive: true})
	f.whatsapp = store.AddInbox(model.Inbox{
		OrganizationID: f.org.ID, Name: "WhatsApp", ChannelType: model.ChannelWhatsApp, IsActive: true,
		WAPhoneNumberID: "PN-1", WAAccessToken: "wa-token",
	})
	f.facebook = store.AddInbox(model.Inbox{
		OrganizationID: f.org.ID, Name: "Messenger", ChannelType: model.ChannelFacebook, IsActive: true,
		FBPageID: "PAGE-1", FBAccessToken: "page-token",
	})
	f.instagram = store.AddInbox(model.Inbox{
		OrganizationID: f.org.ID, Name: "Instagram", ChannelType: model.ChannelInstagram, IsActive: true,
		IGAccountID: "IG-1", FBPageID: "PAGE-1", FBAccessToken: "page-token",
	})
	f.widget = store.AddInbox(model.Inbox{
		OrganizationID: f.org.ID, Name: "Website", ChannelType: model.ChannelWidget, IsActive: true,
		WidgetToken: "widget-token",
	})

	f.identity = service.NewIdentityService(store.Contacts(), nil)
	f.router = service.NewConversationService(store.Conversations(), store.Messages(), nil)
	f.ingest = service.NewIngestService(store.Inboxes(), f.identity, f.router, f.media, nil)
	f.dispatch = service.NewDispatchService(store.Conversations(), f.router, f.sender, nil)
	f.widgets = service.NewWidgetService(store.Inboxes(), store.Conversations(), store.Messages(), store.WidgetSessions(), f.identity, f.router, nil)
	return f
}

func whatsAppPayload(phoneNumberID, from, name, messageID, body string) []byte {
	return []byte(fmt.Sprintf(`{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA-1", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "metadata": {"phone_number_id": %q},
    "contacts": [{"profile": {"name": %q}, "wa_id": %q}],
    "messages": [{"from": %q, "id": %q, "timestamp": "1700000000", "type": "text", "text": {"body": %q}}]
  }}]}]
}`, phoneNumberID, name, from, from, messageID, body))
}

func messengerPayload(object, pageID, psid, mid, text string, echo bool) []byte {
	return []byte(fmt.Sprintf(`{
  "object": %q,
  "entry": [{"id": %q, "time": 1700000000000, "messaging": [{
    "sender": {"id": %q}, "recipient": {"id": %q}, "timestamp": 1700000000000,
    "message": {"mid": %q, "text": %q, "is_echo": %t}
  }]}]
}`, object, pageID, psid, pageID, mid, text, echo))
}

func (f *fixture) process(t *testing.T, body []byte) service.IngestReport {
	t.Helper()
	report, err := f.ingest.Process(context.Background(), queue.NewWebhookJob("", body))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	return report
}

func messagesIn(store *memrepo.Store, conversationID string) []model.Message {
	var out []model.Message
	for _, m := range store.AllMessages() {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}
