// Package memrepo is an in-memory store that satisfies the repository
// interfaces and enforces the same uniqueness rules as the Postgres schema.
// It backs service and controller tests.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
	"github.com/zentrodesk/zentro-desk/internal/repository"
)

type Store struct {
	mu            sync.Mutex
	seq           int64
	orgs          map[string]*model.Organization
	inboxes       map[string]*model.Inbox
	contacts      map[string]*model.Contact
	conversations map[string]*conversationRow
	messages      []*messageRow
	sessions      map[string]*model.WidgetSession
}

type conversationRow struct {
	model.Conversation
	seq int64
}

type messageRow struct {
	model.Message
	seq int64
}

func New() *Store {
	return &Store{
		orgs:          map[string]*model.Organization{},
		inboxes:       map[string]*model.Inbox{},
		contacts:      map[string]*model.Contact{},
		conversations: map[string]*conversationRow{},
		sessions:      map[string]*model.WidgetSession{},
	}
}

func (s *Store) Inboxes() *InboxRepo             { return &InboxRepo{s} }
func (s *Store) Contacts() *ContactRepo           { return &ContactRepo{s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s} }
func (s *Store) WidgetSessions() *WidgetSessionRepo {
	return &WidgetSessionRepo{s}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// AddOrganization seeds an organization, assigning an id if empty.
func (s *Store) AddOrganization(o model.Organization) *model.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.orgs[o.ID] = &o
	cp := o
	return &cp
}

// AddInbox seeds an inbox, assigning an id if empty.
func (s *Store) AddInbox(in model.Inbox) *model.Inbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	s.inboxes[in.ID] = &in
	cp := in
	return &cp
}

// AllContacts returns a snapshot of every contact.
func (s *Store) AllContacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, *c)
	}
	return out
}

// AllConversations returns a snapshot of every conversation in creation order.
func (s *Store) AllConversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*conversationRow, 0, len(s.conversations))
	for _, c := range s.conversations {
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]model.Conversation, len(rows))
	for i, r := range rows {
		out[i] = r.Conversation
	}
	return out
}

// AllMessages returns a snapshot of every message, private and deleted included.
func (s *Store) AllMessages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Message
	}
	return out
}

// DeleteMessage soft-deletes a message.
func (s *Store) DeleteMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			m.IsDeleted = true
		}
	}
}

// InboxRepo implements repository.InboxRepositoryInterface.
type InboxRepo struct{ s *Store }

func (r *InboxRepo) GetByID(_ context.Context, id string) (*model.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in, ok := r.s.inboxes[id]
	if !ok {
		return nil, appErrors.NewNotFound("inbox", id)
	}
	cp := *in
	return &cp, nil
}

func (r *InboxRepo) FindActiveByChannelAccount(_ context.Context, channel model.ChannelType, accountID string) (*model.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Inbox
	for _, in := range r.s.inboxes {
		if !in.IsActive || in.ChannelType != channel {
			continue
		}
		var match bool
		switch channel {
		case model.ChannelWhatsApp:
			match = in.WAPhoneNumberID == accountID
		case model.ChannelFacebook:
			match = in.FBPageID == accountID
		case model.ChannelInstagram:
			match = in.IGAccountID == accountID || in.FBPageID == accountID
		default:
			return nil, fmt.Errorf("channel %q has no provider account", channel)
		}
		if match && (best == nil || in.CreatedAt.Before(best.CreatedAt)) {
			best = in
		}
	}
	if best == nil {
		return nil, appErrors.NewNotFound("inbox", string(channel)+":"+accountID)
	}
	cp := *best
	return &cp, nil
}

func (r *InboxRepo) FindByWidgetToken(_ context.Context, token string) (*model.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range r.s.inboxes {
		if in.IsActive && in.ChannelType == model.ChannelWidget && in.WidgetToken != "" && in.WidgetToken == token {
			cp := *in
			if org, ok := r.s.orgs[in.OrganizationID]; ok {
				cp.OrganizationName = org.Name
			}
			return &cp, nil
		}
	}
	return nil, appErrors.NewNotFound("widget inbox", "token")
}

// ContactRepo implements repository.ContactRepositoryInterface.
type ContactRepo struct{ s *Store }

func (r *ContactRepo) GetByID(_ context.Context, id string) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, appErrors.NewNotFound("contact", id)
	}
	cp := *c
	return &cp, nil
}

func (r *ContactRepo) GetByChannelKey(_ context.Context, orgID string, key model.ChannelKey, value string) (*model.Contact, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("invalid channel key %q", key)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.s.findContact(orgID, key, value); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, appErrors.NewNotFound("contact", string(key)+":"+value)
}

func (s *Store) findContact(orgID string, key model.ChannelKey, value string) *model.Contact {
	for _, c := range s.contacts {
		if c.OrganizationID == orgID && c.Identifier(key) == value {
			return c
		}
	}
	return nil
}

func (r *ContactRepo) Create(_ context.Context, c *model.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, key := range []model.ChannelKey{model.KeyWhatsAppID, model.KeyFacebookPSID, model.KeyInstagramID, model.KeyEmail} {
		if v := c.Identifier(key); v != "" && r.s.findContact(c.OrganizationID, key, v) != nil {
			return appErrors.ErrConflict
		}
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.s.contacts[c.ID] = &cp
	return nil
}

// ConversationRepo implements repository.ConversationRepositoryInterface.
type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) GetByID(_ context.Context, id string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, appErrors.NewNotFound("conversation", id)
	}
	cp := c.Conversation
	return &cp, nil
}

func (r *ConversationRepo) GetWithParticipants(_ context.Context, id string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, appErrors.NewNotFound("conversation", id)
	}
	in, okIn := r.s.inboxes[c.InboxID]
	ct, okCt := r.s.contacts[c.ContactID]
	if !okIn || !okCt {
		return nil, appErrors.NewNotFound("conversation", id)
	}
	cp := c.Conversation
	inCp, ctCp := *in, *ct
	cp.Inbox, cp.Contact = &inCp, &ctCp
	return &cp, nil
}

func routable(status model.ConversationStatus) bool {
	for _, s := range model.RoutableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Store) findRoutable(orgID, inboxID, contactID string) *conversationRow {
	var best *conversationRow
	for _, c := range s.conversations {
		if c.OrganizationID != orgID || c.InboxID != inboxID || c.ContactID != contactID || !routable(c.Status) {
			continue
		}
		if best == nil || c.seq > best.seq {
			best = c
		}
	}
	return best
}

func (r *ConversationRepo) FindRoutable(_ context.Context, orgID, inboxID, contactID string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.findRoutable(orgID, inboxID, contactID)
	if c == nil {
		return nil, appErrors.NewNotFound("routable conversation", contactID)
	}
	cp := c.Conversation
	return &cp, nil
}

func (r *ConversationRepo) Create(_ context.Context, c *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.Status == "" {
		c.Status = model.StatusOpen
	}
	if routable(c.Status) && r.s.findRoutable(c.OrganizationID, c.InboxID, c.ContactID) != nil {
		return appErrors.ErrConflict
	}
	now := time.Now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = now, now
	c.UnreadCount = 0
	row := &conversationRow{Conversation: *c, seq: r.s.next()}
	row.Inbox, row.Contact = nil, nil
	r.s.conversations[c.ID] = row
	return nil
}

func (r *ConversationRepo) ApplyLatestMessage(_ context.Context, id string, u model.LatestMessageUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return appErrors.NewNotFound("conversation", id)
	}
	content, sender, at := u.Content, u.Sender, u.At
	c.LatestMessage, c.LatestMessageSender, c.LatestMessageAt = &content, &sender, &at
	if u.ReopenPending && c.Status == model.StatusPending {
		c.Status = model.StatusOpen
	}
	if u.IncrementUnread {
		c.UnreadCount++
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ConversationRepo) UpdateStatus(_ context.Context, id string, status model.ConversationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return appErrors.NewNotFound("conversation", id)
	}
	if routable(status) && !routable(c.Status) {
		if other := r.s.findRoutable(c.OrganizationID, c.InboxID, c.ContactID); other != nil {
			return appErrors.ErrConflict
		}
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// MessageRepo implements repository.MessageRepositoryInterface.
type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, m *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ChannelMessageID != nil {
		for _, existing := range r.s.messages {
			if existing.ConversationID == m.ConversationID && existing.ChannelMessageID != nil &&
				*existing.ChannelMessageID == *m.ChannelMessageID {
				return appErrors.ErrConflict
			}
		}
	}
	if m.MessageType == "" {
		m.MessageType = model.MessageText
	}
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	m.IsDeleted = false
	row := &messageRow{Message: *m, seq: r.s.next()}
	row.AttachmentURLs = append([]string(nil), m.AttachmentURLs...)
	r.s.messages = append(r.s.messages, row)
	return nil
}

func (r *MessageRepo) ListVisible(_ context.Context, conversationID string, q repository.MessageQuery) ([]*model.Message, error) {
	limit := q.Limit
	if limit <= 0 || limit > repository.DefaultMessagePage {
		limit = repository.DefaultMessagePage
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Message{}
	for _, m := range r.s.messages {
		if m.ConversationID != conversationID || m.IsPrivate || m.IsDeleted {
			continue
		}
		if !q.Admits(m.CreatedAt) {
			continue
		}
		cp := m.Message
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// WidgetSessionRepo implements repository.WidgetSessionRepositoryInterface.
type WidgetSessionRepo struct{ s *Store }

func (r *WidgetSessionRepo) Create(_ context.Context, ws *model.WidgetSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws.ID = uuid.NewString()
	ws.CreatedAt = time.Now().UTC()
	cp := *ws
	r.s.sessions[ws.ID] = &cp
	return nil
}

func (r *WidgetSessionRepo) GetByID(_ context.Context, id string) (*model.WidgetSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.sessions[id]
	if !ok {
		return nil, appErrors.NewNotFound("widget session", id)
	}
	cp := *ws
	return &cp, nil
}

func (r *WidgetSessionRepo) Rebind(_ context.Context, id, conversationID string, since time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.sessions[id]
	if !ok {
		return appErrors.NewNotFound("widget session", id)
	}
	ws.ConversationID, ws.Since = conversationID, since
	return nil
}

var (
	_ repository.InboxRepositoryInterface         = (*InboxRepo)(nil)
	_ repository.ContactRepositoryInterface       = (*ContactRepo)(nil)
	_ repository.ConversationRepositoryInterface  = (*ConversationRepo)(nil)
	_ repository.MessageRepositoryInterface       = (*MessageRepo)(nil)
	_ repository.WidgetSessionRepositoryInterface = (*WidgetSessionRepo)(nil)
)
