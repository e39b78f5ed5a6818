package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/zentrodesk/zentro-desk/internal/errors"
	"github.com/zentrodesk/zentro-desk/internal/model"
)

func duplicateKey(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

func TestContactCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ContactRepository{DB: db}

	wa := "923001234567"
	mock.ExpectQuery(`INSERT INTO contacts`).
		WithArgs("org-1", nil, nil, nil, wa, nil, nil, false).
		WillReturnError(duplicateKey("contacts_org_wa_id_key"))

	err = repo.Create(context.Background(), &model.Contact{OrganizationID: "org-1", WAID: &wa})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationCreateMapsRoutableConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ConversationRepository{DB: db}

	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs("org-1", "inbox-1", "contact-1", "open", nil, nil).
		WillReturnError(duplicateKey("conversations_routable_key"))

	err = repo.Create(context.Background(), &model.Conversation{OrganizationID: "org-1", InboxID: "inbox-1", ContactID: "contact-1"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationApplyLatestMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ConversationRepository{DB: db}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`status = CASE WHEN \$5 AND status = 'pending' THEN 'open' ELSE status END`).
		WithArgs("conv-1", "Hello", at, "Ayesha", true, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("missing", "agent text", at, "Kay", false, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.ApplyLatestMessage(context.Background(), "conv-1", model.LatestMessageUpdate{
		Content: "Hello", At: at, Sender: "Ayesha", ReopenPending: true, IncrementUnread: true,
	})
	require.NoError(t, err)

	err = repo.ApplyLatestMessage(context.Background(), "missing", model.LatestMessageUpdate{
		Content: "agent text", At: at, Sender: "Kay",
	})
	assert.True(t, appErrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationUpdateStatusMapsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ConversationRepository{DB: db}

	mock.ExpectExec(`UPDATE conversations SET status`).
		WithArgs("conv-1", "open").
		WillReturnError(duplicateKey("conversations_routable_key"))

	err = repo.UpdateStatus(context.Background(), "conv-1", model.StatusOpen)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageCreateMapsDuplicateProviderID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &MessageRepository{DB: db}

	mid := "wamid.1"
	mock.ExpectQuery(`INSERT INTO messages`).
		WillReturnError(duplicateKey("messages_conversation_channel_id_key"))

	err = repo.Create(context.Background(), &model.Message{ConversationID: "conv-1", ChannelMessageID: &mid})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var messageColumns = []string{
	"id", "conversation_id", "organization_id", "sender_type", "sender_id", "sender_name",
	"message_type", "content", "attachment_urls", "channel_message_id",
	"is_private", "is_read", "is_deleted", "sent_at", "created_at",
}

func TestMessageListVisibleBounds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &MessageRepository{DB: db}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	since := created.Add(-time.Minute)

	// no bounds: both timestamp parameters are NULL and the page size is capped
	mock.ExpectQuery(`\$2::timestamptz IS NULL OR created_at > \$2`).
		WithArgs("conv-1", nil, nil, DefaultMessagePage).
		WillReturnRows(sqlmock.NewRows(messageColumns).
			AddRow("m1", "conv-1", "org-1", "contact", nil, "Dana", "text", "hi", "{https://a/1.jpg}", nil,
				false, false, false, nil, created))
	mock.ExpectQuery(`\$3::timestamptz IS NULL OR created_at >= \$3`).
		WithArgs("conv-1", nil, since, 10).
		WillReturnRows(sqlmock.NewRows(messageColumns))

	msgs, err := repo.ListVisible(context.Background(), "conv-1", MessageQuery{Limit: 5000})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"https://a/1.jpg"}, msgs[0].AttachmentURLs)
	assert.Nil(t, msgs[0].SentAt)

	msgs, err = repo.ListVisible(context.Background(), "conv-1", MessageQuery{Since: &since, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageQueryAdmits(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	after, since := base, base

	assert.True(t, MessageQuery{}.Admits(base))
	assert.False(t, MessageQuery{After: &after}.Admits(base))
	assert.True(t, MessageQuery{After: &after}.Admits(base.Add(time.Nanosecond)))
	assert.True(t, MessageQuery{Since: &since}.Admits(base))
	assert.False(t, MessageQuery{Since: &since}.Admits(base.Add(-time.Nanosecond)))
}

func TestWidgetSessionRebindMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &WidgetSessionRepository{DB: db}
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`UPDATE widget_sessions SET conversation_id`).
		WithArgs("sess-1", "conv-2", since).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Rebind(context.Background(), "sess-1", "conv-2", since)
	assert.True(t, appErrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
