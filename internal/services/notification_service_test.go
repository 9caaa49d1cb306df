package services

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/models"
)

func TestNotifyFollowRespectsSettings(t *testing.T) {
	db, mock := setupMockDB(t)
	publisher := &fakePublisher{}
	service := NewNotificationService(db, publisher)

	mock.ExpectQuery(`SELECT \* FROM "user_settings" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "notify_messages", "notify_followers"}).
			AddRow(uuid.New(), true, false))

	service.NotifyFollow(context.Background(), uuid.New(), uuid.New())

	assert.Equal(t, 0, publisher.count(events.TypeNotification))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifyFollowDefaultsToEnabled(t *testing.T) {
	db, mock := setupMockDB(t)
	publisher := &fakePublisher{}
	service := NewNotificationService(db, publisher)
	following := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "user_settings" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery(`FROM "profiles" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"username", "display_name"}).AddRow("kai", "Kai"))

	service.NotifyFollow(context.Background(), uuid.New(), following)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, events.NotificationsSubject(following), event.subject)

	n, ok := event.data.(Notification)
	require.True(t, ok)
	assert.Equal(t, NotificationFollow, n.Type)
	assert.Equal(t, "Kai started following you", n.Message)
}

func TestNotifyMessageTruncatesPreview(t *testing.T) {
	db, mock := setupMockDB(t)
	publisher := &fakePublisher{}
	service := NewNotificationService(db, publisher)

	mock.ExpectQuery(`SELECT \* FROM "user_settings" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery(`FROM "profiles" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"username", "display_name"}).AddRow("kai", ""))

	message := &models.Message{
		SenderID:   uuid.New(),
		ReceiverID: uuid.New(),
		Content:    strings.Repeat("a", 200),
	}
	service.NotifyMessage(context.Background(), message)

	require.Len(t, publisher.events, 1)
	n := publisher.events[0].data.(Notification)
	assert.Equal(t, "New message from @kai", n.Title)
	assert.Len(t, []rune(n.Message), maxPreviewLength)
}
