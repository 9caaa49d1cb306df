package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/limey-tt/limey-backend/internal/utils"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestProfileGetMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewProfileService(db, nil, &fakePublisher{})

	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := service.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileFollowSelf(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewProfileService(db, nil, &fakePublisher{})
	id := uuid.New()

	err := service.Follow(context.Background(), id, id)
	assert.ErrorIs(t, err, ErrCannotFollowSelf)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileUpdateRejectsBadUsername(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewProfileService(db, nil, &fakePublisher{})
	bad := "no spaces allowed"

	_, err := service.UpdateProfile(context.Background(), uuid.New(), &UpdateProfileRequest{Username: &bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileUpdateSameValuesSkipsWrite(t *testing.T) {
	db, mock := setupMockDB(t)
	publisher := &fakePublisher{}
	service := NewProfileService(db, nil, publisher)
	userID := uuid.New()
	username := "doubles_king"

	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username"}).AddRow(userID.String(), username))

	profile, err := service.UpdateProfile(context.Background(), userID, &UpdateProfileRequest{Username: &username})
	require.NoError(t, err)
	assert.Equal(t, username, profile.Username)
	assert.Empty(t, publisher.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileUpdateUsernameCheck(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewProfileService(db, nil, &fakePublisher{})
	userID := uuid.New()
	username := "soca_queen"

	expectProfile := func() {
		mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE user_id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "username"}).AddRow(userID.String(), "kai"))
	}

	expectProfile()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "profiles" WHERE username = \$1 AND user_id <> \$2`).
		WillReturnError(errors.New("connection reset"))
	_, err := service.UpdateProfile(context.Background(), userID, &UpdateProfileRequest{Username: &username})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUsernameTaken)
	assert.Contains(t, err.Error(), "connection reset")

	expectProfile()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "profiles" WHERE username = \$1 AND user_id <> \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	_, err = service.UpdateProfile(context.Background(), userID, &UpdateProfileRequest{Username: &username})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileIsAdmin(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewProfileService(db, nil, &fakePublisher{})

	mock.ExpectQuery(`SELECT count\(\*\) FROM "profiles" WHERE user_id = \$1 AND is_admin = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	isAdmin, err := service.IsAdmin(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, isAdmin)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "profiles"`).
		WillReturnError(errors.New("timeout"))
	isAdmin, err = service.IsAdmin(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.False(t, isAdmin)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRecordView(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewVideoService(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "videos" SET "view_count"=view_count \+ 1 WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, service.RecordView(context.Background(), uuid.New()))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "videos" SET "view_count"=view_count \+ 1 WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := service.RecordView(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoDeleteRequiresOwner(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewVideoService(db, nil)
	videoID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "videos" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title"}).
			AddRow(videoID.String(), uuid.New().String(), "Carnival Monday"))

	err := service.Delete(context.Background(), videoID, uuid.New())
	assert.ErrorIs(t, err, ErrNotVideoOwner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoUploadValidatesBeforeStoring(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewVideoService(db, newLocalStorage(t))

	_, err := service.Upload(context.Background(), uuid.New(), strings.NewReader("x"), nil, &UploadVideoRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageSendToSelf(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewMessageService(db, &fakePublisher{})
	id := uuid.New()

	_, err := service.Send(context.Background(), id, &SendMessageRequest{ReceiverID: id, Content: "hello"})
	assert.ErrorIs(t, err, ErrMessageToSelf)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageSendRejectsBlankContent(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewMessageService(db, &fakePublisher{})

	_, err := service.Send(context.Background(), uuid.New(), &SendMessageRequest{ReceiverID: uuid.New(), Content: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageDeleteIsPerSide(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewMessageService(db, &fakePublisher{})
	messageID, senderID, receiverID := uuid.New(), uuid.New(), uuid.New()

	messageRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "chat_id", "sender_id", "receiver_id", "content"}).
			AddRow(messageID.String(), uuid.New().String(), senderID.String(), receiverID.String(), "wah gwan")
	}

	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE id = \$1`).WillReturnRows(messageRow())
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "messages" SET "deleted_by_sender"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, service.DeleteMessage(context.Background(), senderID, messageID))

	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE id = \$1`).WillReturnRows(messageRow())
	err := service.DeleteMessage(context.Background(), uuid.New(), messageID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationWithoutChat(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewMessageService(db, &fakePublisher{})

	mock.ExpectQuery(`SELECT \* FROM "chats" WHERE participant_a = \$1 AND participant_b = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	messages, total, err := service.Conversation(context.Background(), uuid.New(), uuid.New(), utils.PaginationParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadUnknownChat(t *testing.T) {
	db, mock := setupMockDB(t)
	service := NewMessageService(db, &fakePublisher{})

	mock.ExpectQuery(`SELECT \* FROM "chats" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := service.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
