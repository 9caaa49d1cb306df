// internal/services/message_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limey-tt/limey-backend/internal/database"
	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

// visibleToClause filters out messages the caller has deleted on their side.
const visibleToClause = "((sender_id = ? AND deleted_by_sender = false) OR (receiver_id = ? AND deleted_by_receiver = false))"

type MessageService struct {
	db            *gorm.DB
	events        events.Publisher
	notifications *NotificationService
}

type SendMessageRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
	Content    string    `json:"content" validate:"required,max=4000"`
}

// ChatSummary is one row of the inbox.
type ChatSummary struct {
	models.Chat
	Other       *models.Profile `json:"other"`
	LastMessage *models.Message `json:"last_message,omitempty"`
	Unread      int64           `json:"unread"`
}

func NewMessageService(db *gorm.DB, publisher events.Publisher) *MessageService {
	return &MessageService{
		db:            db,
		events:        publisher,
		notifications: NewNotificationService(db, publisher),
	}
}

// Send stores a message in the pair's chat, creating the chat on first use.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req *SendMessageRequest) (*models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if senderID == req.ReceiverID {
		return nil, ErrMessageToSelf
	}

	var receivers int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", req.ReceiverID).Count(&receivers).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if receivers == 0 {
		return nil, ErrProfileNotFound
	}

	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		chat, err := findOrCreateChat(tx, senderID, req.ReceiverID)
		if err != nil {
			return err
		}

		message.ChatID = chat.ID
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		return tx.Model(chat).Update("last_message_at", message.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"message_id": message.ID,
		"chat_id":    message.ChatID,
		"sender_id":  senderID,
	}).Debug("Message sent")

	s.events.Publish(events.MessagesSubject(req.ReceiverID), events.TypeMessageCreated, message)
	s.notifications.NotifyMessage(ctx, message)
	return message, nil
}

func findOrCreateChat(tx *gorm.DB, a, b uuid.UUID) (*models.Chat, error) {
	first, second := models.OrderedPair(a, b)
	chat := models.Chat{ParticipantA: first, ParticipantB: second}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chat).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	if err := tx.Where("participant_a = ? AND participant_b = ?", first, second).First(&chat).Error; err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return &chat, nil
}

// Conversation returns the messages between userID and otherID, newest first.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID uuid.UUID, params utils.PaginationParams) ([]models.Message, int64, error) {
	first, second := models.OrderedPair(userID, otherID)

	var chat models.Chat
	err := s.db.WithContext(ctx).
		Where("participant_a = ? AND participant_b = ?", first, second).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []models.Message{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ?", chat.ID).
		Where(visibleToClause, userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []models.Message
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load messages: %w", err)
	}

	return messages, total, nil
}

// ListChats returns the caller's chats, most recently active first.
func (s *MessageService) ListChats(ctx context.Context, userID uuid.UUID) ([]ChatSummary, error) {
	db := s.db.WithContext(ctx)

	var chats []models.Chat
	err := db.Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at DESC NULLS LAST").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if len(chats) == 0 {
		return []ChatSummary{}, nil
	}

	chatIDs := make([]uuid.UUID, len(chats))
	otherIDs := make([]uuid.UUID, len(chats))
	for i := range chats {
		chatIDs[i] = chats[i].ID
		otherIDs[i] = chats[i].Other(userID)
	}

	var profiles []models.Profile
	if err := db.Where("user_id IN ?", otherIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to load chat profiles: %w", err)
	}
	profileByID := make(map[uuid.UUID]*models.Profile, len(profiles))
	for i := range profiles {
		profileByID[profiles[i].UserID] = &profiles[i]
	}

	var latest []models.Message
	err = db.Raw(`SELECT DISTINCT ON (chat_id) * FROM messages
		WHERE chat_id IN ? AND deleted_at IS NULL AND `+visibleToClause+`
		ORDER BY chat_id, created_at DESC`, chatIDs, userID, userID).
		Scan(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load last messages: %w", err)
	}
	latestByChat := make(map[uuid.UUID]*models.Message, len(latest))
	for i := range latest {
		latestByChat[latest[i].ChatID] = &latest[i]
	}

	var unread []struct {
		ChatID uuid.UUID
		Count  int64
	}
	err = db.Model(&models.Message{}).
		Select("chat_id, COUNT(*) AS count").
		Where("chat_id IN ? AND receiver_id = ? AND read_at IS NULL AND deleted_by_receiver = false", chatIDs, userID).
		Group("chat_id").
		Scan(&unread).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	unreadByChat := make(map[uuid.UUID]int64, len(unread))
	for _, u := range unread {
		unreadByChat[u.ChatID] = u.Count
	}

	summaries := make([]ChatSummary, len(chats))
	for i, chat := range chats {
		summaries[i] = ChatSummary{
			Chat:        chat,
			Other:       profileByID[chat.Other(userID)],
			LastMessage: latestByChat[chat.ID],
			Unread:      unreadByChat[chat.ID],
		}
	}
	return summaries, nil
}

// MarkRead marks every unread message addressed to userID in the chat as read
// and returns how many changed.
func (s *MessageService) MarkRead(ctx context.Context, userID, chatID uuid.UUID) (int64, error) {
	var chat models.Chat
	err := s.db.WithContext(ctx).
		Where("id = ? AND (participant_a = ? OR participant_b = ?)", chatID, userID, userID).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrChatNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND receiver_id = ? AND read_at IS NULL", chatID, userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL AND deleted_by_receiver = false", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

// DeleteMessage hides a message from the caller only; the other participant
// still sees it.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	var message models.Message
	if err := s.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	var column string
	switch userID {
	case message.SenderID:
		column = "deleted_by_sender"
	case message.ReceiverID:
		column = "deleted_by_receiver"
	default:
		return ErrMessageNotFound
	}

	if err := s.db.WithContext(ctx).Model(&message).Update(column, true).Error; err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
