// internal/services/notification_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/models"
)

const (
	NotificationFollow  = "follow"
	NotificationMessage = "message"
)

// maxPreviewLength caps the message excerpt carried in a notification.
const maxPreviewLength = 80

// NotificationService pushes user-facing notifications to the realtime
// layer, honouring each recipient's notification settings.
type NotificationService struct {
	db     *gorm.DB
	events events.Publisher
}

type Notification struct {
	UserID    uuid.UUID              `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func NewNotificationService(db *gorm.DB, publisher events.Publisher) *NotificationService {
	return &NotificationService{
		db:     db,
		events: publisher,
	}
}

// NotifyFollow tells followingID that followerID started following them.
func (s *NotificationService) NotifyFollow(ctx context.Context, followerID, followingID uuid.UUID) {
	settings, err := s.settings(ctx, followingID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", followingID).Warn("Failed to load notification settings")
		return
	}
	if !settings.NotifyFollowers {
		return
	}

	name := s.displayName(ctx, followerID)
	s.send(Notification{
		UserID:  followingID,
		Type:    NotificationFollow,
		Title:   "New follower",
		Message: fmt.Sprintf("%s started following you", name),
		Data:    map[string]interface{}{"follower_id": followerID.String()},
	})
}

// NotifyMessage tells the receiver of message about it.
func (s *NotificationService) NotifyMessage(ctx context.Context, message *models.Message) {
	settings, err := s.settings(ctx, message.ReceiverID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", message.ReceiverID).Warn("Failed to load notification settings")
		return
	}
	if !settings.NotifyMessages {
		return
	}

	name := s.displayName(ctx, message.SenderID)
	s.send(Notification{
		UserID:  message.ReceiverID,
		Type:    NotificationMessage,
		Title:   "New message from " + name,
		Message: truncateRunes(message.Content, maxPreviewLength),
		Data: map[string]interface{}{
			"chat_id":    message.ChatID.String(),
			"message_id": message.ID.String(),
			"sender_id":  message.SenderID.String(),
		},
	})
}

func (s *NotificationService) send(n Notification) {
	n.CreatedAt = time.Now().UTC()
	s.events.Publish(events.NotificationsSubject(n.UserID), events.TypeNotification, n)
}

// settings reads without creating; users who never saved settings get the
// defaults.
func (s *NotificationService) settings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	settings := models.UserSettings{
		UserID:          userID,
		NotifyMessages:  true,
		NotifyFollowers: true,
	}

	var rows []models.UserSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		settings = rows[0]
	}
	return &settings, nil
}

func (s *NotificationService) displayName(ctx context.Context, userID uuid.UUID) string {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Select("username", "display_name").First(&profile, "user_id = ?", userID).Error; err != nil {
		return "Someone"
	}
	if profile.DisplayName != "" {
		return profile.DisplayName
	}
	return "@" + profile.Username
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
