// internal/models/message.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat holds one conversation per unordered user pair. ParticipantA is always
// the lexically smaller id.
type Chat struct {
	BaseModel
	ParticipantA  uuid.UUID  `json:"participant_a" gorm:"type:uuid;not null;uniqueIndex:idx_chat_pair"`
	ParticipantB  uuid.UUID  `json:"participant_b" gorm:"type:uuid;not null;uniqueIndex:idx_chat_pair;index"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

func (Chat) TableName() string { return "chats" }

// OrderedPair returns the participants in storage order.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

func (c *Chat) Other(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

type Message struct {
	BaseModel
	ChatID            uuid.UUID  `json:"chat_id" gorm:"type:uuid;not null;index"`
	SenderID          uuid.UUID  `json:"sender_id" gorm:"type:uuid;not null;index"`
	ReceiverID        uuid.UUID  `json:"receiver_id" gorm:"type:uuid;not null;index"`
	Content           string     `json:"content" gorm:"type:text;not null"`
	ReadAt            *time.Time `json:"read_at"`
	DeletedBySender   bool       `json:"-" gorm:"default:false"`
	DeletedByReceiver bool       `json:"-" gorm:"default:false"`
}

func (Message) TableName() string { return "messages" }

// VisibleTo reports whether the message has not been soft-deleted by userID.
func (m *Message) VisibleTo(userID uuid.UUID) bool {
	if m.SenderID == userID {
		return !m.DeletedBySender
	}
	if m.ReceiverID == userID {
		return !m.DeletedByReceiver
	}
	return false
}
