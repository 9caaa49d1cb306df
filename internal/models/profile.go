// internal/models/profile.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile is keyed by the auth provider's user id.
type Profile struct {
	UserID        uuid.UUID       `json:"user_id" gorm:"type:uuid;primaryKey"`
	Username      string          `json:"username" gorm:"uniqueIndex;size:50;not null"`
	DisplayName   string          `json:"display_name" gorm:"size:100"`
	AvatarURL     string          `json:"avatar_url" gorm:"type:text"`
	Bio           string          `json:"bio" gorm:"type:text"`
	TriniCredits  decimal.Decimal `json:"trini_credits" gorm:"type:decimal(12,2);not null;default:0"`
	PhoneVerified bool            `json:"phone_verified" gorm:"default:false"`
	IsAdmin       bool            `json:"-" gorm:"default:false"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

type Follow struct {
	BaseModel
	FollowerID  uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair"`
	FollowingID uuid.UUID `json:"following_id" gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair;index"`

	Follower  *Profile `json:"follower,omitempty" gorm:"foreignKey:FollowerID;references:UserID"`
	Following *Profile `json:"following,omitempty" gorm:"foreignKey:FollowingID;references:UserID"`
}

func (Follow) TableName() string { return "follows" }

type UserSettings struct {
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	Autoplay        bool      `json:"autoplay" gorm:"default:true"`
	NotifyMessages  bool      `json:"notify_messages" gorm:"default:true"`
	NotifyFollowers bool      `json:"notify_followers" gorm:"default:true"`
	PrivateAccount  bool      `json:"private_account" gorm:"default:false"`
	Language        string    `json:"language" gorm:"size:10;default:'en'"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (UserSettings) TableName() string { return "user_settings" }
