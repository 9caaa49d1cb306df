// internal/models/video.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Video struct {
	BaseModel
	UserID       uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Title        string         `json:"title" gorm:"size:255;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	VideoURL     string         `json:"video_url" gorm:"type:text;not null"`
	ThumbnailURL string         `json:"thumbnail_url" gorm:"type:text"`
	Category     string         `json:"category" gorm:"size:50;index"`
	Tags         pq.StringArray `json:"tags" gorm:"type:text[]"`
	ViewCount    int64          `json:"view_count" gorm:"default:0"`
	LikeCount    int64          `json:"like_count" gorm:"default:0"`
	CommentCount int64          `json:"comment_count" gorm:"default:0"`

	// Relationships
	Owner *Profile `json:"owner,omitempty" gorm:"foreignKey:UserID;references:UserID"`
}

func (Video) TableName() string { return "videos" }

type VideoLike struct {
	BaseModel
	VideoID uuid.UUID `json:"video_id" gorm:"type:uuid;not null;uniqueIndex:idx_video_like"`
	UserID  uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_video_like"`
}

func (VideoLike) TableName() string { return "video_likes" }
