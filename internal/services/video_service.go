// internal/services/video_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limey-tt/limey-backend/internal/database"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

var videoSortFields = []string{"created_at", "view_count", "like_count"}

type VideoService struct {
	db      *gorm.DB
	storage *StorageService
}

type UploadVideoRequest struct {
	Title       string   `json:"title" form:"title" validate:"required,max=255"`
	Description string   `json:"description" form:"description" validate:"max=2000"`
	Category    string   `json:"category" form:"category" validate:"max=50"`
	Tags        []string `json:"tags" form:"tags" validate:"max=20,dive,max=50"`
}

type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

func NewVideoService(db *gorm.DB, storage *StorageService) *VideoService {
	return &VideoService{
		db:      db,
		storage: storage,
	}
}

// Feed lists videos newest first with their owners loaded in one extra query.
func (s *VideoService) Feed(ctx context.Context, params utils.PaginationParams) ([]models.Video, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Video{})

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Search != "" {
		query = query.Where("to_tsvector('english', title || ' ' || description) @@ plainto_tsquery('english', ?)", params.Search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	var videos []models.Video
	query = utils.ApplySort(query, params, videoSortFields)
	if err := utils.ApplyPagination(query, params).Preload("Owner").Find(&videos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load feed: %w", err)
	}

	return videos, total, nil
}

func (s *VideoService) Get(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	var video models.Video
	if err := s.db.WithContext(ctx).Preload("Owner").First(&video, "id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &video, nil
}

func (s *VideoService) ListByUser(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Video, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Video{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	var videos []models.Video
	query = utils.ApplySort(query, params, videoSortFields)
	if err := utils.ApplyPagination(query, params).Find(&videos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}

	return videos, total, nil
}

// RecordView counts one view of a video.
func (s *VideoService) RecordView(ctx context.Context, videoID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ?", videoID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to record view: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// Like is idempotent; like_count only moves when a like row is inserted.
func (s *VideoService) Like(ctx context.Context, videoID, userID uuid.UUID) (*LikeResult, error) {
	return s.toggleLike(ctx, videoID, userID, true)
}

func (s *VideoService) Unlike(ctx context.Context, videoID, userID uuid.UUID) (*LikeResult, error) {
	return s.toggleLike(ctx, videoID, userID, false)
}

func (s *VideoService) toggleLike(ctx context.Context, videoID, userID uuid.UUID, like bool) (*LikeResult, error) {
	result := &LikeResult{Liked: like}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "like_count").
			First(&video, "id = ?", videoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVideoNotFound
			}
			return err
		}

		var changed int64
		if like {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.VideoLike{VideoID: videoID, UserID: userID})
			if res.Error != nil {
				return res.Error
			}
			changed = res.RowsAffected
		} else {
			res := tx.Unscoped().
				Where("video_id = ? AND user_id = ?", videoID, userID).
				Delete(&models.VideoLike{})
			if res.Error != nil {
				return res.Error
			}
			changed = -res.RowsAffected
		}

		result.LikeCount = video.LikeCount + changed
		if result.LikeCount < 0 {
			result.LikeCount = 0
		}
		if changed == 0 {
			return nil
		}
		return tx.Model(&models.Video{}).
			Where("id = ?", videoID).
			UpdateColumn("like_count", result.LikeCount).Error
	})
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update like: %w", err)
	}

	return result, nil
}

func (s *VideoService) IsLiked(ctx context.Context, videoID, userID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.VideoLike{}).
		Where("video_id = ? AND user_id = ?", videoID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return n > 0, nil
}

// Upload stores the media files and creates the video row. thumbnail may be
// nil.
func (s *VideoService) Upload(ctx context.Context, userID uuid.UUID, video, thumbnail io.Reader, req *UploadVideoRequest) (*models.Video, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	media, err := s.storage.Upload(ctx, video, s.storage.GetDefaultUploadOptions(UploadVideos))
	if err != nil {
		return nil, err
	}

	row := &models.Video{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		VideoURL:    media.URL,
		Category:    req.Category,
		Tags:        pq.StringArray(req.Tags),
	}

	if thumbnail != nil {
		thumb, err := s.storage.Upload(ctx, thumbnail, s.storage.GetDefaultUploadOptions(UploadThumbnails))
		if err != nil {
			s.removeObject(ctx, media.URL)
			return nil, err
		}
		row.ThumbnailURL = thumb.URL
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.removeObject(ctx, media.URL)
		s.removeObject(ctx, row.ThumbnailURL)
		return nil, fmt.Errorf("failed to create video: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"video_id": row.ID,
		"user_id":  userID,
		"size":     media.Size,
	}).Info("Video uploaded")

	return row, nil
}

// Delete removes a video. Only its owner may delete it.
func (s *VideoService) Delete(ctx context.Context, videoID, userID uuid.UUID) error {
	var video models.Video
	if err := s.db.WithContext(ctx).First(&video, "id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	if video.UserID != userID {
		return ErrNotVideoOwner
	}

	if err := s.db.WithContext(ctx).Delete(&video).Error; err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	s.removeObject(ctx, video.VideoURL)
	s.removeObject(ctx, video.ThumbnailURL)
	return nil
}

func (s *VideoService) removeObject(ctx context.Context, url string) {
	key, ok := s.storage.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to delete stored media")
	}
}
