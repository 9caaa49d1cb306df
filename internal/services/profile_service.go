// internal/services/profile_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type ProfileService struct {
	db            *gorm.DB
	storage       *StorageService
	events        events.Publisher
	notifications *NotificationService
}

type UpdateProfileRequest struct {
	Username    *string `json:"username,omitempty" validate:"omitempty,username"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=500"`
}

type UpdateSettingsRequest struct {
	Autoplay        *bool   `json:"autoplay,omitempty"`
	NotifyMessages  *bool   `json:"notify_messages,omitempty"`
	NotifyFollowers *bool   `json:"notify_followers,omitempty"`
	PrivateAccount  *bool   `json:"private_account,omitempty"`
	Language        *string `json:"language,omitempty" validate:"omitempty,oneof=en es"`
}

// ProfileView is a profile with its social counters.
type ProfileView struct {
	*models.Profile
	Followers   int64 `json:"followers"`
	Following   int64 `json:"following"`
	Videos      int64 `json:"videos"`
	IsFollowing bool  `json:"is_following"`
}

func NewProfileService(db *gorm.DB, storage *StorageService, publisher events.Publisher) *ProfileService {
	return &ProfileService{
		db:            db,
		storage:       storage,
		events:        publisher,
		notifications: NewNotificationService(db, publisher),
	}
}

// EnsureProfile creates the profile row for a freshly signed up user.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID uuid.UUID, username, displayName string) (*models.Profile, error) {
	profile := models.Profile{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
	}

	err := s.db.WithContext(ctx).
		Where(models.Profile{UserID: userID}).
		Attrs(profile).
		FirstOrCreate(&profile).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &profile, nil
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &profile, nil
}

// IsAdmin reports whether the profile carries the is_admin flag. A missing
// profile is not an admin.
func (s *ProfileService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ? AND is_admin = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check admin flag: %w", err)
	}
	return n > 0, nil
}

// View loads a profile with counters. viewerID may be uuid.Nil for anonymous
// requests.
func (s *ProfileService) View(ctx context.Context, profile *models.Profile, viewerID uuid.UUID) (*ProfileView, error) {
	view := &ProfileView{Profile: profile}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Follow{}).Where("following_id = ?", profile.UserID).Count(&view.Followers).Error; err != nil {
		return nil, fmt.Errorf("failed to count followers: %w", err)
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", profile.UserID).Count(&view.Following).Error; err != nil {
		return nil, fmt.Errorf("failed to count following: %w", err)
	}
	if err := db.Model(&models.Video{}).Where("user_id = ?", profile.UserID).Count(&view.Videos).Error; err != nil {
		return nil, fmt.Errorf("failed to count videos: %w", err)
	}

	if viewerID != uuid.Nil && viewerID != profile.UserID {
		var n int64
		err := db.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", viewerID, profile.UserID).
			Count(&n).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check follow: %w", err)
		}
		view.IsFollowing = n > 0
	}

	return view, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*models.Profile, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Username != nil && *req.Username != profile.Username {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.Profile{}).
			Where("username = ? AND user_id <> ?", *req.Username, userID).
			Count(&n).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if n > 0 {
			return nil, ErrUsernameTaken
		}
		updates["username"] = *req.Username
	}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if req.Username != nil {
		profile.Username = *req.Username
	}
	if req.DisplayName != nil {
		profile.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}

	s.events.Publish(events.ProfilesSubject(userID), events.TypeProfileUpdated, profile)
	return profile, nil
}

// UpdateAvatar stores a new avatar image and removes the previous one.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID uuid.UUID, r io.Reader) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	upload, err := s.storage.Upload(ctx, r, s.storage.GetDefaultUploadOptions(UploadAvatars))
	if err != nil {
		return nil, err
	}

	previous := profile.AvatarURL
	if err := s.db.WithContext(ctx).Model(profile).Update("avatar_url", upload.URL).Error; err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	profile.AvatarURL = upload.URL

	if key, ok := s.storage.KeyFromURL(previous); ok {
		if err := s.storage.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Failed to delete previous avatar")
		}
	}

	s.events.Publish(events.ProfilesSubject(userID), events.TypeProfileUpdated, profile)
	return profile, nil
}

// Follow is idempotent: following someone twice keeps a single row.
func (s *ProfileService) Follow(ctx context.Context, followerID, followingID uuid.UUID) error {
	if followerID == followingID {
		return ErrCannotFollowSelf
	}
	if _, err := s.GetProfile(ctx, followingID); err != nil {
		return err
	}

	follow := models.Follow{FollowerID: followerID, FollowingID: followingID}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&follow)
	if result.Error != nil {
		return fmt.Errorf("failed to follow: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.notifications.NotifyFollow(ctx, followerID, followingID)
	}
	return nil
}

func (s *ProfileService) Unfollow(ctx context.Context, followerID, followingID uuid.UUID) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	return nil
}

func (s *ProfileService) Followers(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Profile, int64, error) {
	return s.followList(ctx, "following_id", "follower_id", userID, params)
}

func (s *ProfileService) Following(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Profile, int64, error) {
	return s.followList(ctx, "follower_id", "following_id", userID, params)
}

// followList returns the profiles on the other side of userID's follow rows.
func (s *ProfileService) followList(ctx context.Context, matchColumn, otherColumn string, userID uuid.UUID, params utils.PaginationParams) ([]models.Profile, int64, error) {
	var total int64
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Follow{}).Where(matchColumn+" = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count follows: %w", err)
	}

	var profiles []models.Profile
	query := db.Model(&models.Profile{}).
		Joins("JOIN follows ON follows."+otherColumn+" = profiles.user_id").
		Where("follows."+matchColumn+" = ? AND follows.deleted_at IS NULL", userID).
		Order("follows.created_at DESC")
	if err := utils.ApplyPagination(query, params).Find(&profiles).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list follows: %w", err)
	}

	return profiles, total, nil
}

// GetSettings returns the user's settings, creating the defaults on first use.
func (s *ProfileService) GetSettings(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	settings := models.UserSettings{
		UserID:          userID,
		Autoplay:        true,
		NotifyMessages:  true,
		NotifyFollowers: true,
		Language:        "en",
	}

	err := s.db.WithContext(ctx).
		Where(models.UserSettings{UserID: userID}).
		Attrs(settings).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &settings, nil
}

func (s *ProfileService) UpdateSettings(ctx context.Context, userID uuid.UUID, req *UpdateSettingsRequest) (*models.UserSettings, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Autoplay != nil {
		settings.Autoplay = *req.Autoplay
	}
	if req.NotifyMessages != nil {
		settings.NotifyMessages = *req.NotifyMessages
	}
	if req.NotifyFollowers != nil {
		settings.NotifyFollowers = *req.NotifyFollowers
	}
	if req.PrivateAccount != nil {
		settings.PrivateAccount = *req.PrivateAccount
	}
	if req.Language != nil {
		settings.Language = *req.Language
	}
	settings.UpdatedAt = time.Now()

	// Map updates so false values are written.
	updates := map[string]interface{}{
		"autoplay":         settings.Autoplay,
		"notify_messages":  settings.NotifyMessages,
		"notify_followers": settings.NotifyFollowers,
		"private_account":  settings.PrivateAccount,
		"language":         settings.Language,
		"updated_at":       settings.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Model(settings).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return settings, nil
}
