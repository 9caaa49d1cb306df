// internal/repositories/wallet_link_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limey-tt/limey-backend/internal/models"
)

var ErrWalletLinkNotFound = errors.New("wallet link not found")

type WalletLinkRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.WalletLink, error)
	Upsert(ctx context.Context, link *models.WalletLink) error
	MarkUnlinked(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type walletLinkRepository struct {
	db *gorm.DB
}

func NewWalletLinkRepository(db *gorm.DB) WalletLinkRepository {
	return &walletLinkRepository{db: db}
}

func (r *walletLinkRepository) Get(ctx context.Context, userID uuid.UUID) (*models.WalletLink, error) {
	var link models.WalletLink
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletLinkNotFound
		}
		return nil, fmt.Errorf("failed to load wallet link: %w", err)
	}
	return &link, nil
}

func (r *walletLinkRepository) Upsert(ctx context.Context, link *models.WalletLink) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"wp_username", "wp_user_id", "wallet_id", "status", "linked_at", "unlinked_at", "updated_at",
		}),
	}).Create(link).Error
	if err != nil {
		return fmt.Errorf("failed to save wallet link: %w", err)
	}
	return nil
}

func (r *walletLinkRepository) MarkUnlinked(ctx context.Context, userID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.WalletLink{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":      models.WalletLinkStatusUnlinked,
			"unlinked_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to unlink wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletLinkNotFound
	}
	return nil
}
