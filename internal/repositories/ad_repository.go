// internal/repositories/ad_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/limey-tt/limey-backend/internal/database"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

var (
	ErrAdNotFound   = errors.New("ad not found")
	ErrAdNotPending = errors.New("ad is no longer pending")
)

// AdReview is the outcome an admin applies to a pending ad, together with the
// ledger row that settles the held boost payment.
type AdReview struct {
	AdID            uuid.UUID
	AdminID         uuid.UUID
	Status          models.AdStatus
	RejectionReason string
	StartsAt        *time.Time
	EndsAt          *time.Time
	ReviewedAt      time.Time
	Settlement      *models.TrincreditsTransaction
}

type AdRepository interface {
	// Create charges the advertiser and stores the ad with its held boost in
	// a single transaction.
	Create(ctx context.Context, ad *models.SponsoredAd, boost *models.BoostTransaction, charge *models.TrincreditsTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*models.SponsoredAd, error)
	Review(ctx context.Context, review AdReview) error
	ListByStatus(ctx context.Context, status models.AdStatus, params utils.PaginationParams) ([]models.SponsoredAd, int64, error)
	ListActive(ctx context.Context, now time.Time, params utils.PaginationParams) ([]models.SponsoredAd, int64, error)
	ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, params utils.PaginationParams) ([]models.SponsoredAd, int64, error)
	IncrementCounter(ctx context.Context, id uuid.UUID, column string) error
}

type adRepository struct {
	db *gorm.DB
}

func NewAdRepository(db *gorm.DB) AdRepository {
	return &adRepository{db: db}
}

func (r *adRepository) Create(ctx context.Context, ad *models.SponsoredAd, boost *models.BoostTransaction, charge *models.TrincreditsTransaction) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := recordEntry(tx, charge, true); err != nil {
			return err
		}

		if err := tx.Create(ad).Error; err != nil {
			return fmt.Errorf("failed to create ad: %w", err)
		}

		boost.AdID = ad.ID
		if charge.Reference != nil {
			boost.ChargeRef = *charge.Reference
		}
		if err := tx.Create(boost).Error; err != nil {
			return fmt.Errorf("failed to create boost transaction: %w", err)
		}

		return nil
	})
}

func (r *adRepository) Get(ctx context.Context, id uuid.UUID) (*models.SponsoredAd, error) {
	var ad models.SponsoredAd
	if err := r.db.WithContext(ctx).Preload("Advertiser").First(&ad, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to load ad: %w", err)
	}
	return &ad, nil
}

// Review flips a pending ad and writes its settlement. The status guard in the
// UPDATE makes concurrent reviews of the same ad settle at most once.
func (r *adRepository) Review(ctx context.Context, review AdReview) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":      review.Status,
			"reviewed_by": review.AdminID,
			"reviewed_at": review.ReviewedAt,
		}
		if review.RejectionReason != "" {
			updates["rejection_reason"] = review.RejectionReason
		}
		if review.StartsAt != nil {
			updates["starts_at"] = *review.StartsAt
		}
		if review.EndsAt != nil {
			updates["ends_at"] = *review.EndsAt
		}

		result := tx.Model(&models.SponsoredAd{}).
			Where("id = ? AND status = ?", review.AdID, models.AdStatusPending).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update ad: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAdNotPending
		}

		if review.Settlement == nil {
			return nil
		}

		if err := recordEntry(tx, review.Settlement, false); err != nil {
			return err
		}

		boostStatus := models.BoostStatusRefunded
		if review.Status == models.AdStatusApproved {
			boostStatus = models.BoostStatusCredited
		}

		boostUpdates := map[string]interface{}{
			"status":   boostStatus,
			"admin_id": review.AdminID,
		}
		if review.Settlement.Reference != nil {
			boostUpdates["settlement_ref"] = *review.Settlement.Reference
		}

		if err := tx.Model(&models.BoostTransaction{}).
			Where("ad_id = ?", review.AdID).
			Updates(boostUpdates).Error; err != nil {
			return fmt.Errorf("failed to settle boost transaction: %w", err)
		}

		return nil
	})
}

func (r *adRepository) ListByStatus(ctx context.Context, status models.AdStatus, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SponsoredAd{}).Where("status = ?", status)
	return r.page(query, "created_at ASC", params)
}

func (r *adRepository) ListActive(ctx context.Context, now time.Time, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SponsoredAd{}).
		Where("status = ? AND starts_at <= ? AND ends_at > ?", models.AdStatusApproved, now, now)
	return r.page(query, "starts_at DESC", params)
}

func (r *adRepository) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SponsoredAd{}).Where("advertiser_id = ?", advertiserID)
	return r.page(query, "created_at DESC", params)
}

func (r *adRepository) page(query *gorm.DB, order string, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ads: %w", err)
	}

	var ads []models.SponsoredAd
	query = utils.ApplyPagination(query.Preload("Advertiser").Order(order), params)
	if err := query.Find(&ads).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load ads: %w", err)
	}

	return ads, total, nil
}

func (r *adRepository) IncrementCounter(ctx context.Context, id uuid.UUID, column string) error {
	if column != "impressions" && column != "clicks" {
		return fmt.Errorf("unknown ad counter %q", column)
	}
	return r.db.WithContext(ctx).
		Model(&models.SponsoredAd{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}
