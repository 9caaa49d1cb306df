// internal/services/ad_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/repositories"
	"github.com/limey-tt/limey-backend/internal/utils"
)

// boostPricing is the TriniCredits price of each supported boost duration.
var boostPricing = map[int]decimal.Decimal{
	1:  decimal.NewFromInt(50),
	3:  decimal.NewFromInt(120),
	7:  decimal.NewFromInt(250),
	14: decimal.NewFromInt(450),
	30: decimal.NewFromInt(900),
}

func BoostCost(days int) (decimal.Decimal, error) {
	cost, ok := boostPricing[days]
	if !ok {
		return decimal.Zero, ErrInvalidBoostDays
	}
	return cost, nil
}

type AdService struct {
	repo    repositories.AdRepository
	ledger  *LedgerService
	events  events.Publisher
	adminID uuid.UUID
	now     func() time.Time
}

type CreateAdRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	MediaURL    string     `json:"media_url" validate:"omitempty,url"`
	TargetURL   string     `json:"target_url" validate:"omitempty,url"`
	VideoID     *uuid.UUID `json:"video_id"`
	BoostDays   int        `json:"boost_days" validate:"required,oneof=1 3 7 14 30"`
}

type RejectAdRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// NewAdService wires the ads workflow. adminAccountID receives approved boost
// payments; when it is nil the reviewing admin is credited instead.
func NewAdService(repo repositories.AdRepository, ledger *LedgerService, publisher events.Publisher, adminAccountID uuid.UUID) *AdService {
	return &AdService{
		repo:    repo,
		ledger:  ledger,
		events:  publisher,
		adminID: adminAccountID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Now is the clock the service uses for boost windows.
func (s *AdService) Now() time.Time {
	return s.now()
}

func (s *AdService) CreateAd(ctx context.Context, advertiserID uuid.UUID, req *CreateAdRequest) (*models.SponsoredAd, error) {
	cost, err := BoostCost(req.BoostDays)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, advertiserID)
	if err != nil {
		return nil, err
	}
	if cost.GreaterThan(balance) {
		return nil, ErrInsufficientBalance
	}

	ad := &models.SponsoredAd{
		AdvertiserID: advertiserID,
		VideoID:      req.VideoID,
		Title:        req.Title,
		Description:  req.Description,
		MediaURL:     req.MediaURL,
		TargetURL:    req.TargetURL,
		BoostDays:    req.BoostDays,
		BoostCost:    cost,
		Status:       models.AdStatusPending,
	}
	ad.ID = uuid.New()

	charge, err := buildEntry(RecordParams{
		UserID:      advertiserID,
		Type:        models.TransactionTypeTransfer,
		Amount:      cost.Neg(),
		Description: fmt.Sprintf("Ad boost (%d days): %s", req.BoostDays, req.Title),
		Reference:   "ad:" + ad.ID.String() + ":charge",
		Metadata:    models.JSONB{"ad_id": ad.ID.String(), "boost_days": req.BoostDays},
	})
	if err != nil {
		return nil, err
	}

	boost := &models.BoostTransaction{
		AdvertiserID: advertiserID,
		AdminID:      s.adminID,
		Amount:       cost,
		Status:       models.BoostStatusHeld,
	}

	if err := s.repo.Create(ctx, ad, boost, charge); err != nil {
		return nil, translateLedgerError(err)
	}

	logrus.WithFields(logrus.Fields{
		"ad_id":         ad.ID,
		"advertiser_id": advertiserID,
		"boost_cost":    cost.String(),
	}).Info("Sponsored ad submitted")

	return ad, nil
}

func (s *AdService) GetAd(ctx context.Context, adID uuid.UUID) (*models.SponsoredAd, error) {
	ad, err := s.repo.Get(ctx, adID)
	if errors.Is(err, repositories.ErrAdNotFound) {
		return nil, ErrAdNotFound
	}
	return ad, err
}

// ApproveAd starts the boost window and pays the held boost cost to the
// admin account.
func (s *AdService) ApproveAd(ctx context.Context, adID, reviewerID uuid.UUID) (*models.SponsoredAd, error) {
	ad, err := s.pendingAd(ctx, adID)
	if err != nil {
		return nil, err
	}

	payee := s.adminID
	if payee == uuid.Nil {
		payee = reviewerID
	}

	now := s.now()
	ends := now.AddDate(0, 0, ad.BoostDays)

	settlement, err := buildEntry(RecordParams{
		UserID:      payee,
		Type:        models.TransactionTypeTransfer,
		Amount:      ad.BoostCost,
		Description: "Ad boost payment: " + ad.Title,
		Reference:   "ad:" + ad.ID.String() + ":settle",
		Metadata:    models.JSONB{"ad_id": ad.ID.String(), "advertiser_id": ad.AdvertiserID.String()},
	})
	if err != nil {
		return nil, err
	}

	review := repositories.AdReview{
		AdID:       ad.ID,
		AdminID:    reviewerID,
		Status:     models.AdStatusApproved,
		StartsAt:   &now,
		EndsAt:     &ends,
		ReviewedAt: now,
		Settlement: settlement,
	}
	return s.applyReview(ctx, ad, review)
}

// RejectAd refunds the held boost cost to the advertiser.
func (s *AdService) RejectAd(ctx context.Context, adID, reviewerID uuid.UUID, reason string) (*models.SponsoredAd, error) {
	if reason == "" {
		return nil, ErrRejectionReason
	}

	ad, err := s.pendingAd(ctx, adID)
	if err != nil {
		return nil, err
	}

	settlement, err := buildEntry(RecordParams{
		UserID:      ad.AdvertiserID,
		Type:        models.TransactionTypeRefund,
		Amount:      ad.BoostCost,
		Description: "Ad boost refund: " + ad.Title,
		Reference:   "ad:" + ad.ID.String() + ":refund",
		Metadata:    models.JSONB{"ad_id": ad.ID.String(), "reason": reason},
	})
	if err != nil {
		return nil, err
	}

	review := repositories.AdReview{
		AdID:            ad.ID,
		AdminID:         reviewerID,
		Status:          models.AdStatusRejected,
		RejectionReason: reason,
		ReviewedAt:      s.now(),
		Settlement:      settlement,
	}
	return s.applyReview(ctx, ad, review)
}

func (s *AdService) pendingAd(ctx context.Context, adID uuid.UUID) (*models.SponsoredAd, error) {
	ad, err := s.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.Status != models.AdStatusPending {
		return nil, ErrAdAlreadyReviewed
	}
	return ad, nil
}

func (s *AdService) applyReview(ctx context.Context, ad *models.SponsoredAd, review repositories.AdReview) (*models.SponsoredAd, error) {
	if err := s.repo.Review(ctx, review); err != nil {
		if errors.Is(err, repositories.ErrAdNotPending) {
			return nil, ErrAdAlreadyReviewed
		}
		return nil, translateLedgerError(err)
	}

	ad.Status = review.Status
	ad.ReviewedBy = &review.AdminID
	ad.ReviewedAt = &review.ReviewedAt
	ad.RejectionReason = review.RejectionReason
	ad.StartsAt = review.StartsAt
	ad.EndsAt = review.EndsAt

	logrus.WithFields(logrus.Fields{
		"ad_id":       ad.ID,
		"status":      ad.Status,
		"reviewed_by": review.AdminID,
	}).Info("Sponsored ad reviewed")

	s.events.Publish(events.AdsSubject(ad.AdvertiserID), events.TypeAdReviewed, ad)
	return ad, nil
}

func (s *AdService) ListPending(ctx context.Context, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	return s.repo.ListByStatus(ctx, models.AdStatusPending, params)
}

func (s *AdService) ListActive(ctx context.Context, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	return s.repo.ListActive(ctx, s.now(), params)
}

func (s *AdService) ListMine(ctx context.Context, advertiserID uuid.UUID, params utils.PaginationParams) ([]models.SponsoredAd, int64, error) {
	return s.repo.ListByAdvertiser(ctx, advertiserID, params)
}

func (s *AdService) TrackImpression(ctx context.Context, adID uuid.UUID) {
	s.track(ctx, adID, "impressions")
}

func (s *AdService) TrackClick(ctx context.Context, adID uuid.UUID) {
	s.track(ctx, adID, "clicks")
}

func (s *AdService) track(ctx context.Context, adID uuid.UUID, counter string) {
	if err := s.repo.IncrementCounter(ctx, adID, counter); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"ad_id":   adID,
			"counter": counter,
		}).Warn("Failed to track ad event")
	}
}
