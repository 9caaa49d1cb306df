// internal/models/ad.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SponsoredAd struct {
	BaseModel
	AdvertiserID    uuid.UUID       `json:"advertiser_id" gorm:"type:uuid;not null;index"`
	VideoID         *uuid.UUID      `json:"video_id" gorm:"type:uuid;index"`
	Title           string          `json:"title" gorm:"size:255;not null"`
	Description     string          `json:"description" gorm:"type:text"`
	MediaURL        string          `json:"media_url" gorm:"type:text"`
	TargetURL       string          `json:"target_url" gorm:"type:text"`
	BoostDays       int             `json:"boost_days" gorm:"not null"`
	BoostCost       decimal.Decimal `json:"boost_cost" gorm:"type:decimal(12,2);not null"`
	Status          AdStatus        `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ReviewedBy      *uuid.UUID      `json:"reviewed_by" gorm:"type:uuid"`
	ReviewedAt      *time.Time      `json:"reviewed_at"`
	RejectionReason string          `json:"rejection_reason,omitempty" gorm:"type:text"`
	StartsAt        *time.Time      `json:"starts_at"`
	EndsAt          *time.Time      `json:"ends_at" gorm:"index"`
	Impressions     int64           `json:"impressions" gorm:"default:0"`
	Clicks          int64           `json:"clicks" gorm:"default:0"`

	// Relationships
	Advertiser *Profile `json:"advertiser,omitempty" gorm:"foreignKey:AdvertiserID;references:UserID"`
}

func (SponsoredAd) TableName() string { return "sponsored_ads" }

// IsActive reports whether the ad is approved and inside its boost window.
func (a *SponsoredAd) IsActive(now time.Time) bool {
	if a.Status != AdStatusApproved || a.StartsAt == nil || a.EndsAt == nil {
		return false
	}
	return !now.Before(*a.StartsAt) && now.Before(*a.EndsAt)
}

type BoostTransaction struct {
	BaseModel
	AdID          uuid.UUID       `json:"ad_id" gorm:"type:uuid;not null;uniqueIndex"`
	AdvertiserID  uuid.UUID       `json:"advertiser_id" gorm:"type:uuid;not null;index"`
	AdminID       uuid.UUID       `json:"admin_id" gorm:"type:uuid;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Status        BoostStatus     `json:"status" gorm:"type:varchar(20);default:'held';index"`
	ChargeRef     string          `json:"charge_ref" gorm:"size:255"`
	SettlementRef string          `json:"settlement_ref,omitempty" gorm:"size:255"`
}

func (BoostTransaction) TableName() string { return "boost_transactions" }
