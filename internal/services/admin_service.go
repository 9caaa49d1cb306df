// internal/services/admin_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

// signedAmountSQL mirrors TrincreditsTransaction.SignedAmount.
const signedAmountSQL = `COALESCE(SUM(CASE
	WHEN type = 'withdrawal' THEN -ABS(amount)
	WHEN type = 'transfer' THEN amount
	ELSE ABS(amount) END), 0)`

type AdminService struct {
	db  *gorm.DB
	now func() time.Time
}

type AdminDashboardStats struct {
	TotalProfiles        int64           `json:"total_profiles"`
	NewProfilesThisMonth int64           `json:"new_profiles_this_month"`
	ProfileGrowth        float64         `json:"profile_growth"`
	TotalVideos          int64           `json:"total_videos"`
	VideosThisMonth      int64           `json:"videos_this_month"`
	PendingAds           int64           `json:"pending_ads"`
	ActiveAds            int64           `json:"active_ads"`
	LinkedWallets        int64           `json:"linked_wallets"`
	CreditsInCirculation decimal.Decimal `json:"credits_in_circulation"`
	AdRevenueThisMonth   decimal.Decimal `json:"ad_revenue_this_month"`
}

type AdminTransactionFilter struct {
	utils.PaginationParams
	UserID        *uuid.UUID                `json:"user_id,omitempty"`
	Type          *models.TransactionType   `json:"type,omitempty"`
	Status        *models.TransactionStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time                `json:"created_after,omitempty"`
	CreatedBefore *time.Time                `json:"created_before,omitempty"`
}

type AdminAuditFilter struct {
	utils.PaginationParams
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{
		db:  db,
		now: time.Now,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	db := s.db.WithContext(ctx)

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	var lastMonthProfiles int64
	counts := []struct {
		model interface{}
		where string
		args  []interface{}
		dest  *int64
	}{
		{&models.Profile{}, "", nil, &stats.TotalProfiles},
		{&models.Profile{}, "created_at >= ?", []interface{}{monthStart}, &stats.NewProfilesThisMonth},
		{&models.Profile{}, "created_at >= ? AND created_at < ?", []interface{}{lastMonthStart, monthStart}, &lastMonthProfiles},
		{&models.Video{}, "", nil, &stats.TotalVideos},
		{&models.Video{}, "created_at >= ?", []interface{}{monthStart}, &stats.VideosThisMonth},
		{&models.SponsoredAd{}, "status = ?", []interface{}{models.AdStatusPending}, &stats.PendingAds},
		{&models.SponsoredAd{}, "status = ? AND starts_at <= ? AND ends_at > ?", []interface{}{models.AdStatusApproved, now, now}, &stats.ActiveAds},
		{&models.WalletLink{}, "status = ?", []interface{}{models.WalletLinkStatusLinked}, &stats.LinkedWallets},
	}
	for _, q := range counts {
		query := db.Model(q.model)
		if q.where != "" {
			query = query.Where(q.where, q.args...)
		}
		if err := query.Count(q.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
		}
	}

	if lastMonthProfiles > 0 {
		stats.ProfileGrowth = float64(stats.NewProfilesThisMonth-lastMonthProfiles) / float64(lastMonthProfiles) * 100
	}

	err := db.Model(&models.TrincreditsTransaction{}).
		Select(signedAmountSQL).
		Where("status = ?", models.TransactionStatusCompleted).
		Row().Scan(&stats.CreditsInCirculation)
	if err != nil {
		return nil, fmt.Errorf("failed to sum credits: %w", err)
	}

	err = db.Model(&models.TrincreditsTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ? AND reference LIKE ? AND created_at >= ?", models.TransactionStatusCompleted, "ad:%:settle", monthStart).
		Row().Scan(&stats.AdRevenueThisMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ad revenue: %w", err)
	}

	return stats, nil
}

// GetTransactions lists ledger rows across all users.
func (s *AdminService) GetTransactions(ctx context.Context, filter AdminTransactionFilter) ([]models.TrincreditsTransaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.TrincreditsTransaction{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.Search != "" {
		query = query.Where("reference ILIKE ? OR description ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "type", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var transactions []models.TrincreditsTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

func (s *AdminService) GetAuditLogs(ctx context.Context, filter AdminAuditFilter) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "action"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return logs, total, nil
}
