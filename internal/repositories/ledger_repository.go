// internal/repositories/ledger_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/limey-tt/limey-backend/internal/database"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

var (
	ErrDuplicateReference = errors.New("ledger reference already recorded")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEntryNotFound      = errors.New("ledger entry not found")
)

// balanceExpr folds completed rows the same way models.SumCompleted does.
const balanceExpr = `COALESCE(SUM(CASE
	WHEN type IN ('deposit', 'refund', 'reward') THEN ABS(amount)
	WHEN type = 'withdrawal' THEN -ABS(amount)
	WHEN type = 'transfer' THEN amount
	ELSE 0 END), 0)`

type LedgerRepository interface {
	ListCompleted(ctx context.Context, userID uuid.UUID) ([]models.TrincreditsTransaction, error)
	// Record appends entry and refreshes the cached profile balance. When
	// requireFunds is set the write is refused if it would take the balance
	// below zero.
	Record(ctx context.Context, entry *models.TrincreditsTransaction, requireFunds bool) error
	// SumSince totals completed rows of txType whose reference starts with
	// referencePrefix, created at or after since.
	SumSince(ctx context.Context, userID uuid.UUID, txType models.TransactionType, referencePrefix string, since time.Time) (decimal.Decimal, error)
	History(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.TrincreditsTransaction, int64, error)
	FindByReference(ctx context.Context, reference string) (*models.TrincreditsTransaction, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) ListCompleted(ctx context.Context, userID uuid.UUID) ([]models.TrincreditsTransaction, error) {
	var rows []models.TrincreditsTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.TransactionStatusCompleted).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return rows, nil
}

func (r *ledgerRepository) Record(ctx context.Context, entry *models.TrincreditsTransaction, requireFunds bool) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		return recordEntry(tx, entry, requireFunds)
	})
}

// recordEntry must run inside a transaction. It is shared with repositories
// that pair a ledger write with their own state change.
func recordEntry(tx *gorm.DB, entry *models.TrincreditsTransaction, requireFunds bool) error {
	var profile models.Profile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", entry.UserID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to lock profile: %w", err)
	}

	if entry.Reference != nil && *entry.Reference != "" {
		var count int64
		if err := tx.Model(&models.TrincreditsTransaction{}).
			Where("reference = ?", *entry.Reference).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check reference: %w", err)
		}
		if count > 0 {
			return ErrDuplicateReference
		}
	} else {
		entry.Reference = nil
	}

	before, err := completedBalance(tx, entry.UserID)
	if err != nil {
		return err
	}

	if entry.Status == "" {
		entry.Status = models.TransactionStatusCompleted
	}

	after := before
	if entry.Status == models.TransactionStatusCompleted {
		after = before.Add(entry.SignedAmount())
	}
	if requireFunds && after.IsNegative() {
		return ErrInsufficientFunds
	}

	entry.BalanceBefore = before
	entry.BalanceAfter = after

	if err := tx.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}

	if err := tx.Model(&models.Profile{}).
		Where("user_id = ?", entry.UserID).
		Update("trini_credits", after).Error; err != nil {
		return fmt.Errorf("failed to update cached balance: %w", err)
	}

	return nil
}

func completedBalance(tx *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.Model(&models.TrincreditsTransaction{}).
		Select(balanceExpr).
		Where("user_id = ? AND status = ?", userID, models.TransactionStatusCompleted).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	return sum, nil
}

func (r *ledgerRepository) SumSince(ctx context.Context, userID uuid.UUID, txType models.TransactionType, referencePrefix string, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := r.db.WithContext(ctx).
		Model(&models.TrincreditsTransaction{}).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Where("user_id = ? AND type = ? AND status = ? AND created_at >= ?",
			userID, txType, models.TransactionStatusCompleted, since)
	if referencePrefix != "" {
		query = query.Where("reference LIKE ?", referencePrefix+"%")
	}
	err := query.Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}

func (r *ledgerRepository) History(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.TrincreditsTransaction, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.TrincreditsTransaction{}).
		Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger: %w", err)
	}

	var rows []models.TrincreditsTransaction
	query = utils.ApplyPagination(query.Order("created_at DESC"), params)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load ledger history: %w", err)
	}

	return rows, total, nil
}

func (r *ledgerRepository) FindByReference(ctx context.Context, reference string) (*models.TrincreditsTransaction, error) {
	var entry models.TrincreditsTransaction
	if err := r.db.WithContext(ctx).First(&entry, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	return &entry, nil
}
