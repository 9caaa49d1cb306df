// internal/services/ledger_service.go
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

// LedgerService owns TriniCredits balances. The balance is always derived
// from completed ledger rows; the profile column is only a cache.
type LedgerService struct {
	repo   repositories.LedgerRepository
	events events.Publisher
}

type RecordParams struct {
	UserID      uuid.UUID
	Type        models.TransactionType
	Amount      decimal.Decimal
	Description string
	Reference   string
	Metadata    models.JSONB
	Status      models.TransactionStatus
}

type DeductParams struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Type        models.TransactionType
	Description string
	Reference   string
	Metadata    models.JSONB
}

type BalanceSummary struct {
	Balance    decimal.Decimal `json:"balance"`
	Currency   string          `json:"currency"`
	ComputedAt time.Time       `json:"computed_at"`
}

func NewLedgerService(repo repositories.LedgerRepository, publisher events.Publisher) *LedgerService {
	return &LedgerService{repo: repo, events: publisher}
}

func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	rows, err := s.repo.ListCompleted(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return models.SumCompleted(rows), nil
}

func (s *LedgerService) Summary(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BalanceSummary{Balance: balance, Currency: "TTC", ComputedAt: time.Now().UTC()}, nil
}

func (s *LedgerService) Record(ctx context.Context, params RecordParams) (*models.TrincreditsTransaction, error) {
	entry, err := buildEntry(params)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, entry, false); err != nil {
		return nil, err
	}
	return entry, nil
}

// Deduct takes credits away from a user. The balance is checked before any
// write and again under the row lock inside the repository.
func (s *LedgerService) Deduct(ctx context.Context, params DeductParams) (*models.TrincreditsTransaction, error) {
	params.Amount = params.Amount.Round(2)
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	balance, err := s.GetBalance(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if params.Amount.GreaterThan(balance) {
		return nil, ErrInsufficientBalance
	}

	txType := params.Type
	if txType == "" {
		txType = models.TransactionTypeWithdrawal
	}

	amount := params.Amount
	if txType == models.TransactionTypeTransfer {
		amount = amount.Neg()
	} else if txType != models.TransactionTypeWithdrawal {
		return nil, ErrInvalidTransactionType
	}

	entry, err := buildEntry(RecordParams{
		UserID:      params.UserID,
		Type:        txType,
		Amount:      amount,
		Description: params.Description,
		Reference:   params.Reference,
		Metadata:    params.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.write(ctx, entry, true); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LedgerService) History(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.TrincreditsTransaction, int64, error) {
	return s.repo.History(ctx, userID, params)
}

// FindByReference returns the row recorded under reference, or
// ErrTransactionNotFound.
func (s *LedgerService) FindByReference(ctx context.Context, reference string) (*models.TrincreditsTransaction, error) {
	entry, err := s.repo.FindByReference(ctx, reference)
	if errors.Is(err, repositories.ErrEntryNotFound) {
		return nil, ErrTransactionNotFound
	}
	return entry, err
}

// MonthToDate sums completed rows of txType since the start of the current
// UTC month, restricted to references starting with referencePrefix.
func (s *LedgerService) MonthToDate(ctx context.Context, userID uuid.UUID, txType models.TransactionType, referencePrefix string, now time.Time) (decimal.Decimal, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.SumSince(ctx, userID, txType, referencePrefix, monthStart)
}

func (s *LedgerService) write(ctx context.Context, entry *models.TrincreditsTransaction, requireFunds bool) error {
	if err := s.repo.Record(ctx, entry, requireFunds); err != nil {
		return translateLedgerError(err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":       entry.UserID,
		"type":          entry.Type,
		"amount":        entry.Amount.String(),
		"balance_after": entry.BalanceAfter.String(),
	}).Info("Ledger entry recorded")

	s.events.Publish(events.LedgerSubject(entry.UserID), events.TypeLedgerRecorded, entry)
	return nil
}

func buildEntry(params RecordParams) (*models.TrincreditsTransaction, error) {
	if !params.Type.Valid() {
		return nil, ErrInvalidTransactionType
	}

	// Ledger rows are whole cents; a sub-cent request rounds to zero and is
	// refused rather than stored as a 0.00 row.
	amount := params.Amount.Round(2)
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if params.Type != models.TransactionTypeTransfer && amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	status := params.Status
	if status == "" {
		status = models.TransactionStatusCompleted
	}

	entry := &models.TrincreditsTransaction{
		UserID:      params.UserID,
		Type:        params.Type,
		Amount:      amount,
		Status:      status,
		Description: params.Description,
		Metadata:    params.Metadata,
	}
	if params.Reference != "" {
		ref := params.Reference
		entry.Reference = &ref
	}
	return entry, nil
}

func translateLedgerError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrDuplicateReference):
		return ErrDuplicateTransaction
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return ErrInsufficientBalance
	case errors.Is(err, repositories.ErrProfileNotFound):
		return ErrProfileNotFound
	}
	return fmt.Errorf("failed to record transaction: %w", err)
}
