// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrincreditsTransaction is one append-only ledger row. Transfers carry their
// direction in the sign of Amount; every other type stores a positive Amount.
type TrincreditsTransaction struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID        uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Type          TransactionType   `json:"type" gorm:"type:varchar(20);not null;index"`
	Amount        decimal.Decimal   `json:"amount" gorm:"type:decimal(12,2);not null"`
	BalanceBefore decimal.Decimal   `json:"balance_before" gorm:"type:decimal(12,2);not null"`
	BalanceAfter  decimal.Decimal   `json:"balance_after" gorm:"type:decimal(12,2);not null"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(20);default:'completed';index"`
	Reference     *string           `json:"reference,omitempty" gorm:"size:255;uniqueIndex"`
	Description   string            `json:"description" gorm:"type:text"`
	Metadata      JSONB             `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (TrincreditsTransaction) TableName() string { return "trincredits_transactions" }

// SignedAmount is the row's contribution to the balance.
func (t *TrincreditsTransaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TransactionTypeDeposit, TransactionTypeRefund, TransactionTypeReward:
		return t.Amount.Abs()
	case TransactionTypeWithdrawal:
		return t.Amount.Abs().Neg()
	case TransactionTypeTransfer:
		return t.Amount
	}
	return decimal.Zero
}

// SumCompleted folds completed rows into a balance.
func SumCompleted(rows []TrincreditsTransaction) decimal.Decimal {
	total := decimal.Zero
	for i := range rows {
		if rows[i].Status != TransactionStatusCompleted {
			continue
		}
		total = total.Add(rows[i].SignedAmount())
	}
	return total
}

type WalletLink struct {
	BaseModel
	UserID     uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	WPUsername string           `json:"wp_username" gorm:"size:100;not null"`
	WPUserID   string           `json:"wp_user_id" gorm:"size:64"`
	WalletID   string           `json:"wallet_id" gorm:"size:64"`
	Status     WalletLinkStatus `json:"status" gorm:"type:varchar(20);default:'linked';index"`
	LinkedAt   *time.Time       `json:"linked_at"`
	UnlinkedAt *time.Time       `json:"unlinked_at"`
}

func (WalletLink) TableName() string { return "wallet_links" }
