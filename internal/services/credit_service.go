// internal/services/credit_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/limey-tt/limey-backend/internal/config"
	"github.com/limey-tt/limey-backend/internal/models"
)

// PaymentIntents is the part of the Stripe API used for card top-ups.
type PaymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// CreditService sells TriniCredits for card payments, one credit per unit of
// the payment currency.
type CreditService struct {
	intents  PaymentIntents
	ledger   *LedgerService
	currency string
	minimum  decimal.Decimal
}

type PurchaseIntentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type PurchaseIntentResponse struct {
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
}

type ConfirmPurchaseRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

type PurchaseResult struct {
	Transaction     *models.TrincreditsTransaction `json:"transaction,omitempty"`
	Balance         decimal.Decimal                `json:"balance"`
	AlreadyCredited bool                           `json:"already_credited"`
}

func NewCreditService(cfg config.PaymentConfig, ledger *LedgerService) *CreditService {
	intents := &paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: cfg.StripeSecretKey,
	}
	return newCreditService(intents, ledger, cfg)
}

func newCreditService(intents PaymentIntents, ledger *LedgerService, cfg config.PaymentConfig) *CreditService {
	return &CreditService{
		intents:  intents,
		ledger:   ledger,
		currency: strings.ToLower(cfg.Currency),
		minimum:  decimal.NewFromFloat(cfg.MinimumPurchase),
	}
}

func (s *CreditService) CreatePurchaseIntent(ctx context.Context, userID uuid.UUID, req *PurchaseIntentRequest) (*PurchaseIntentResponse, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(s.minimum) {
		return nil, ErrBelowMinimum
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount.Shift(2).IntPart()),
		Currency: stripe.String(s.currency),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("product", "trinicredits")

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":           userID,
		"payment_intent_id": pi.ID,
		"amount":            amount.String(),
	}).Info("Credit purchase started")

	return &PurchaseIntentResponse{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		Amount:          amount,
		Currency:        s.currency,
		Status:          string(pi.Status),
	}, nil
}

// ConfirmPurchase credits a succeeded payment to the buyer. Confirming the
// same payment again reports it as already credited.
func (s *CreditService) ConfirmPurchase(ctx context.Context, userID uuid.UUID, paymentIntentID string) (*PurchaseResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.intents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	if pi.Metadata["user_id"] != userID.String() {
		return nil, ErrPaymentMismatch
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, ErrPaymentNotSucceeded
	}

	received := pi.AmountReceived
	if received == 0 {
		received = pi.Amount
	}

	reference := "stripe:" + pi.ID
	entry, err := s.ledger.Record(ctx, RecordParams{
		UserID:      userID,
		Type:        models.TransactionTypeDeposit,
		Amount:      decimal.New(received, -2),
		Description: "TriniCredits purchase",
		Reference:   reference,
		Metadata: models.JSONB{
			"payment_intent_id": pi.ID,
			"currency":          string(pi.Currency),
		},
	})

	result := &PurchaseResult{Transaction: entry}
	switch {
	case errors.Is(err, ErrDuplicateTransaction):
		result.AlreadyCredited = true
		result.Transaction, err = s.ledger.FindByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Balance = balance
	return result, nil
}

func (s *CreditService) Minimum() decimal.Decimal {
	return s.minimum
}
