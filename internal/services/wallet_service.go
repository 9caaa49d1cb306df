// internal/services/wallet_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/gateway/ttpaypal"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/repositories"
	"github.com/limey-tt/limey-backend/internal/session"
)

const (
	gatewayDepositPrefix  = "ttpaypal-in:"
	gatewayWithdrawPrefix = "ttpaypal-out:"

	// settleTimeout bounds the ledger write that follows a gateway call.
	settleTimeout = 15 * time.Second
)

// WalletGateway is the TTPayPal surface the wallet flow depends on.
type WalletGateway interface {
	Login(ctx context.Context, username, password string) (*ttpaypal.LoginResponse, error)
	Status(ctx context.Context, token string) (*ttpaypal.StatusResponse, error)
	Link(ctx context.Context, token string, limeyUserID uuid.UUID) (*ttpaypal.LinkResponse, error)
	Deposit(ctx context.Context, token string, req ttpaypal.TransferRequest) (*ttpaypal.TransferResponse, error)
	Withdraw(ctx context.Context, token string, req ttpaypal.TransferRequest) (*ttpaypal.TransferResponse, error)
	Unlink(ctx context.Context, token string) error
	UserLimits(ctx context.Context, token string) (*ttpaypal.Limits, error)
}

type TokenStore interface {
	StoreToken(ctx context.Context, userID uuid.UUID, token string) error
	Token(ctx context.Context, userID uuid.UUID) (string, error)
	ClearToken(ctx context.Context, userID uuid.UUID) error
}

type WalletService struct {
	links   repositories.WalletLinkRepository
	ledger  *LedgerService
	gateway WalletGateway
	tokens  TokenStore
	now     func() time.Time
}

type LinkAccountRequest struct {
	Username string `json:"username" validate:"omitempty,max=100"`
	Password string `json:"password" validate:"omitempty,max=200"`
}

type WalletAmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type WalletStatus struct {
	Linked         bool               `json:"linked"`
	SessionValid   bool               `json:"session_valid"`
	Link           *models.WalletLink `json:"link,omitempty"`
	TriniCredits   decimal.Decimal    `json:"trini_credits"`
	WalletBalance  *decimal.Decimal   `json:"wallet_balance,omitempty"`
	WalletCurrency string             `json:"wallet_currency,omitempty"`
}

type WalletLimits struct {
	PerTransaction decimal.Decimal `json:"per_transaction_limit"`
	Monthly        decimal.Decimal `json:"monthly_limit"`
	MonthlyUsed    decimal.Decimal `json:"monthly_used"`
	WalletMax      decimal.Decimal `json:"wallet_max"`
}

func NewWalletService(links repositories.WalletLinkRepository, ledger *LedgerService, gateway WalletGateway, tokens TokenStore) *WalletService {
	return &WalletService{
		links:   links,
		ledger:  ledger,
		gateway: gateway,
		tokens:  tokens,
		now:     time.Now,
	}
}

// LinkAccount connects the user's TTPayPal account. A still-valid cached
// gateway session is reused; otherwise the supplied credentials are exchanged
// for a fresh token.
func (s *WalletService) LinkAccount(ctx context.Context, userID uuid.UUID, req *LinkAccountRequest) (*models.WalletLink, error) {
	username := req.Username

	token, err := s.tokens.Token(ctx, userID)
	if err != nil {
		if !errors.Is(err, session.ErrNoValidToken) {
			return nil, err
		}
		if req.Username == "" || req.Password == "" {
			return nil, ErrCredentialsRequired
		}

		login, err := s.gateway.Login(ctx, req.Username, req.Password)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("TTPayPal login failed")
			return nil, fmt.Errorf("ttpaypal login failed: %w", err)
		}
		token = login.Token
		if login.UserNicename != "" {
			username = login.UserNicename
		}

		if err := s.tokens.StoreToken(ctx, userID, token); err != nil {
			return nil, err
		}
	}

	resp, err := s.gateway.Link(ctx, token, userID)
	if err != nil {
		return nil, s.gatewayFailure(ctx, userID, "link", err)
	}

	if username == "" {
		if existing, err := s.links.Get(ctx, userID); err == nil {
			username = existing.WPUsername
		}
	}

	now := s.now()
	link := &models.WalletLink{
		UserID:     userID,
		WPUsername: username,
		WPUserID:   resp.UserID.String(),
		WalletID:   resp.WalletID,
		Status:     models.WalletLinkStatusLinked,
		LinkedAt:   &now,
	}
	if err := s.links.Upsert(ctx, link); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"wallet_id": link.WalletID,
	}).Info("TTPayPal account linked")

	return link, nil
}

func (s *WalletService) Status(ctx context.Context, userID uuid.UUID) (*WalletStatus, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := &WalletStatus{TriniCredits: balance}

	link, err := s.links.Get(ctx, userID)
	if errors.Is(err, repositories.ErrWalletLinkNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	status.Link = link
	status.Linked = link.Status == models.WalletLinkStatusLinked
	if !status.Linked {
		return status, nil
	}

	token, err := s.tokens.Token(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrNoValidToken) {
			return status, nil
		}
		return nil, err
	}
	status.SessionValid = true

	remote, err := s.gateway.Status(ctx, token)
	if err != nil {
		if ttpaypal.IsUnauthorized(err) {
			s.dropSession(ctx, userID)
			status.SessionValid = false
			return status, nil
		}
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to fetch TTPayPal status")
		return status, nil
	}

	status.WalletBalance = &remote.Balance
	status.WalletCurrency = remote.Currency
	return status, nil
}

func (s *WalletService) Limits(ctx context.Context, userID uuid.UUID) (*WalletLimits, error) {
	token, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	limits, err := s.gateway.UserLimits(ctx, token)
	if err != nil {
		return nil, s.gatewayFailure(ctx, userID, "user-limits", err)
	}

	used, err := s.ledger.MonthToDate(ctx, userID, models.TransactionTypeDeposit, gatewayDepositPrefix, s.now())
	if err != nil {
		return nil, err
	}

	return &WalletLimits{
		PerTransaction: limits.PerTransaction,
		Monthly:        limits.Monthly,
		MonthlyUsed:    used,
		WalletMax:      limits.WalletMax,
	}, nil
}

// DepositToApp pulls money out of the external wallet and credits the same
// amount of TriniCredits.
func (s *WalletService) DepositToApp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.TrincreditsTransaction, error) {
	amount, err := cents(amount)
	if err != nil {
		return nil, err
	}

	token, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	limits, err := s.gateway.UserLimits(ctx, token)
	if err != nil {
		return nil, s.gatewayFailure(ctx, userID, "user-limits", err)
	}
	if err := checkLimit("per-transaction", amount, limits.PerTransaction); err != nil {
		return nil, err
	}

	used, err := s.ledger.MonthToDate(ctx, userID, models.TransactionTypeDeposit, gatewayDepositPrefix, s.now())
	if err != nil {
		return nil, err
	}
	if err := checkLimit("monthly", used.Add(amount), limits.Monthly); err != nil {
		return nil, err
	}

	requestRef := uuid.NewString()
	resp, err := s.gateway.Withdraw(ctx, token, ttpaypal.TransferRequest{
		Amount:      amount,
		Reference:   requestRef,
		Description: "Transfer to Limey TriniCredits",
	})
	if err != nil {
		return nil, s.gatewayFailure(ctx, userID, "withdraw", err)
	}

	gatewayRef := resp.TransactionID
	if gatewayRef == "" {
		gatewayRef = requestRef
	}

	// The wallet has been debited; the credit must land even if the caller
	// has gone away.
	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	entry, err := s.ledger.Record(settleCtx, RecordParams{
		UserID:      userID,
		Type:        models.TransactionTypeDeposit,
		Amount:      amount,
		Description: "Deposit from TTPayPal wallet",
		Reference:   gatewayDepositPrefix + gatewayRef,
		Metadata: models.JSONB{
			"gateway_transaction_id": resp.TransactionID,
			"request_reference":      requestRef,
			"wallet_balance":         resp.NewBalance.String(),
		},
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":           userID,
			"amount":            amount.String(),
			"gateway_reference": gatewayRef,
		}).Error("TTPayPal debited but ledger deposit failed, needs reconciliation")
		return nil, err
	}

	return entry, nil
}

// WithdrawToWallet moves TriniCredits out to the external wallet. The ledger
// withdrawal is written first so the same credits cannot be spent while the
// gateway call is in flight; a failed gateway call is compensated by a refund.
func (s *WalletService) WithdrawToWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.TrincreditsTransaction, error) {
	amount, err := cents(amount)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance) {
		return nil, ErrInsufficientBalance
	}

	token, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	limits, err := s.gateway.UserLimits(ctx, token)
	if err != nil {
		return nil, s.gatewayFailure(ctx, userID, "user-limits", err)
	}
	if err := checkLimit("per-transaction", amount, limits.PerTransaction); err != nil {
		return nil, err
	}

	remote, err := s.gateway.Status(ctx, token)
	if err != nil {
		return nil, s.gatewayFailure(ctx, userID, "status", err)
	}
	if err := checkLimit("wallet maximum", remote.Balance.Add(amount), limits.WalletMax); err != nil {
		return nil, err
	}

	reference := gatewayWithdrawPrefix + uuid.NewString()
	entry, err := s.ledger.Deduct(ctx, DeductParams{
		UserID:      userID,
		Amount:      amount,
		Type:        models.TransactionTypeWithdrawal,
		Description: "Withdrawal to TTPayPal wallet",
		Reference:   reference,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.gateway.Deposit(ctx, token, ttpaypal.TransferRequest{
		Amount:      amount,
		Reference:   reference,
		Description: "Transfer from Limey TriniCredits",
	})
	if err != nil {
		gwErr := s.gatewayFailure(ctx, userID, "deposit", err)
		s.compensate(ctx, entry)
		return nil, gwErr
	}

	return entry, nil
}

// compensate refunds a withdrawal whose gateway transfer failed. It runs
// detached from ctx, which is often the reason the transfer failed.
func (s *WalletService) compensate(ctx context.Context, withdrawal *models.TrincreditsTransaction) {
	ref := ""
	if withdrawal.Reference != nil {
		ref = *withdrawal.Reference
	}

	settleCtx, cancel := settleContext(ctx)
	defer cancel()

	_, err := s.ledger.Record(settleCtx, RecordParams{
		UserID:      withdrawal.UserID,
		Type:        models.TransactionTypeRefund,
		Amount:      withdrawal.Amount.Abs(),
		Description: "Refund for failed TTPayPal withdrawal",
		Reference:   ref + ":refund",
		Metadata:    models.JSONB{"refunds": withdrawal.ID.String()},
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   withdrawal.UserID,
			"reference": ref,
		}).Error("Failed to refund withdrawal after gateway failure")
	}
}

// Unlink disconnects the wallet. A gateway 404 means the link is already
// gone remotely and still counts as success.
func (s *WalletService) Unlink(ctx context.Context, userID uuid.UUID) error {
	link, err := s.links.Get(ctx, userID)
	if errors.Is(err, repositories.ErrWalletLinkNotFound) {
		return ErrWalletNotLinked
	}
	if err != nil {
		return err
	}
	if link.Status != models.WalletLinkStatusLinked {
		return ErrWalletNotLinked
	}

	token, err := s.tokens.Token(ctx, userID)
	switch {
	case err == nil:
		if err := s.gateway.Unlink(ctx, token); err != nil {
			if !ttpaypal.IsNotFound(err) {
				return s.gatewayFailure(ctx, userID, "unlink", err)
			}
			logrus.WithField("user_id", userID).Warn("TTPayPal unlink endpoint returned 404, unlinking locally")
		}
	case errors.Is(err, session.ErrNoValidToken):
		logrus.WithField("user_id", userID).Warn("No TTPayPal session, unlinking locally only")
	default:
		return err
	}

	if err := s.links.MarkUnlinked(ctx, userID, s.now()); err != nil {
		return err
	}
	s.dropSession(ctx, userID)
	return nil
}

// session returns the gateway token of a linked user.
func (s *WalletService) session(ctx context.Context, userID uuid.UUID) (string, error) {
	link, err := s.links.Get(ctx, userID)
	if errors.Is(err, repositories.ErrWalletLinkNotFound) {
		return "", ErrWalletNotLinked
	}
	if err != nil {
		return "", err
	}
	if link.Status != models.WalletLinkStatusLinked {
		return "", ErrWalletNotLinked
	}

	token, err := s.tokens.Token(ctx, userID)
	if errors.Is(err, session.ErrNoValidToken) {
		return "", ErrWalletSessionExpired
	}
	return token, err
}

func (s *WalletService) gatewayFailure(ctx context.Context, userID uuid.UUID, op string, err error) error {
	logrus.WithError(err).WithFields(logrus.Fields{
		"user_id":   userID,
		"operation": op,
	}).Warn("TTPayPal request failed")

	if ttpaypal.IsUnauthorized(err) {
		s.dropSession(ctx, userID)
		return ErrWalletSessionExpired
	}
	return fmt.Errorf("ttpaypal %s failed: %w", op, err)
}

func (s *WalletService) dropSession(ctx context.Context, userID uuid.UUID) {
	if err := s.tokens.ClearToken(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to clear TTPayPal session")
	}
}

// settleContext keeps ctx's values but not its cancellation, for ledger
// writes that must follow a completed gateway call.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// cents rounds a requested amount to the cent before any limit check, gateway
// call or ledger write sees it.
func cents(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// checkLimit treats a zero or negative limit as "no limit configured".
func checkLimit(name string, value, limit decimal.Decimal) error {
	if limit.IsPositive() && value.GreaterThan(limit) {
		return &LimitError{Limit: name, Max: limit.StringFixed(2)}
	}
	return nil
}
