package services

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/limey-tt/limey-backend/internal/gateway/ttpaypal"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/session"
)

type fakeGateway struct {
	mu            sync.Mutex
	loginErr      error
	linkErr       error
	depositErr    error
	withdrawErr   error
	unlinkErr     error
	statusErr     error
	limits        ttpaypal.Limits
	walletBalance decimal.Decimal
	logins        int
	deposits      []ttpaypal.TransferRequest
	withdrawals   []ttpaypal.TransferRequest
	unlinks       int
	// afterTransfer runs inside Deposit and Withdraw once the transfer is
	// decided, before the response is returned.
	afterTransfer func()
}

func (g *fakeGateway) Login(_ context.Context, username, _ string) (*ttpaypal.LoginResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logins++
	if g.loginErr != nil {
		return nil, g.loginErr
	}
	return &ttpaypal.LoginResponse{Token: "wp-token", UserNicename: username}, nil
}

func (g *fakeGateway) Status(context.Context, string) (*ttpaypal.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return &ttpaypal.StatusResponse{Linked: true, Balance: g.walletBalance, Currency: "TTD"}, nil
}

func (g *fakeGateway) Link(context.Context, string, uuid.UUID) (*ttpaypal.LinkResponse, error) {
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	return &ttpaypal.LinkResponse{Success: true, WalletID: "W-42", UserID: "42"}, nil
}

func (g *fakeGateway) Deposit(_ context.Context, _ string, req ttpaypal.TransferRequest) (*ttpaypal.TransferResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deposits = append(g.deposits, req)
	if g.afterTransfer != nil {
		g.afterTransfer()
	}
	if g.depositErr != nil {
		return nil, g.depositErr
	}
	g.walletBalance = g.walletBalance.Add(req.Amount)
	return &ttpaypal.TransferResponse{Success: true, TransactionID: "DEP-" + req.Reference, NewBalance: g.walletBalance}, nil
}

func (g *fakeGateway) Withdraw(_ context.Context, _ string, req ttpaypal.TransferRequest) (*ttpaypal.TransferResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.withdrawals = append(g.withdrawals, req)
	if g.afterTransfer != nil {
		g.afterTransfer()
	}
	if g.withdrawErr != nil {
		return nil, g.withdrawErr
	}
	g.walletBalance = g.walletBalance.Sub(req.Amount)
	return &ttpaypal.TransferResponse{Success: true, TransactionID: uuid.NewString(), NewBalance: g.walletBalance}, nil
}

func (g *fakeGateway) Unlink(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlinks++
	return g.unlinkErr
}

func (g *fakeGateway) UserLimits(context.Context, string) (*ttpaypal.Limits, error) {
	return &g.limits, nil
}

type WalletServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	userID  uuid.UUID
	store   *memStore
	gateway *fakeGateway
	tokens  *session.Store
	ledger  *LedgerService
	service *WalletService
}

func (suite *WalletServiceTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	suite.Require().NoError(err)
	suite.T().Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	suite.T().Cleanup(func() { rdb.Close() })

	suite.ctx = context.Background()
	suite.userID = uuid.New()
	suite.store = newMemStore(suite.userID)
	suite.gateway = &fakeGateway{
		limits: ttpaypal.Limits{
			PerTransaction: dec("500"),
			Monthly:        dec("1000"),
			WalletMax:      dec("2000"),
		},
		walletBalance: dec("1500"),
	}
	suite.tokens = session.NewStore(rdb, 24*time.Hour)
	suite.ledger = NewLedgerService(suite.store, &fakePublisher{})
	suite.service = NewWalletService(walletLinks{suite.store}, suite.ledger, suite.gateway, suite.tokens)
}

func (suite *WalletServiceTestSuite) link() {
	_, err := suite.service.LinkAccount(suite.ctx, suite.userID, &LinkAccountRequest{Username: "marcia", Password: "secret"})
	suite.Require().NoError(err)
}

func (suite *WalletServiceTestSuite) fund(amount string) {
	_, err := suite.ledger.Record(suite.ctx, RecordParams{
		UserID: suite.userID,
		Type:   models.TransactionTypeReward,
		Amount: dec(amount),
	})
	suite.Require().NoError(err)
}

func (suite *WalletServiceTestSuite) TestLinkAccountStoresSessionAndLink() {
	suite.link()

	token, err := suite.tokens.Token(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Equal("wp-token", token)

	status, err := suite.service.Status(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.True(status.Linked)
	suite.True(status.SessionValid)
	suite.Equal("W-42", status.Link.WalletID)
	suite.Require().NotNil(status.WalletBalance)
	suite.True(dec("1500").Equal(*status.WalletBalance))
}

func (suite *WalletServiceTestSuite) TestLinkAccountReusesValidSession() {
	suite.link()
	_, err := suite.service.LinkAccount(suite.ctx, suite.userID, &LinkAccountRequest{})
	suite.Require().NoError(err)
	suite.Equal(1, suite.gateway.logins)
}

func (suite *WalletServiceTestSuite) TestLinkAccountRequiresCredentialsWithoutSession() {
	_, err := suite.service.LinkAccount(suite.ctx, suite.userID, &LinkAccountRequest{})
	suite.ErrorIs(err, ErrCredentialsRequired)
}

func (suite *WalletServiceTestSuite) TestStatusUnlinked() {
	status, err := suite.service.Status(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.False(status.Linked)
	suite.Nil(status.WalletBalance)
}

func (suite *WalletServiceTestSuite) TestDepositToAppCreditsLedger() {
	suite.link()

	entry, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("200"))
	suite.Require().NoError(err)
	suite.Equal(models.TransactionTypeDeposit, entry.Type)
	suite.Len(suite.gateway.withdrawals, 1)

	balance, _ := suite.ledger.GetBalance(suite.ctx, suite.userID)
	suite.True(dec("200").Equal(balance))
}

func (suite *WalletServiceTestSuite) TestDepositToAppRequiresLink() {
	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("10"))
	suite.ErrorIs(err, ErrWalletNotLinked)
}

func (suite *WalletServiceTestSuite) TestDepositToAppRequiresValidSession() {
	suite.link()
	suite.Require().NoError(suite.tokens.ClearToken(suite.ctx, suite.userID))

	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("10"))
	suite.ErrorIs(err, ErrWalletSessionExpired)
}

func (suite *WalletServiceTestSuite) TestDepositToAppPerTransactionLimit() {
	suite.link()

	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("500.01"))
	var limitErr *LimitError
	suite.Require().ErrorAs(err, &limitErr)
	suite.Equal("per-transaction", limitErr.Limit)
	suite.Empty(suite.gateway.withdrawals)
}

func (suite *WalletServiceTestSuite) TestDepositToAppMonthlyLimit() {
	suite.link()

	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("500"))
	suite.Require().NoError(err)
	_, err = suite.service.DepositToApp(suite.ctx, suite.userID, dec("450"))
	suite.Require().NoError(err)

	_, err = suite.service.DepositToApp(suite.ctx, suite.userID, dec("60"))
	var limitErr *LimitError
	suite.Require().ErrorAs(err, &limitErr)
	suite.Equal("monthly", limitErr.Limit)
}

func (suite *WalletServiceTestSuite) TestDepositToAppInvalidAmount() {
	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, decimal.Zero)
	suite.ErrorIs(err, ErrInvalidAmount)
}

func (suite *WalletServiceTestSuite) TestDepositGatewayFailureWritesNothing() {
	suite.link()
	suite.gateway.withdrawErr = &ttpaypal.Error{StatusCode: http.StatusUnprocessableEntity, Code: "ttpaypal_declined", Message: "Insufficient wallet funds"}

	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("50"))
	var gwErr *ttpaypal.Error
	suite.Require().ErrorAs(err, &gwErr)
	suite.Equal(0, suite.store.ledgerLen())
}

func (suite *WalletServiceTestSuite) TestWithdrawToWallet() {
	suite.fund("300")
	suite.link()

	entry, err := suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("100"))
	suite.Require().NoError(err)
	suite.Equal(models.TransactionTypeWithdrawal, entry.Type)
	suite.Require().Len(suite.gateway.deposits, 1)
	suite.Equal(*entry.Reference, suite.gateway.deposits[0].Reference)

	balance, _ := suite.ledger.GetBalance(suite.ctx, suite.userID)
	suite.True(dec("200").Equal(balance))
}

func (suite *WalletServiceTestSuite) TestWithdrawInsufficientBalance() {
	suite.fund("50")
	suite.link()

	_, err := suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("50.01"))
	suite.ErrorIs(err, ErrInsufficientBalance)
	suite.Empty(suite.gateway.deposits)
}

func (suite *WalletServiceTestSuite) TestWithdrawWalletMax() {
	suite.fund("600")
	suite.link()

	_, err := suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("501"))
	var limitErr *LimitError
	suite.Require().ErrorAs(err, &limitErr)
	suite.Equal("per-transaction", limitErr.Limit)

	_, err = suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("500.01"))
	suite.Require().ErrorAs(err, &limitErr)

	_, err = suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("500"))
	suite.Require().NoError(err)

	_, err = suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("1"))
	suite.Require().ErrorAs(err, &limitErr)
	suite.Equal("wallet maximum", limitErr.Limit)
}

func (suite *WalletServiceTestSuite) TestWithdrawGatewayFailureIsRefunded() {
	suite.fund("100")
	suite.link()
	suite.gateway.depositErr = &ttpaypal.Error{StatusCode: http.StatusInternalServerError, Code: "http_error", Message: "Internal Server Error"}

	_, err := suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("40"))
	suite.Require().Error(err)

	balance, _ := suite.ledger.GetBalance(suite.ctx, suite.userID)
	suite.True(dec("100").Equal(balance))
	suite.Equal(3, suite.store.ledgerLen())
}

func (suite *WalletServiceTestSuite) TestWithdrawRefundedWhenCallerCancels() {
	suite.fund("100")
	suite.link()

	ctx, cancel := context.WithCancel(suite.ctx)
	defer cancel()
	suite.gateway.afterTransfer = cancel
	suite.gateway.depositErr = context.Canceled

	_, err := suite.service.WithdrawToWallet(ctx, suite.userID, dec("40"))
	suite.Require().ErrorIs(err, context.Canceled)

	balance, _ := suite.ledger.GetBalance(suite.ctx, suite.userID)
	suite.True(dec("100").Equal(balance), "balance %s", balance)
	suite.Equal(3, suite.store.ledgerLen())
}

func (suite *WalletServiceTestSuite) TestDepositCreditedWhenCallerCancels() {
	suite.link()

	ctx, cancel := context.WithCancel(suite.ctx)
	defer cancel()
	suite.gateway.afterTransfer = cancel

	entry, err := suite.service.DepositToApp(ctx, suite.userID, dec("75"))
	suite.Require().NoError(err)
	suite.Equal(models.TransactionTypeDeposit, entry.Type)

	balance, _ := suite.ledger.GetBalance(suite.ctx, suite.userID)
	suite.True(dec("75").Equal(balance), "balance %s", balance)
}

func (suite *WalletServiceTestSuite) TestSubCentAmountsRejected() {
	suite.fund("100")
	suite.link()

	_, err := suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("0.004"))
	suite.ErrorIs(err, ErrInvalidAmount)
	_, err = suite.service.DepositToApp(suite.ctx, suite.userID, dec("0.004"))
	suite.ErrorIs(err, ErrInvalidAmount)

	suite.Empty(suite.gateway.deposits)
	suite.Empty(suite.gateway.withdrawals)
	suite.Equal(1, suite.store.ledgerLen())
}

func (suite *WalletServiceTestSuite) TestAmountsRoundedBeforeGateway() {
	suite.fund("100")
	suite.link()

	entry, err := suite.service.WithdrawToWallet(suite.ctx, suite.userID, dec("10.005"))
	suite.Require().NoError(err)
	suite.Require().Len(suite.gateway.deposits, 1)
	suite.Equal("10.01", suite.gateway.deposits[0].Amount.StringFixed(2))
	suite.True(dec("10.01").Equal(suite.gateway.deposits[0].Amount))
	suite.True(dec("10.01").Equal(entry.Amount.Abs()))

	// 500.004 rounds to the per-transaction limit and is allowed.
	_, err = suite.service.DepositToApp(suite.ctx, suite.userID, dec("500.004"))
	suite.Require().NoError(err)
	suite.True(dec("500").Equal(suite.gateway.withdrawals[0].Amount))
}

func (suite *WalletServiceTestSuite) TestUnauthorizedGatewayClearsSession() {
	suite.link()
	suite.gateway.withdrawErr = &ttpaypal.Error{StatusCode: http.StatusForbidden, Code: "jwt_auth_invalid_token", Message: "Expired token"}

	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("10"))
	suite.ErrorIs(err, ErrWalletSessionExpired)

	_, err = suite.tokens.Token(suite.ctx, suite.userID)
	suite.ErrorIs(err, session.ErrNoValidToken)
}

func (suite *WalletServiceTestSuite) TestUnlinkTreatsNotFoundAsSuccess() {
	suite.link()
	suite.gateway.unlinkErr = &ttpaypal.Error{StatusCode: http.StatusNotFound, Code: "rest_no_route", Message: "No route"}

	suite.Require().NoError(suite.service.Unlink(suite.ctx, suite.userID))

	status, err := suite.service.Status(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.False(status.Linked)

	_, err = suite.tokens.Token(suite.ctx, suite.userID)
	suite.ErrorIs(err, session.ErrNoValidToken)
}

func (suite *WalletServiceTestSuite) TestUnlinkPropagatesOtherErrors() {
	suite.link()
	suite.gateway.unlinkErr = &ttpaypal.Error{StatusCode: http.StatusInternalServerError, Code: "boom", Message: "boom"}

	suite.Error(suite.service.Unlink(suite.ctx, suite.userID))

	status, _ := suite.service.Status(suite.ctx, suite.userID)
	suite.True(status.Linked)
}

func (suite *WalletServiceTestSuite) TestUnlinkNotLinked() {
	suite.ErrorIs(suite.service.Unlink(suite.ctx, suite.userID), ErrWalletNotLinked)
}

func (suite *WalletServiceTestSuite) TestLimitsReportMonthlyUsage() {
	suite.link()
	_, err := suite.service.DepositToApp(suite.ctx, suite.userID, dec("120"))
	suite.Require().NoError(err)

	limits, err := suite.service.Limits(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.True(dec("120").Equal(limits.MonthlyUsed))
	suite.True(dec("1000").Equal(limits.Monthly))
}

func TestWalletServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WalletServiceTestSuite))
}
