package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v74"

	"github.com/limey-tt/limey-backend/internal/config"
)

type mockIntents struct {
	mock.Mock
}

func (m *mockIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	pi, _ := args.Get(0).(*stripe.PaymentIntent)
	return pi, args.Error(1)
}

func (m *mockIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(id, params)
	pi, _ := args.Get(0).(*stripe.PaymentIntent)
	return pi, args.Error(1)
}

type CreditServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	userID  uuid.UUID
	store   *memStore
	intents *mockIntents
	service *CreditService
}

func (suite *CreditServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.userID = uuid.New()
	suite.store = newMemStore(suite.userID)
	suite.intents = &mockIntents{}
	ledger := NewLedgerService(suite.store, &fakePublisher{})
	suite.service = newCreditService(suite.intents, ledger, config.PaymentConfig{Currency: "TTD", MinimumPurchase: 10})
}

func (suite *CreditServiceTestSuite) succeeded(id string, cents int64, owner uuid.UUID) *stripe.PaymentIntent {
	return &stripe.PaymentIntent{
		ID:             id,
		Amount:         cents,
		AmountReceived: cents,
		Currency:       "ttd",
		Status:         stripe.PaymentIntentStatusSucceeded,
		Metadata:       map[string]string{"user_id": owner.String()},
	}
}

func (suite *CreditServiceTestSuite) TestCreatePurchaseIntent() {
	suite.intents.On("New", mock.MatchedBy(func(p *stripe.PaymentIntentParams) bool {
		return *p.Amount == 2550 && *p.Currency == "ttd" && p.Metadata["user_id"] == suite.userID.String()
	})).Return(&stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, nil)

	resp, err := suite.service.CreatePurchaseIntent(suite.ctx, suite.userID, &PurchaseIntentRequest{Amount: dec("25.50")})
	suite.Require().NoError(err)
	suite.Equal("pi_1_secret", resp.ClientSecret)
	suite.Equal("ttd", resp.Currency)
	suite.intents.AssertExpectations(suite.T())
}

func (suite *CreditServiceTestSuite) TestCreatePurchaseIntentBelowMinimum() {
	_, err := suite.service.CreatePurchaseIntent(suite.ctx, suite.userID, &PurchaseIntentRequest{Amount: dec("5")})
	suite.ErrorIs(err, ErrBelowMinimum)
	suite.intents.AssertNotCalled(suite.T(), "New", mock.Anything)
}

func (suite *CreditServiceTestSuite) TestConfirmPurchaseCreditsOnce() {
	suite.intents.On("Get", "pi_2", mock.Anything).Return(suite.succeeded("pi_2", 4000, suite.userID), nil)

	result, err := suite.service.ConfirmPurchase(suite.ctx, suite.userID, "pi_2")
	suite.Require().NoError(err)
	suite.False(result.AlreadyCredited)
	suite.True(dec("40").Equal(result.Balance))
	suite.Equal("stripe:pi_2", *result.Transaction.Reference)
	first := result.Transaction.ID

	result, err = suite.service.ConfirmPurchase(suite.ctx, suite.userID, "pi_2")
	suite.Require().NoError(err)
	suite.True(result.AlreadyCredited)
	suite.True(dec("40").Equal(result.Balance))
	suite.Require().NotNil(result.Transaction)
	suite.Equal(first, result.Transaction.ID)
	suite.Equal("stripe:pi_2", *result.Transaction.Reference)
	suite.Equal(1, suite.store.ledgerLen())
}

func (suite *CreditServiceTestSuite) TestConfirmPurchaseChecksOwnerAndStatus() {
	suite.intents.On("Get", "pi_other", mock.Anything).Return(suite.succeeded("pi_other", 1000, uuid.New()), nil)
	pending := suite.succeeded("pi_pending", 1000, suite.userID)
	pending.Status = stripe.PaymentIntentStatusProcessing
	suite.intents.On("Get", "pi_pending", mock.Anything).Return(pending, nil)

	_, err := suite.service.ConfirmPurchase(suite.ctx, suite.userID, "pi_other")
	suite.ErrorIs(err, ErrPaymentMismatch)

	_, err = suite.service.ConfirmPurchase(suite.ctx, suite.userID, "pi_pending")
	suite.ErrorIs(err, ErrPaymentNotSucceeded)

	suite.Equal(0, suite.store.ledgerLen())
}

func TestCreditServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CreditServiceTestSuite))
}
