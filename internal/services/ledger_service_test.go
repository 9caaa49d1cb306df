package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/utils"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type LedgerServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	userID    uuid.UUID
	store     *memStore
	publisher *fakePublisher
	service   *LedgerService
}

func (suite *LedgerServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.userID = uuid.New()
	suite.store = newMemStore(suite.userID)
	suite.publisher = &fakePublisher{}
	suite.service = NewLedgerService(suite.store, suite.publisher)
}

func (suite *LedgerServiceTestSuite) record(txType models.TransactionType, amount string) {
	_, err := suite.service.Record(suite.ctx, RecordParams{
		UserID: suite.userID,
		Type:   txType,
		Amount: dec(amount),
	})
	suite.Require().NoError(err)
}

func (suite *LedgerServiceTestSuite) TestBalanceFoldsCompletedRows() {
	suite.record(models.TransactionTypeDeposit, "100")
	suite.record(models.TransactionTypeWithdrawal, "30")
	suite.record(models.TransactionTypeRefund, "10")

	balance, err := suite.service.GetBalance(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.True(dec("80").Equal(balance), balance.String())
}

func (suite *LedgerServiceTestSuite) TestDeductRejectsOverdraftWithoutWriting() {
	suite.record(models.TransactionTypeDeposit, "100")
	suite.record(models.TransactionTypeWithdrawal, "30")
	suite.record(models.TransactionTypeRefund, "10")
	before := suite.store.ledgerLen()

	_, err := suite.service.Deduct(suite.ctx, DeductParams{UserID: suite.userID, Amount: dec("90")})
	suite.ErrorIs(err, ErrInsufficientBalance)
	suite.Equal(before, suite.store.ledgerLen())
}

func (suite *LedgerServiceTestSuite) TestDeductRejectsNonPositiveAmount() {
	_, err := suite.service.Deduct(suite.ctx, DeductParams{UserID: suite.userID, Amount: decimal.Zero})
	suite.ErrorIs(err, ErrInvalidAmount)

	_, err = suite.service.Deduct(suite.ctx, DeductParams{UserID: suite.userID, Amount: dec("-5")})
	suite.ErrorIs(err, ErrInvalidAmount)
}

func (suite *LedgerServiceTestSuite) TestSubCentAmountsNeverWritten() {
	suite.record(models.TransactionTypeDeposit, "10")
	before := suite.store.ledgerLen()

	_, err := suite.service.Deduct(suite.ctx, DeductParams{UserID: suite.userID, Amount: dec("0.004")})
	suite.ErrorIs(err, ErrInvalidAmount)

	_, err = suite.service.Record(suite.ctx, RecordParams{UserID: suite.userID, Type: models.TransactionTypeReward, Amount: dec("0.004")})
	suite.ErrorIs(err, ErrInvalidAmount)

	_, err = suite.service.Record(suite.ctx, RecordParams{UserID: suite.userID, Type: models.TransactionTypeTransfer, Amount: dec("-0.001")})
	suite.ErrorIs(err, ErrInvalidAmount)

	suite.Equal(before, suite.store.ledgerLen())

	entry, err := suite.service.Record(suite.ctx, RecordParams{UserID: suite.userID, Type: models.TransactionTypeReward, Amount: dec("0.005")})
	suite.Require().NoError(err)
	suite.True(dec("0.01").Equal(entry.Amount))
}

func (suite *LedgerServiceTestSuite) TestDeductTransferStoresNegativeAmount() {
	suite.record(models.TransactionTypeDeposit, "200")

	entry, err := suite.service.Deduct(suite.ctx, DeductParams{
		UserID: suite.userID,
		Amount: dec("120"),
		Type:   models.TransactionTypeTransfer,
	})
	suite.Require().NoError(err)
	suite.True(dec("-120").Equal(entry.Amount))
	suite.True(dec("200").Equal(entry.BalanceBefore))
	suite.True(dec("80").Equal(entry.BalanceAfter))
}

func (suite *LedgerServiceTestSuite) TestReadAfterWrite() {
	suite.record(models.TransactionTypeReward, "15.50")

	balance, err := suite.service.GetBalance(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.True(dec("15.5").Equal(balance))
	suite.Equal(1, suite.publisher.count(events.TypeLedgerRecorded))
}

func (suite *LedgerServiceTestSuite) TestDuplicateReference() {
	params := RecordParams{
		UserID:    suite.userID,
		Type:      models.TransactionTypeDeposit,
		Amount:    dec("25"),
		Reference: "ttpaypal:TX-1",
	}
	_, err := suite.service.Record(suite.ctx, params)
	suite.Require().NoError(err)

	_, err = suite.service.Record(suite.ctx, params)
	suite.ErrorIs(err, ErrDuplicateTransaction)

	balance, _ := suite.service.GetBalance(suite.ctx, suite.userID)
	suite.True(dec("25").Equal(balance))
}

func (suite *LedgerServiceTestSuite) TestPendingRowsDoNotMoveBalance() {
	_, err := suite.service.Record(suite.ctx, RecordParams{
		UserID: suite.userID,
		Type:   models.TransactionTypeDeposit,
		Amount: dec("40"),
		Status: models.TransactionStatusPending,
	})
	suite.Require().NoError(err)

	balance, _ := suite.service.GetBalance(suite.ctx, suite.userID)
	suite.True(balance.IsZero())
}

func (suite *LedgerServiceTestSuite) TestRecordValidation() {
	_, err := suite.service.Record(suite.ctx, RecordParams{UserID: suite.userID, Type: "bonus", Amount: dec("1")})
	suite.ErrorIs(err, ErrInvalidTransactionType)

	_, err = suite.service.Record(suite.ctx, RecordParams{UserID: suite.userID, Type: models.TransactionTypeDeposit, Amount: dec("-1")})
	suite.ErrorIs(err, ErrInvalidAmount)

	_, err = suite.service.Record(suite.ctx, RecordParams{UserID: uuid.New(), Type: models.TransactionTypeDeposit, Amount: dec("1")})
	suite.ErrorIs(err, ErrProfileNotFound)
}

func (suite *LedgerServiceTestSuite) TestHistoryNewestFirst() {
	suite.record(models.TransactionTypeDeposit, "10")
	suite.record(models.TransactionTypeDeposit, "20")

	rows, total, err := suite.service.History(suite.ctx, suite.userID, utils.PaginationParams{Page: 1, Limit: 20})
	suite.Require().NoError(err)
	suite.Equal(int64(2), total)
	suite.Len(rows, 2)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func TestBuildEntryRoundsToCents(t *testing.T) {
	entry, err := buildEntry(RecordParams{
		UserID: uuid.New(),
		Type:   models.TransactionTypeDeposit,
		Amount: dec("10.005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10.01", entry.Amount.StringFixed(2))
	assert.Nil(t, entry.Reference)
	assert.Equal(t, models.TransactionStatusCompleted, entry.Status)
}
