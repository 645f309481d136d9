package wallet

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

type fakeNotifier struct {
	inputs []notify.Input
}

func (f *fakeNotifier) Notify(_ context.Context, in notify.Input) (*models.Notification, error) {
	f.inputs = append(f.inputs, in)
	return &models.Notification{UserID: in.UserID, Kind: in.Kind}, nil
}

type WalletTestSuite struct {
	suite.Suite
	db       *gorm.DB
	notifier *fakeNotifier
	svc      *Service
	ctx      context.Context
	alice    *models.User
	bob      *models.User
	now      time.Time
}

func (s *WalletTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.notifier = &fakeNotifier{}
	s.svc = NewService(s.db, s.notifier)
	s.now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return s.now }
	s.ctx = context.Background()
	s.alice = testutil.CreateUser(s.T(), s.db, "alice")
	s.bob = testutil.CreateUser(s.T(), s.db, "bob")
}

func (s *WalletTestSuite) balance(userID string) int64 {
	w, err := s.svc.GetOrCreate(s.ctx, userID)
	s.Require().NoError(err)
	return w.Balance
}

func (s *WalletTestSuite) fund(userID string, amount int64) {
	_, err := s.svc.AwardCoins(s.ctx, userID, amount, ReasonAward, "test")
	s.Require().NoError(err)
}

func (s *WalletTestSuite) TestGetOrCreateIsIdempotent() {
	first, err := s.svc.GetOrCreate(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	second, err := s.svc.GetOrCreate(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Zero(second.Balance)
}

func (s *WalletTestSuite) TestAwardAndSpend() {
	entry, err := s.svc.AwardCoins(s.ctx, s.alice.ID, 100, ReasonAward, "promo")
	s.Require().NoError(err)
	s.Equal(int64(100), entry.BalanceAfter)
	s.Require().Len(s.notifier.inputs, 1)
	s.Equal(models.NotificationCoinsReceived, s.notifier.inputs[0].Kind)

	entry, err = s.svc.Spend(s.ctx, s.alice.ID, 30, ReasonOrderPayment, "order-1")
	s.Require().NoError(err)
	s.Equal(int64(-30), entry.Delta)
	s.Equal(int64(70), entry.BalanceAfter)
	s.Equal(int64(70), s.balance(s.alice.ID))
}

func (s *WalletTestSuite) TestSpendBeyondBalance() {
	s.fund(s.alice.ID, 20)

	_, err := s.svc.Spend(s.ctx, s.alice.ID, 21, ReasonOrderPayment, "order-1")
	s.ErrorIs(err, ErrInsufficientFunds)

	var funds *FundsError
	s.Require().ErrorAs(err, &funds)
	s.Equal(int64(20), funds.Balance)
	s.Equal(int64(21), funds.Required)

	s.Equal(int64(20), s.balance(s.alice.ID))
	_, total, err := s.svc.History(s.ctx, s.alice.ID, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *WalletTestSuite) TestInvalidAmounts() {
	_, err := s.svc.AwardCoins(s.ctx, s.alice.ID, 0, ReasonAward, "")
	s.ErrorIs(err, ErrInvalidAmount)
	_, err = s.svc.Spend(s.ctx, s.alice.ID, -5, ReasonAward, "")
	s.ErrorIs(err, ErrInvalidAmount)
}

func (s *WalletTestSuite) TestTransfer() {
	s.fund(s.alice.ID, 50)
	s.notifier.inputs = nil

	out, err := s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 20})
	s.Require().NoError(err)
	s.Equal(ReasonTransferOut, out.Reason)
	s.Equal(s.bob.ID, out.Reference)

	s.Equal(int64(30), s.balance(s.alice.ID))
	s.Equal(int64(20), s.balance(s.bob.ID))

	s.Require().Len(s.notifier.inputs, 1)
	s.Equal(s.bob.ID, s.notifier.inputs[0].UserID)
	s.Equal(s.alice.ID, s.notifier.inputs[0].ActorID)
}

func (s *WalletTestSuite) TestTransferFailures() {
	s.fund(s.alice.ID, 10)

	_, err := s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.alice.ID, Amount: 1})
	s.ErrorIs(err, ErrSelfTransfer)

	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: "missing", Amount: 1})
	s.ErrorIs(err, ErrRecipientNotFound)

	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 11})
	s.ErrorIs(err, ErrInsufficientFunds)

	s.Equal(int64(10), s.balance(s.alice.ID))
	s.Zero(s.balance(s.bob.ID))
}

func (s *WalletTestSuite) TestTransferRequiresTOTPWhenEnabled() {
	s.fund(s.alice.ID, 10)

	enrollment, err := s.svc.EnrollTOTP(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Contains(enrollment.URL, "otpauth://totp/")

	// Not enforced until confirmed
	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 1})
	s.Require().NoError(err)

	s.ErrorIs(s.svc.ConfirmTOTP(s.ctx, s.alice.ID, "000000"), ErrInvalidCode)
	code, err := totp.GenerateCode(enrollment.Secret, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.ConfirmTOTP(s.ctx, s.alice.ID, code))

	_, err = s.svc.EnrollTOTP(s.ctx, s.alice.ID)
	s.ErrorIs(err, ErrTOTPAlreadyEnabled)

	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 1})
	s.ErrorIs(err, ErrTOTPRequired)

	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 1, Code: "123"})
	s.ErrorIs(err, ErrInvalidCode)

	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 1, Code: code})
	s.Require().NoError(err)
	s.Equal(int64(2), s.balance(s.bob.ID))

	s.Require().NoError(s.svc.DisableTOTP(s.ctx, s.alice.ID, code))
	_, err = s.svc.Transfer(s.ctx, s.alice.ID, TransferInput{ToUserID: s.bob.ID, Amount: 1})
	s.NoError(err)
}

func (s *WalletTestSuite) TestConfirmWithoutEnrollment() {
	s.ErrorIs(s.svc.ConfirmTOTP(s.ctx, s.alice.ID, "123456"), ErrTOTPNotInitiated)
}

func (s *WalletTestSuite) TestCheckInOncePerUTCDay() {
	entry, err := s.svc.CheckIn(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(CheckInCoins, entry.Delta)
	s.Equal("2026-03-10", entry.Reference)

	s.now = s.now.Add(8 * time.Hour)
	_, err = s.svc.CheckIn(s.ctx, s.alice.ID)
	s.ErrorIs(err, ErrAlreadyCheckedIn)

	s.now = time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)
	_, err = s.svc.CheckIn(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(2*CheckInCoins, s.balance(s.alice.ID))
}

func (s *WalletTestSuite) TestWatchMilestoneOncePerVideo() {
	s.Require().NoError(s.svc.AwardWatchMilestone(s.ctx, s.alice.ID, "video-1"))
	s.Require().NoError(s.svc.AwardWatchMilestone(s.ctx, s.alice.ID, "video-1"))
	s.Require().NoError(s.svc.AwardWatchMilestone(s.ctx, s.alice.ID, "video-2"))
	s.Equal(2*WatchMilestoneCoins, s.balance(s.alice.ID))
}

func (s *WalletTestSuite) TestWatchMilestoneConcurrentCompletions() {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.svc.AwardWatchMilestone(s.ctx, s.alice.ID, "video-1")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	s.Equal(WatchMilestoneCoins, s.balance(s.alice.ID))
}

func (s *WalletTestSuite) TestLedgerRejectsSecondWatchMilestoneRow() {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		_, err := s.svc.CreditTx(tx, s.alice.ID, WatchMilestoneCoins, ReasonWatchMilestone, "video-1")
		return err
	})
	s.Require().NoError(err)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		_, err := s.svc.CreditTx(tx, s.alice.ID, WatchMilestoneCoins, ReasonWatchMilestone, "video-1")
		return err
	})
	s.ErrorIs(err, gorm.ErrDuplicatedKey)

	// other reasons may repeat a reference
	s.fund(s.alice.ID, 10)
	s.fund(s.alice.ID, 10)
	s.Equal(WatchMilestoneCoins+20, s.balance(s.alice.ID))
}

func (s *WalletTestSuite) TestPurchaseReward() {
	stock := 1
	reward, err := s.svc.CreateReward(s.ctx, RewardInput{Name: "Sticker pack", CoinCost: 40, Stock: &stock})
	s.Require().NoError(err)
	s.fund(s.alice.ID, 100)

	purchase, err := s.svc.PurchaseReward(s.ctx, s.alice.ID, reward.ID)
	s.Require().NoError(err)
	s.Equal(int64(40), purchase.CoinCost)
	s.Equal(int64(60), s.balance(s.alice.ID))

	_, err = s.svc.PurchaseReward(s.ctx, s.alice.ID, reward.ID)
	s.ErrorIs(err, ErrRewardOutOfStock)
	s.Equal(int64(60), s.balance(s.alice.ID))

	_, err = s.svc.PurchaseReward(s.ctx, s.alice.ID, "missing")
	s.ErrorIs(err, ErrRewardNotFound)
}

func (s *WalletTestSuite) TestPurchaseRewardWithoutFundsKeepsStock() {
	stock := 3
	reward, err := s.svc.CreateReward(s.ctx, RewardInput{Name: "Badge", CoinCost: 40, Stock: &stock})
	s.Require().NoError(err)

	_, err = s.svc.PurchaseReward(s.ctx, s.alice.ID, reward.ID)
	s.ErrorIs(err, ErrInsufficientFunds)

	var stored models.Reward
	s.Require().NoError(s.db.First(&stored, "id = ?", reward.ID).Error)
	s.Equal(3, *stored.Stock)

	var purchases int64
	s.Require().NoError(s.db.Model(&models.RewardPurchase{}).Count(&purchases).Error)
	s.Zero(purchases)
}

func (s *WalletTestSuite) TestUnlimitedRewardAndCatalogOrder() {
	_, err := s.svc.CreateReward(s.ctx, RewardInput{Name: "Frame", CoinCost: 90})
	s.Require().NoError(err)
	cheap, err := s.svc.CreateReward(s.ctx, RewardInput{Name: "Emoji", CoinCost: 5})
	s.Require().NoError(err)

	rewards, err := s.svc.Rewards(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rewards, 2)
	s.Equal(cheap.ID, rewards[0].ID)

	s.fund(s.alice.ID, 10)
	_, err = s.svc.PurchaseReward(s.ctx, s.alice.ID, cheap.ID)
	s.Require().NoError(err)
	_, err = s.svc.PurchaseReward(s.ctx, s.alice.ID, cheap.ID)
	s.Require().NoError(err)
	s.Zero(s.balance(s.alice.ID))
}

func (s *WalletTestSuite) TestHistoryPagination() {
	for i := 0; i < 5; i++ {
		s.fund(s.alice.ID, 1)
	}
	entries, total, err := s.svc.History(s.ctx, s.alice.ID, 2, 0)
	s.Require().NoError(err)
	s.Equal(int64(5), total)
	s.Len(entries, 2)

	entries, _, err = s.svc.History(s.ctx, s.alice.ID, 10, 4)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func TestWalletSuite(t *testing.T) {
	suite.Run(t, new(WalletTestSuite))
}
