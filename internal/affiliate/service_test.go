package affiliate

import (
	"context"
	"os"
	"testing"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/testutil"
	"github.com/reelhub/backend/internal/wallet"
	"github.com/stretchr/testify/assert"
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

func TestTierFor(t *testing.T) {
	tiers := DefaultTiers
	tests := []struct {
		sales int64
		want  string
	}{
		{0, "bronze"},
		{9, "bronze"},
		{10, "silver"},
		{49, "silver"},
		{50, "gold"},
		{500, "gold"},
	}
	for _, tt := range tests {
		tier, ok := TierFor(tiers, tt.sales)
		assert.True(t, ok)
		assert.Equal(t, tt.want, tier.Name, "sales=%d", tt.sales)
	}

	_, ok := TierFor([]models.AffiliateTier{{Name: "pro", MinSales: 5, RateBps: 100}}, 2)
	assert.False(t, ok)
}

func TestCommissionCents(t *testing.T) {
	assert.Equal(t, int64(500), CommissionCents(10000, 500))
	assert.Equal(t, int64(1200), CommissionCents(10000, 1200))
	assert.Equal(t, int64(0), CommissionCents(19, 500))
	assert.Equal(t, int64(79), CommissionCents(999, 800))
}

type AffiliateTestSuite struct {
	suite.Suite
	db        *gorm.DB
	wallet    *wallet.Service
	notifier  *fakeNotifier
	svc       *Service
	ctx       context.Context
	affiliate *models.User
	buyer     *models.User
	seller    *models.User
}

func (s *AffiliateTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.wallet = wallet.NewService(s.db, nil)
	s.notifier = &fakeNotifier{}
	s.svc = NewService(s.db, s.wallet, s.notifier)
	s.ctx = context.Background()
	s.affiliate = testutil.CreateUser(s.T(), s.db, "promoter")
	s.buyer = testutil.CreateUser(s.T(), s.db, "buyer")
	s.seller = testutil.CreateUser(s.T(), s.db, "seller")
	s.Require().NoError(s.svc.EnsureDefaultTiers(s.ctx))
}

func (s *AffiliateTestSuite) deliveredOrder(code string, cents int64) *models.Order {
	order := &models.Order{
		BuyerID:       s.buyer.ID,
		SellerID:      s.seller.ID,
		Status:        models.OrderDelivered,
		PaymentMethod: models.PaymentCard,
		TotalCents:    cents,
		AffiliateCode: &code,
	}
	s.Require().NoError(s.db.Create(order).Error)
	return order
}

func (s *AffiliateTestSuite) commission(order *models.Order) *models.AffiliateCommission {
	var c *models.AffiliateCommission
	s.Require().NoError(s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		c, err = s.svc.CommissionTx(tx, order)
		return err
	}))
	return c
}

func (s *AffiliateTestSuite) TestEnsureDefaultTiersIsIdempotent() {
	s.Require().NoError(s.svc.EnsureDefaultTiers(s.ctx))
	tiers, err := s.svc.Tiers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(tiers, 3)
	s.Equal([]string{"bronze", "silver", "gold"}, []string{tiers[0].Name, tiers[1].Name, tiers[2].Name})
}

func (s *AffiliateTestSuite) TestCreateLinkAndClick() {
	link, err := s.svc.CreateLink(s.ctx, s.affiliate.ID, nil)
	s.Require().NoError(err)
	s.Len(link.Code, 10)

	clicked, err := s.svc.RecordClick(s.ctx, " "+link.Code+" ")
	s.Require().NoError(err)
	s.Equal(int64(1), clicked.Clicks)

	_, err = s.svc.RecordClick(s.ctx, "NOPE")
	s.ErrorIs(err, ErrInvalidCode)

	missing := "missing-product"
	_, err = s.svc.CreateLink(s.ctx, s.affiliate.ID, &missing)
	s.ErrorIs(err, ErrProductNotFound)
}

func (s *AffiliateTestSuite) TestValidateCode() {
	link, err := s.svc.CreateLink(s.ctx, s.affiliate.ID, nil)
	s.Require().NoError(err)

	code, err := s.svc.ValidateCodeTx(s.db, link.Code, s.buyer.ID)
	s.Require().NoError(err)
	s.Equal(link.Code, code)

	_, err = s.svc.ValidateCodeTx(s.db, link.Code, s.affiliate.ID)
	s.ErrorIs(err, ErrSelfReferral)

	_, err = s.svc.ValidateCodeTx(s.db, "unknown", s.buyer.ID)
	s.ErrorIs(err, ErrInvalidCode)
}

func (s *AffiliateTestSuite) TestCommissionFollowsTier() {
	link, err := s.svc.CreateLink(s.ctx, s.affiliate.ID, nil)
	s.Require().NoError(err)

	first := s.commission(s.deliveredOrder(link.Code, 10000))
	s.Require().NotNil(first)
	s.Equal("bronze", first.Tier)
	s.Equal(int64(500), first.AmountCents)

	for i := 0; i < 9; i++ {
		s.commission(s.deliveredOrder(link.Code, 100))
	}

	// Ten delivered sales reach silver
	eleventh := s.commission(s.deliveredOrder(link.Code, 10000))
	s.Equal("silver", eleventh.Tier)
	s.Equal(800, eleventh.RateBps)
	s.Equal(int64(800), eleventh.AmountCents)
}

func (s *AffiliateTestSuite) TestCommissionIsRecordedOnce() {
	link, err := s.svc.CreateLink(s.ctx, s.affiliate.ID, nil)
	s.Require().NoError(err)
	order := s.deliveredOrder(link.Code, 2000)

	first := s.commission(order)
	second := s.commission(order)
	s.Equal(first.ID, second.ID)

	var count int64
	s.Require().NoError(s.db.Model(&models.AffiliateCommission{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *AffiliateTestSuite) TestNoCommissionWithoutCode() {
	order := &models.Order{BuyerID: s.buyer.ID, SellerID: s.seller.ID, Status: models.OrderDelivered, TotalCents: 100}
	s.Require().NoError(s.db.Create(order).Error)
	s.Nil(s.commission(order))
}

func (s *AffiliateTestSuite) TestPayoutCreditsWallet() {
	link, err := s.svc.CreateLink(s.ctx, s.affiliate.ID, nil)
	s.Require().NoError(err)
	c := s.commission(s.deliveredOrder(link.Code, 10000))
	s.svc.CommissionRecorded(s.ctx, c)
	s.Require().Len(s.notifier.inputs, 1)
	s.Equal(models.NotificationCommission, s.notifier.inputs[0].Kind)

	entry, err := s.svc.Payout(s.ctx, s.affiliate.ID)
	s.Require().NoError(err)
	s.Equal(int64(500), entry.Delta)
	s.Equal(ReasonPayout, entry.Reason)

	w, err := s.wallet.GetOrCreate(s.ctx, s.affiliate.ID)
	s.Require().NoError(err)
	s.Equal(int64(500), w.Balance)

	_, err = s.svc.Payout(s.ctx, s.affiliate.ID)
	s.ErrorIs(err, ErrNothingToPay)

	summary, err := s.svc.Summary(s.ctx, s.affiliate.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), summary.PendingCents)
	s.Equal(int64(500), summary.PaidCents)
}

func (s *AffiliateTestSuite) TestSummary() {
	link, err := s.svc.CreateLink(s.ctx, s.affiliate.ID, nil)
	s.Require().NoError(err)
	_, err = s.svc.RecordClick(s.ctx, link.Code)
	s.Require().NoError(err)
	s.commission(s.deliveredOrder(link.Code, 4000))

	summary, err := s.svc.Summary(s.ctx, s.affiliate.ID)
	s.Require().NoError(err)
	s.Equal("bronze", summary.Tier.Name)
	s.Require().NotNil(summary.NextTier)
	s.Equal("silver", summary.NextTier.Name)
	s.Equal(int64(1), summary.Sales)
	s.Equal(int64(1), summary.Links)
	s.Equal(int64(1), summary.Clicks)
	s.Equal(int64(200), summary.PendingCents)
}

func TestAffiliateSuite(t *testing.T) {
	suite.Run(t, new(AffiliateTestSuite))
}
