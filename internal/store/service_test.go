package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/reelhub/backend/internal/affiliate"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/storage"
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

func TestCanTransition(t *testing.T) {
	allowed := [][2]models.OrderStatus{
		{models.OrderPending, models.OrderPaid},
		{models.OrderPaid, models.OrderShipped},
		{models.OrderShipped, models.OrderDelivered},
		{models.OrderPending, models.OrderCancelled},
		{models.OrderPaid, models.OrderCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	rejected := [][2]models.OrderStatus{
		{models.OrderPending, models.OrderShipped},
		{models.OrderPending, models.OrderDelivered},
		{models.OrderPaid, models.OrderPending},
		{models.OrderShipped, models.OrderCancelled},
		{models.OrderDelivered, models.OrderCancelled},
		{models.OrderCancelled, models.OrderPending},
		{models.OrderDelivered, models.OrderDelivered},
	}
	for _, tr := range rejected {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

type StoreTestSuite struct {
	suite.Suite
	db        *gorm.DB
	storage   *testutil.Storage
	pub       *testutil.Publisher
	notifier  *fakeNotifier
	wallet    *wallet.Service
	affiliate *affiliate.Service
	svc       *Service
	ctx       context.Context
	seller    *models.User
	buyer     *models.User
}

func (s *StoreTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.storage = &testutil.Storage{}
	s.pub = testutil.NewPublisher()
	s.notifier = &fakeNotifier{}
	s.wallet = wallet.NewService(s.db, nil)
	s.affiliate = affiliate.NewService(s.db, s.wallet, nil)
	s.svc = NewService(s.db, Deps{
		Storage:   s.storage,
		Ledger:    s.wallet,
		Referrals: s.affiliate,
		Notifier:  s.notifier,
		Publisher: s.pub,
	})
	s.ctx = context.Background()
	s.seller = testutil.CreateUser(s.T(), s.db, "seller")
	s.buyer = testutil.CreateUser(s.T(), s.db, "buyer")
}

func (s *StoreTestSuite) product(name string, cents, coins int64, stock int) *models.Product {
	p, err := s.svc.CreateProduct(s.ctx, s.seller.ID, ProductInput{
		Name: name, PriceCents: cents, CoinPrice: coins, Stock: stock,
	})
	s.Require().NoError(err)
	return p
}

func (s *StoreTestSuite) stock(id string) int {
	var p models.Product
	s.Require().NoError(s.db.Unscoped().First(&p, "id = ?", id).Error)
	return p.Stock
}

func (s *StoreTestSuite) cardOrder(items ...OrderItemInput) *models.Order {
	order, err := s.svc.PlaceOrder(s.ctx, s.buyer.ID, PlaceOrderInput{Items: items, PaymentMethod: models.PaymentCard})
	s.Require().NoError(err)
	return order
}

func (s *StoreTestSuite) TestProductCRUD() {
	p := s.product("Hoodie", 4500, 0, 3)
	s.True(p.Active)

	_, err := s.svc.CreateProduct(s.ctx, s.seller.ID, ProductInput{Name: "  ", PriceCents: 100})
	s.ErrorIs(err, ErrInvalidProduct)

	name, inactive := "Hoodie v2", false
	updated, err := s.svc.UpdateProduct(s.ctx, s.seller.ID, p.ID, ProductPatch{Name: &name, Active: &inactive})
	s.Require().NoError(err)
	s.Equal("Hoodie v2", updated.Name)
	s.False(updated.Active)

	_, err = s.svc.UpdateProduct(s.ctx, s.buyer.ID, p.ID, ProductPatch{Name: &name})
	s.ErrorIs(err, ErrNotSeller)

	// Inactive listings are hidden from everyone but the seller
	public, total, err := s.svc.ListProducts(s.ctx, ProductFilter{SellerID: s.seller.ID, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(public)
	own, _, err := s.svc.ListProducts(s.ctx, ProductFilter{SellerID: s.seller.ID, ViewerID: s.seller.ID, Limit: 10})
	s.Require().NoError(err)
	s.Len(own, 1)

	s.ErrorIs(s.svc.DeleteProduct(s.ctx, s.buyer.ID, p.ID), ErrNotSeller)
	s.Require().NoError(s.svc.DeleteProduct(s.ctx, s.seller.ID, p.ID))
	_, err = s.svc.GetProduct(s.ctx, p.ID)
	s.ErrorIs(err, ErrProductNotFound)
}

func (s *StoreTestSuite) TestListProductsSearch() {
	s.product("Blue Mug", 1200, 0, 1)
	s.product("Sticker", 300, 0, 1)

	found, total, err := s.svc.ListProducts(s.ctx, ProductFilter{Query: "mug", Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("Blue Mug", found[0].Name)
}

func (s *StoreTestSuite) TestUploadProductImageReplacesOld() {
	p := s.product("Poster", 900, 0, 1)

	first, err := s.svc.UploadProductImage(s.ctx, s.seller.ID, p.ID, "a.png", strings.NewReader("png"))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(first.ImageURL, testutil.StorageBaseURL+"products/"))

	_, err = s.svc.UploadProductImage(s.ctx, s.seller.ID, p.ID, "b.jpg", strings.NewReader("jpg"))
	s.Require().NoError(err)
	s.Equal([]storage.Kind{storage.KindProduct, storage.KindProduct}, s.storage.Uploads)
	s.Require().Len(s.storage.Deleted, 1)
	s.Contains(first.ImageURL, s.storage.Deleted[0])

	_, err = s.svc.UploadProductImage(s.ctx, s.seller.ID, p.ID, "doc.pdf", strings.NewReader(""))
	s.ErrorIs(err, ErrInvalidProduct)
}

func (s *StoreTestSuite) TestPlaceCardOrder() {
	mug := s.product("Mug", 1200, 0, 5)
	hat := s.product("Cap", 2000, 0, 2)

	order := s.cardOrder(
		OrderItemInput{ProductID: mug.ID, Quantity: 2},
		OrderItemInput{ProductID: hat.ID, Quantity: 1},
		OrderItemInput{ProductID: mug.ID, Quantity: 1},
	)
	s.Equal(models.OrderPending, order.Status)
	s.Equal(int64(3*1200+2000), order.TotalCents)
	s.Zero(order.TotalCoins)
	s.Len(order.Items, 2)
	s.Equal(2, s.stock(mug.ID))
	s.Equal(1, s.stock(hat.ID))

	events := s.pub.Table("orders")
	s.Require().Len(events, 1)
	s.Equal(realtime.EventInsert, events[0].Type)

	s.Require().Len(s.notifier.inputs, 1)
	s.Equal(s.seller.ID, s.notifier.inputs[0].UserID)
	s.Equal(models.NotificationOrderStatus, s.notifier.inputs[0].Kind)
}

func (s *StoreTestSuite) TestPlaceOrderOutOfStockLeavesStock() {
	mug := s.product("Mug", 1200, 0, 5)
	last := s.product("Last one", 500, 0, 1)

	_, err := s.svc.PlaceOrder(s.ctx, s.buyer.ID, PlaceOrderInput{
		PaymentMethod: models.PaymentCard,
		Items: []OrderItemInput{
			{ProductID: mug.ID, Quantity: 1},
			{ProductID: last.ID, Quantity: 2},
		},
	})
	s.ErrorIs(err, ErrOutOfStock)
	var stockErr *StockError
	s.Require().ErrorAs(err, &stockErr)
	s.Equal(last.ID, stockErr.ProductID)

	s.Equal(5, s.stock(mug.ID))
	s.Equal(1, s.stock(last.ID))
	s.Empty(s.pub.Table("orders"))
}

func (s *StoreTestSuite) TestPlaceOrderValidation() {
	mug := s.product("Mug", 1200, 0, 5)
	other := testutil.CreateUser(s.T(), s.db, "other")
	foreign, err := s.svc.CreateProduct(s.ctx, other.ID, ProductInput{Name: "Foreign", PriceCents: 100, Stock: 1})
	s.Require().NoError(err)

	cases := map[string]struct {
		buyer string
		in    PlaceOrderInput
		want  error
	}{
		"no items":       {s.buyer.ID, PlaceOrderInput{PaymentMethod: models.PaymentCard}, ErrInvalidOrder},
		"zero quantity":  {s.buyer.ID, PlaceOrderInput{PaymentMethod: models.PaymentCard, Items: []OrderItemInput{{ProductID: mug.ID}}}, ErrInvalidOrder},
		"bad method":     {s.buyer.ID, PlaceOrderInput{PaymentMethod: "iou", Items: []OrderItemInput{{ProductID: mug.ID, Quantity: 1}}}, ErrInvalidOrder},
		"missing":        {s.buyer.ID, PlaceOrderInput{PaymentMethod: models.PaymentCard, Items: []OrderItemInput{{ProductID: "nope", Quantity: 1}}}, ErrProductNotFound},
		"mixed sellers":  {s.buyer.ID, PlaceOrderInput{PaymentMethod: models.PaymentCard, Items: []OrderItemInput{{ProductID: mug.ID, Quantity: 1}, {ProductID: foreign.ID, Quantity: 1}}}, ErrMixedSellers},
		"own product":    {s.seller.ID, PlaceOrderInput{PaymentMethod: models.PaymentCard, Items: []OrderItemInput{{ProductID: mug.ID, Quantity: 1}}}, ErrOwnProduct},
		"coins rejected": {s.buyer.ID, PlaceOrderInput{PaymentMethod: models.PaymentCoins, Items: []OrderItemInput{{ProductID: mug.ID, Quantity: 1}}}, ErrCoinsNotAccepted},
		"bad code":       {s.buyer.ID, PlaceOrderInput{PaymentMethod: models.PaymentCard, AffiliateCode: "NOPE", Items: []OrderItemInput{{ProductID: mug.ID, Quantity: 1}}}, affiliate.ErrInvalidCode},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			_, err := s.svc.PlaceOrder(s.ctx, tc.buyer, tc.in)
			s.ErrorIs(err, tc.want)
		})
	}
	s.Equal(5, s.stock(mug.ID))
}

func (s *StoreTestSuite) TestCoinOrderIsPaidAndRefundedOnCancel() {
	badge := s.product("Badge", 500, 50, 3)
	_, err := s.wallet.AwardCoins(s.ctx, s.buyer.ID, 120, wallet.ReasonAward, "test")
	s.Require().NoError(err)

	order, err := s.svc.PlaceOrder(s.ctx, s.buyer.ID, PlaceOrderInput{
		PaymentMethod: models.PaymentCoins,
		Items:         []OrderItemInput{{ProductID: badge.ID, Quantity: 2}},
	})
	s.Require().NoError(err)
	s.Equal(models.OrderPaid, order.Status)
	s.NotNil(order.PaidAt)
	s.Equal(int64(100), order.TotalCoins)

	w, err := s.wallet.GetOrCreate(s.ctx, s.buyer.ID)
	s.Require().NoError(err)
	s.Equal(int64(20), w.Balance)

	cancelled, err := s.svc.Transition(s.ctx, s.buyer.ID, order.ID, models.OrderCancelled)
	s.Require().NoError(err)
	s.NotNil(cancelled.CancelledAt)
	s.Equal(3, s.stock(badge.ID))

	w, err = s.wallet.GetOrCreate(s.ctx, s.buyer.ID)
	s.Require().NoError(err)
	s.Equal(int64(120), w.Balance)
}

func (s *StoreTestSuite) TestCoinOrderWithoutFunds() {
	badge := s.product("Badge", 500, 50, 3)

	_, err := s.svc.PlaceOrder(s.ctx, s.buyer.ID, PlaceOrderInput{
		PaymentMethod: models.PaymentCoins,
		Items:         []OrderItemInput{{ProductID: badge.ID, Quantity: 1}},
	})
	s.ErrorIs(err, wallet.ErrInsufficientFunds)
	s.Equal(3, s.stock(badge.ID))

	var orders int64
	s.Require().NoError(s.db.Model(&models.Order{}).Count(&orders).Error)
	s.Zero(orders)
}

func (s *StoreTestSuite) TestFullLifecycle() {
	mug := s.product("Mug", 1200, 0, 5)
	order := s.cardOrder(OrderItemInput{ProductID: mug.ID, Quantity: 1})

	// Seller cannot confirm payment and buyer cannot ship
	_, err := s.svc.Transition(s.ctx, s.seller.ID, order.ID, models.OrderPaid)
	s.ErrorIs(err, ErrTransitionNotAllowed)

	paid, err := s.svc.Transition(s.ctx, s.buyer.ID, order.ID, models.OrderPaid)
	s.Require().NoError(err)
	s.NotNil(paid.PaidAt)

	_, err = s.svc.Transition(s.ctx, s.buyer.ID, order.ID, models.OrderShipped)
	s.ErrorIs(err, ErrTransitionNotAllowed)

	_, err = s.svc.Transition(s.ctx, s.seller.ID, order.ID, models.OrderShipped)
	s.Require().NoError(err)
	delivered, err := s.svc.Transition(s.ctx, s.seller.ID, order.ID, models.OrderDelivered)
	s.Require().NoError(err)
	s.Equal(models.OrderDelivered, delivered.Status)
	s.NotNil(delivered.DeliveredAt)

	_, err = s.svc.Transition(s.ctx, s.buyer.ID, order.ID, models.OrderCancelled)
	s.ErrorIs(err, ErrInvalidTransition)

	events := s.pub.Table("orders")
	s.Require().Len(events, 4)
	for _, e := range events[1:] {
		s.Equal(realtime.EventUpdate, e.Type)
	}
	s.Equal(4, s.stock(mug.ID))
}

func (s *StoreTestSuite) TestInvalidTransitionsAreRejected() {
	mug := s.product("Mug", 1200, 0, 5)
	order := s.cardOrder(OrderItemInput{ProductID: mug.ID, Quantity: 1})

	_, err := s.svc.Transition(s.ctx, s.seller.ID, order.ID, models.OrderDelivered)
	s.ErrorIs(err, ErrInvalidTransition)
	_, err = s.svc.Transition(s.ctx, s.seller.ID, order.ID, models.OrderShipped)
	s.ErrorIs(err, ErrInvalidTransition)

	stranger := testutil.CreateUser(s.T(), s.db, "stranger")
	_, err = s.svc.Transition(s.ctx, stranger.ID, order.ID, models.OrderCancelled)
	s.ErrorIs(err, ErrOrderNotFound)

	stored, err := s.svc.GetOrder(s.ctx, s.buyer.ID, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderPending, stored.Status)
}

func (s *StoreTestSuite) TestCancelRestoresStock() {
	mug := s.product("Mug", 1200, 0, 5)
	order := s.cardOrder(OrderItemInput{ProductID: mug.ID, Quantity: 3})
	s.Equal(2, s.stock(mug.ID))

	_, err := s.svc.Transition(s.ctx, s.seller.ID, order.ID, models.OrderCancelled)
	s.Require().NoError(err)
	s.Equal(5, s.stock(mug.ID))
}

func (s *StoreTestSuite) TestDeliveryRecordsAffiliateCommission() {
	promoter := testutil.CreateUser(s.T(), s.db, "promoter")
	link, err := s.affiliate.CreateLink(s.ctx, promoter.ID, nil)
	s.Require().NoError(err)

	mug := s.product("Mug", 10000, 0, 5)
	order, err := s.svc.PlaceOrder(s.ctx, s.buyer.ID, PlaceOrderInput{
		PaymentMethod: models.PaymentCard,
		AffiliateCode: strings.ToLower(link.Code),
		Items:         []OrderItemInput{{ProductID: mug.ID, Quantity: 1}},
	})
	s.Require().NoError(err)
	s.Require().NotNil(order.AffiliateCode)
	s.Equal(link.Code, *order.AffiliateCode)

	for _, step := range []struct {
		actor string
		to    models.OrderStatus
	}{
		{s.buyer.ID, models.OrderPaid},
		{s.seller.ID, models.OrderShipped},
		{s.seller.ID, models.OrderDelivered},
	} {
		_, err := s.svc.Transition(s.ctx, step.actor, order.ID, step.to)
		s.Require().NoError(err)
	}

	var commission models.AffiliateCommission
	s.Require().NoError(s.db.First(&commission, "order_id = ?", order.ID).Error)
	s.Equal(promoter.ID, commission.AffiliateUserID)
	s.Equal("bronze", commission.Tier)
	s.Equal(int64(500), commission.AmountCents)
}

func (s *StoreTestSuite) TestListOrders() {
	mug := s.product("Mug", 1200, 0, 5)
	first := s.cardOrder(OrderItemInput{ProductID: mug.ID, Quantity: 1})
	s.cardOrder(OrderItemInput{ProductID: mug.ID, Quantity: 1})
	_, err := s.svc.Transition(s.ctx, s.buyer.ID, first.ID, models.OrderPaid)
	s.Require().NoError(err)

	mine, total, err := s.svc.ListOrders(s.ctx, OrderFilter{UserID: s.buyer.ID, Role: RoleBuyer, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(mine, 2)
	s.NotEmpty(mine[0].Items)

	paid, total, err := s.svc.ListOrders(s.ctx, OrderFilter{UserID: s.seller.ID, Role: RoleSeller, Status: models.OrderPaid, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(first.ID, paid[0].ID)

	none, _, err := s.svc.ListOrders(s.ctx, OrderFilter{UserID: s.buyer.ID, Role: RoleSeller, Limit: 10})
	s.Require().NoError(err)
	s.Empty(none)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
