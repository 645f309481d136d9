// Package store is the in-app shop: seller products and single-seller orders
// paid by card or wallet coins.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/storage"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotSeller            = errors.New("only the seller can change this product")
	ErrInvalidProduct       = errors.New("invalid product")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrOutOfStock           = errors.New("product is out of stock")
	ErrMixedSellers         = errors.New("an order can only contain products from one seller")
	ErrOwnProduct           = errors.New("cannot buy your own product")
	ErrCoinsNotAccepted     = errors.New("product cannot be paid with coins")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrTransitionNotAllowed = errors.New("not allowed to move this order to that status")
)

// StockError names the product that ran out
type StockError struct {
	ProductID   string
	ProductName string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: %s", ErrOutOfStock, e.ProductName)
}

func (e *StockError) Unwrap() error { return ErrOutOfStock }

// Ledger moves coins inside order transactions; wallet.Service satisfies it
type Ledger interface {
	DebitTx(tx *gorm.DB, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error)
	CreditTx(tx *gorm.DB, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error)
}

// Referrals validates affiliate codes and records commissions;
// affiliate.Service satisfies it
type Referrals interface {
	ValidateCodeTx(tx *gorm.DB, code, buyerID string) (string, error)
	CommissionTx(tx *gorm.DB, order *models.Order) (*models.AffiliateCommission, error)
	CommissionRecorded(ctx context.Context, c *models.AffiliateCommission)
}

// Deps are the collaborators of the store. Ledger is required for coin
// payments and Referrals for affiliate codes; the rest may be nil.
type Deps struct {
	Storage   storage.Uploader
	Ledger    Ledger
	Referrals Referrals
	Notifier  notify.Notifier
	Publisher realtime.Publisher
}

type Service struct {
	db   *gorm.DB
	deps Deps
	now  func() time.Time
}

func NewService(db *gorm.DB, deps Deps) *Service {
	if deps.Publisher == nil {
		deps.Publisher = realtime.NopPublisher{}
	}
	return &Service{db: db, deps: deps, now: time.Now}
}
