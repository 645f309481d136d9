// Package affiliate runs referral links, tiered commission rates and payouts
// into the wallet.
package affiliate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidCode     = errors.New("affiliate code not found")
	ErrSelfReferral    = errors.New("cannot use your own affiliate code")
	ErrNothingToPay    = errors.New("no pending commission")
	ErrProductNotFound = errors.New("product not found")
	ErrNoMatchingTier  = errors.New("no affiliate tier matches")
)

// CoinsPerCent converts commission cents to wallet coins on payout
const CoinsPerCent = 1

// DefaultTiers are seeded by EnsureDefaultTiers
var DefaultTiers = []models.AffiliateTier{
	{Name: "bronze", MinSales: 0, RateBps: 500},
	{Name: "silver", MinSales: 10, RateBps: 800},
	{Name: "gold", MinSales: 50, RateBps: 1200},
}

// Ledger credits payouts; wallet.Service satisfies it
type Ledger interface {
	CreditTx(tx *gorm.DB, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error)
}

// ReasonPayout is the wallet reason for commission payouts
const ReasonPayout = "affiliate_commission"

type Service struct {
	db       *gorm.DB
	ledger   Ledger
	notifier notify.Notifier
	now      func() time.Time
}

// NewService creates the affiliate service. notifier may be nil.
func NewService(db *gorm.DB, ledger Ledger, notifier notify.Notifier) *Service {
	return &Service{db: db, ledger: ledger, notifier: notifier, now: time.Now}
}

// EnsureDefaultTiers inserts the default tiers that are missing by name
func (s *Service) EnsureDefaultTiers(ctx context.Context) error {
	for _, tier := range DefaultTiers {
		t := tier
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&t).Error
		if err != nil {
			return fmt.Errorf("failed to seed tier %s: %w", t.Name, err)
		}
	}
	return nil
}

// Tiers returns every tier ordered by threshold
func (s *Service) Tiers(ctx context.Context) ([]models.AffiliateTier, error) {
	return s.tiersTx(s.db.WithContext(ctx))
}

// tiersTx falls back to DefaultTiers while the table is empty
func (s *Service) tiersTx(tx *gorm.DB) ([]models.AffiliateTier, error) {
	var tiers []models.AffiliateTier
	if err := tx.Order("min_sales ASC").Find(&tiers).Error; err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return append([]models.AffiliateTier(nil), DefaultTiers...), nil
	}
	return tiers, nil
}

// TierFor picks the highest tier whose threshold sales reaches. tiers must be
// ordered by MinSales.
func TierFor(tiers []models.AffiliateTier, sales int64) (models.AffiliateTier, bool) {
	idx := sort.Search(len(tiers), func(i int) bool { return int64(tiers[i].MinSales) > sales })
	if idx == 0 {
		return models.AffiliateTier{}, false
	}
	return tiers[idx-1], true
}

// CommissionCents applies a basis-point rate, rounding down
func CommissionCents(orderCents int64, rateBps int) int64 {
	return orderCents * int64(rateBps) / 10000
}

// CreateLink issues a new referral code, optionally tied to one product
func (s *Service) CreateLink(ctx context.Context, userID string, productID *string) (*models.AffiliateLink, error) {
	if productID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", *productID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrProductNotFound
		}
	}

	link := &models.AffiliateLink{UserID: userID, Code: newCode(), ProductID: productID}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create affiliate link: %w", err)
	}
	logger.Log.Info("Affiliate link created", logger.WithUserID(userID), zap.String("code", link.Code))
	return link, nil
}

func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (s *Service) Links(ctx context.Context, userID string) ([]models.AffiliateLink, error) {
	var links []models.AffiliateLink
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&links).Error
	return links, err
}

// RecordClick resolves a code and counts the visit
func (s *Service) RecordClick(ctx context.Context, code string) (*models.AffiliateLink, error) {
	link, err := s.linkTx(s.db.WithContext(ctx), code)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(link).UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
		return nil, err
	}
	link.Clicks++
	return link, nil
}

func (s *Service) linkTx(tx *gorm.DB, code string) (*models.AffiliateLink, error) {
	var link models.AffiliateLink
	err := tx.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ValidateCodeTx checks a code an order is placed with. Returns the
// normalized code.
func (s *Service) ValidateCodeTx(tx *gorm.DB, code, buyerID string) (string, error) {
	link, err := s.linkTx(tx, code)
	if err != nil {
		return "", err
	}
	if link.UserID == buyerID {
		return "", ErrSelfReferral
	}
	return link.Code, nil
}

// CommissionTx records the commission for a delivered order. It returns nil
// when the order carries no code, and the existing row when one was already
// recorded.
func (s *Service) CommissionTx(tx *gorm.DB, order *models.Order) (*models.AffiliateCommission, error) {
	if order.AffiliateCode == nil || *order.AffiliateCode == "" {
		return nil, nil
	}
	link, err := s.linkTx(tx, *order.AffiliateCode)
	if errors.Is(err, ErrInvalidCode) {
		logger.Log.Warn("Order references a missing affiliate code", logger.WithOrderID(order.ID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var existing models.AffiliateCommission
	err = tx.Where("order_id = ?", order.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sales, err := s.salesTx(tx, link.UserID)
	if err != nil {
		return nil, err
	}
	tiers, err := s.tiersTx(tx)
	if err != nil {
		return nil, err
	}
	tier, ok := TierFor(tiers, sales)
	if !ok {
		return nil, ErrNoMatchingTier
	}

	commission := &models.AffiliateCommission{
		LinkID:          link.ID,
		AffiliateUserID: link.UserID,
		OrderID:         order.ID,
		OrderCents:      order.TotalCents,
		AmountCents:     CommissionCents(order.TotalCents, tier.RateBps),
		RateBps:         tier.RateBps,
		Tier:            tier.Name,
		Status:          models.CommissionPending,
	}
	if err := tx.Create(commission).Error; err != nil {
		return nil, fmt.Errorf("failed to record commission: %w", err)
	}
	return commission, nil
}

// CommissionRecorded runs after the order transaction commits
func (s *Service) CommissionRecorded(ctx context.Context, c *models.AffiliateCommission) {
	metrics.Get().CommissionsTotal.WithLabelValues(c.Tier, c.Status).Inc()
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.Notify(ctx, notify.Input{
		UserID:     c.AffiliateUserID,
		Kind:       models.NotificationCommission,
		TargetType: "order",
		TargetID:   c.OrderID,
		Message:    fmt.Sprintf("You earned a %s commission of %d cents", c.Tier, c.AmountCents),
	})
	if err != nil {
		logger.Log.Warn("Failed to notify commission", logger.WithUserID(c.AffiliateUserID), zap.Error(err))
	}
}

// salesTx counts delivered referred orders, which is the number of
// commission rows already recorded
func (s *Service) salesTx(tx *gorm.DB, userID string) (int64, error) {
	var count int64
	err := tx.Model(&models.AffiliateCommission{}).Where("affiliate_user_id = ?", userID).Count(&count).Error
	return count, err
}

// Payout marks every pending commission paid and credits the total as coins
func (s *Service) Payout(ctx context.Context, userID string) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	var paid []models.AffiliateCommission

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("affiliate_user_id = ? AND status = ?", userID, models.CommissionPending).
			Find(&paid).Error; err != nil {
			return err
		}
		var total int64
		ids := make([]string, 0, len(paid))
		for _, c := range paid {
			total += c.AmountCents
			ids = append(ids, c.ID)
		}
		if total <= 0 {
			return ErrNothingToPay
		}

		now := s.now().UTC()
		if err := tx.Model(&models.AffiliateCommission{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": models.CommissionPaid, "paid_at": now}).Error; err != nil {
			return err
		}

		var err error
		entry, err = s.ledger.CreditTx(tx, userID, total*CoinsPerCent, ReasonPayout, fmt.Sprintf("payout:%d", now.Unix()))
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, c := range paid {
		metrics.Get().CommissionsTotal.WithLabelValues(c.Tier, models.CommissionPaid).Inc()
	}
	logger.Log.Info("Affiliate commission paid out", logger.WithUserID(userID),
		zap.Int("commissions", len(paid)), zap.Int64("coins", entry.Delta))
	return entry, nil
}

// Commissions lists a user's ledger newest first
func (s *Service) Commissions(ctx context.Context, userID string, limit, offset int) ([]models.AffiliateCommission, error) {
	var rows []models.AffiliateCommission
	err := s.db.WithContext(ctx).Where("affiliate_user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, err
}

// Summary is the affiliate dashboard
type Summary struct {
	Tier         models.AffiliateTier  `json:"tier"`
	NextTier     *models.AffiliateTier `json:"next_tier,omitempty"`
	Sales        int64                 `json:"sales"`
	Links        int64                 `json:"links"`
	Clicks       int64                 `json:"clicks"`
	PendingCents int64                 `json:"pending_cents"`
	PaidCents    int64                 `json:"paid_cents"`
}

func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	db := s.db.WithContext(ctx)

	sales, err := s.salesTx(db, userID)
	if err != nil {
		return nil, err
	}
	tiers, err := s.tiersTx(db)
	if err != nil {
		return nil, err
	}

	out := &Summary{Sales: sales}
	if tier, ok := TierFor(tiers, sales); ok {
		out.Tier = tier
	}
	for i := range tiers {
		if int64(tiers[i].MinSales) > sales {
			next := tiers[i]
			out.NextTier = &next
			break
		}
	}

	var links struct {
		Count  int64
		Clicks int64
	}
	if err := db.Model(&models.AffiliateLink{}).Where("user_id = ?", userID).
		Select("COUNT(*) AS count, COALESCE(SUM(clicks), 0) AS clicks").Scan(&links).Error; err != nil {
		return nil, err
	}
	out.Links, out.Clicks = links.Count, links.Clicks

	var totals []struct {
		Status string
		Cents  int64
	}
	if err := db.Model(&models.AffiliateCommission{}).Where("affiliate_user_id = ?", userID).
		Select("status, COALESCE(SUM(amount_cents), 0) AS cents").Group("status").Scan(&totals).Error; err != nil {
		return nil, err
	}
	for _, t := range totals {
		switch t.Status {
		case models.CommissionPending:
			out.PendingCents = t.Cents
		case models.CommissionPaid:
			out.PaidCents = t.Cents
		}
	}
	return out, nil
}
