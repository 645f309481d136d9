package models

import "time"

// AffiliateTier sets the commission rate for affiliates with at least MinSales
// delivered referred orders. RateBps is in basis points (500 = 5%).
type AffiliateTier struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"not null;uniqueIndex" json:"name"`
	MinSales int    `gorm:"not null" json:"min_sales"`
	RateBps  int    `gorm:"not null" json:"rate_bps"`
}

func (AffiliateTier) TableName() string {
	return "affiliate_tiers"
}

type AffiliateLink struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Code      string    `gorm:"not null;uniqueIndex" json:"code"`
	ProductID *string   `json:"product_id,omitempty"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

func (AffiliateLink) TableName() string {
	return "affiliate_links"
}

const (
	CommissionPending = "pending"
	CommissionPaid    = "paid"
)

type AffiliateCommission struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	LinkID          string     `gorm:"not null;index" json:"link_id"`
	AffiliateUserID string     `gorm:"not null;index" json:"affiliate_user_id"`
	OrderID         string     `gorm:"not null;uniqueIndex" json:"order_id"`
	OrderCents      int64      `json:"order_cents"`
	AmountCents     int64      `json:"amount_cents"`
	RateBps         int        `json:"rate_bps"`
	Tier            string     `json:"tier"`
	Status          string     `gorm:"not null;index" json:"status"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (AffiliateCommission) TableName() string {
	return "affiliate_commissions"
}
