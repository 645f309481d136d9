package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is an item listed in a seller's store
type Product struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	SellerID    string `gorm:"not null;index" json:"seller_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	PriceCents  int64  `gorm:"not null" json:"price_cents"`
	// CoinPrice is the price in wallet coins; 0 means coins are not accepted
	CoinPrice int64  `json:"coin_price"`
	Stock     int    `gorm:"not null" json:"stock"`
	ImageURL  string `json:"image_url"`
	Active    bool   `gorm:"index" json:"active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

const (
	PaymentCard  = "card"
	PaymentCoins = "coins"
)

// Order is a purchase from a single seller
type Order struct {
	ID              string      `gorm:"primaryKey;type:uuid" json:"id"`
	BuyerID         string      `gorm:"not null;index" json:"buyer_id"`
	SellerID        string      `gorm:"not null;index" json:"seller_id"`
	Status          OrderStatus `gorm:"not null;index" json:"status"`
	PaymentMethod   string      `gorm:"not null" json:"payment_method"`
	TotalCents      int64       `json:"total_cents"`
	TotalCoins      int64       `json:"total_coins"`
	AffiliateCode   *string     `gorm:"index" json:"affiliate_code,omitempty"`
	ShippingAddress string      `gorm:"type:text" json:"shipping_address"`
	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	OrderID        string `gorm:"not null;index" json:"order_id"`
	ProductID      string `gorm:"not null;index" json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `gorm:"not null" json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitCoins      int64  `json:"unit_coins"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
