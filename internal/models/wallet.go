package models

import "time"

// Wallet holds a user's coin balance. Every balance change has a matching
// WalletTransaction row.
type Wallet struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance     int64      `gorm:"not null" json:"balance"`
	LastCheckIn *time.Time `json:"last_check_in,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

type WalletTransaction struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	WalletID     string    `gorm:"not null;index" json:"wallet_id"`
	UserID       string    `gorm:"not null;index" json:"user_id"`
	Delta        int64     `gorm:"not null" json:"delta"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	Reason       string    `gorm:"not null;index" json:"reason"`
	Reference    string    `gorm:"index" json:"reference,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// Reward is a catalog item purchasable with coins
type Reward struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	CoinCost    int64  `gorm:"not null" json:"coin_cost"`
	// Stock is nil for unlimited rewards
	Stock     *int      `json:"stock,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Reward) TableName() string {
	return "rewards"
}

type RewardPurchase struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	RewardID  string    `gorm:"not null;index" json:"reward_id"`
	CoinCost  int64     `gorm:"not null" json:"coin_cost"`
	CreatedAt time.Time `json:"created_at"`
}

func (RewardPurchase) TableName() string {
	return "reward_purchases"
}
