// Package wallet keeps the coin ledger: balances, append-only transactions,
// rewards and the platform actions that award coins.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientFunds = errors.New("insufficient coins")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSelfTransfer      = errors.New("cannot transfer coins to yourself")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrRewardNotFound    = errors.New("reward not found")
	ErrRewardOutOfStock  = errors.New("reward is out of stock")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
)

// Transaction reasons
const (
	ReasonAward          = "award"
	ReasonCheckIn        = "check_in"
	ReasonWatchMilestone = "watch_milestone"
	ReasonTransferIn     = "transfer_in"
	ReasonTransferOut    = "transfer_out"
	ReasonReward         = "reward_purchase"
	ReasonOrderPayment   = "order_payment"
	ReasonOrderRefund    = "order_refund"
	ReasonCommission     = "affiliate_commission"
)

const (
	CheckInCoins        int64 = 10
	WatchMilestoneCoins int64 = 5
)

// FundsError reports the balance a debit ran into
type FundsError struct {
	Balance  int64
	Required int64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("%s: balance %d, required %d", ErrInsufficientFunds, e.Balance, e.Required)
}

func (e *FundsError) Unwrap() error { return ErrInsufficientFunds }

type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
}

// NewService creates the wallet service. notifier may be nil.
func NewService(db *gorm.DB, notifier notify.Notifier) *Service {
	return &Service{db: db, notifier: notifier, now: time.Now}
}

// GetOrCreate returns the user's wallet, creating an empty one on first use
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*models.Wallet, error) {
	return s.walletTx(s.db.WithContext(ctx), userID)
}

func (s *Service) walletTx(tx *gorm.DB, userID string) (*models.Wallet, error) {
	err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&models.Wallet{UserID: userID}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	var w models.Wallet
	if err := tx.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &w, nil
}

// CreditTx adds coins inside an existing transaction
func (s *Service) CreditTx(tx *gorm.DB, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.applyTx(tx, userID, amount, reason, reference)
}

// DebitTx removes coins inside an existing transaction. The balance never
// goes negative: the guarded update fails with a FundsError instead.
func (s *Service) DebitTx(tx *gorm.DB, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.applyTx(tx, userID, -amount, reason, reference)
}

func (s *Service) applyTx(tx *gorm.DB, userID string, delta int64, reason, reference string) (*models.WalletTransaction, error) {
	w, err := s.walletTx(tx, userID)
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND balance + ? >= 0", w.ID, delta).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &FundsError{Balance: w.Balance, Required: -delta}
	}

	if err := tx.Select("balance").First(w, "id = ?", w.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload wallet: %w", err)
	}

	entry := &models.WalletTransaction{
		WalletID:     w.ID,
		UserID:       userID,
		Delta:        delta,
		BalanceAfter: w.Balance,
		Reason:       reason,
		Reference:    reference,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return entry, nil
}

// RecordMetrics counts committed ledger entries
func RecordMetrics(entries ...*models.WalletTransaction) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		direction, amount := "credit", e.Delta
		if amount < 0 {
			direction, amount = "debit", -amount
		}
		metrics.Get().WalletCoinsTotal.WithLabelValues(direction, e.Reason).Add(float64(amount))
	}
}

// AwardCoins credits a user and notifies them
func (s *Service) AwardCoins(ctx context.Context, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(tx, userID, amount, reason, reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	RecordMetrics(entry)
	s.notifyCoins(ctx, userID, "", fmt.Sprintf("You received %d coins", amount), entry)
	return entry, nil
}

// Spend debits a user
func (s *Service) Spend(ctx context.Context, userID string, amount int64, reason, reference string) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(tx, userID, amount, reason, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	RecordMetrics(entry)
	return entry, nil
}

// TransferInput moves coins between users. Code is required when the sender
// has two-factor enabled.
type TransferInput struct {
	ToUserID string `json:"to_user_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Code     string `json:"code"`
}

// Transfer debits the sender and credits the recipient atomically
func (s *Service) Transfer(ctx context.Context, fromID string, in TransferInput) (*models.WalletTransaction, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromID == in.ToUserID {
		return nil, ErrSelfTransfer
	}
	if err := s.requireCode(ctx, fromID, in.Code); err != nil {
		return nil, err
	}

	var out, incoming *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", in.ToUserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrRecipientNotFound
		}

		var err error
		if out, err = s.DebitTx(tx, fromID, in.Amount, ReasonTransferOut, in.ToUserID); err != nil {
			return err
		}
		incoming, err = s.CreditTx(tx, in.ToUserID, in.Amount, ReasonTransferIn, fromID)
		return err
	})
	if err != nil {
		return nil, err
	}

	RecordMetrics(out, incoming)
	logger.Log.Info("Coins transferred", logger.WithUserID(fromID),
		zap.String("to_user_id", in.ToUserID), zap.Int64("amount", in.Amount))
	s.notifyCoins(ctx, in.ToUserID, fromID, fmt.Sprintf("You received %d coins", in.Amount), incoming)
	return out, nil
}

// History lists ledger entries newest first
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []models.WalletTransaction
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// CheckIn awards the daily coins once per UTC day
func (s *Service) CheckIn(ctx context.Context, userID string) (*models.WalletTransaction, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var entry *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.walletTx(tx, userID)
		if err != nil {
			return err
		}
		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND (last_check_in IS NULL OR last_check_in < ?)", w.ID, dayStart).
			UpdateColumn("last_check_in", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCheckedIn
		}
		entry, err = s.CreditTx(tx, userID, CheckInCoins, ReasonCheckIn, dayStart.Format("2006-01-02"))
		return err
	})
	if err != nil {
		return nil, err
	}
	RecordMetrics(entry)
	return entry, nil
}

// AwardWatchMilestone credits a completed view, once per user and video.
// The wallet row lock serializes concurrent completions of the same user;
// the partial unique index on wallet_transactions backs it up.
func (s *Service) AwardWatchMilestone(ctx context.Context, userID, videoID string) error {
	var entry *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.walletTx(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&models.Wallet{}, "id = ?", w.ID).Error; err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		var count int64
		if err := tx.Model(&models.WalletTransaction{}).
			Where("user_id = ? AND reason = ? AND reference = ?", userID, ReasonWatchMilestone, videoID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		entry, err = s.CreditTx(tx, userID, WatchMilestoneCoins, ReasonWatchMilestone, videoID)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	if err != nil {
		return err
	}
	RecordMetrics(entry)
	return nil
}

func (s *Service) notifyCoins(ctx context.Context, userID, actorID, message string, entry *models.WalletTransaction) {
	if s.notifier == nil || entry == nil {
		return
	}
	_, err := s.notifier.Notify(ctx, notify.Input{
		UserID:     userID,
		ActorID:    actorID,
		Kind:       models.NotificationCoinsReceived,
		TargetType: "wallet_transaction",
		TargetID:   entry.ID,
		Message:    message,
	})
	if err != nil {
		logger.Log.Warn("Failed to notify coin receipt", logger.WithUserID(userID), zap.Error(err))
	}
}
