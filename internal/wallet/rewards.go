package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rewards lists the active catalog, cheapest first
func (s *Service) Rewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	err := s.db.WithContext(ctx).Where("active = ?", true).Order("coin_cost ASC").Find(&rewards).Error
	return rewards, err
}

// RewardInput is the admin payload for a catalog entry
type RewardInput struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	CoinCost    int64  `json:"coin_cost" binding:"required,gt=0"`
	Stock       *int   `json:"stock"`
}

func (s *Service) CreateReward(ctx context.Context, in RewardInput) (*models.Reward, error) {
	if in.CoinCost <= 0 {
		return nil, ErrInvalidAmount
	}
	reward := &models.Reward{
		Name:        in.Name,
		Description: in.Description,
		CoinCost:    in.CoinCost,
		Stock:       in.Stock,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(reward).Error; err != nil {
		return nil, fmt.Errorf("failed to create reward: %w", err)
	}
	return reward, nil
}

// PurchaseReward spends the reward's coin cost and takes one unit of stock
func (s *Service) PurchaseReward(ctx context.Context, userID, rewardID string) (*models.RewardPurchase, error) {
	var purchase *models.RewardPurchase
	var entry *models.WalletTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		err := tx.Where("id = ? AND active = ?", rewardID, true).First(&reward).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRewardNotFound
		} else if err != nil {
			return err
		}

		if reward.Stock != nil {
			res := tx.Model(&models.Reward{}).Where("id = ? AND stock > 0", reward.ID).
				UpdateColumn("stock", gorm.Expr("stock - 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrRewardOutOfStock
			}
		}

		purchase = &models.RewardPurchase{UserID: userID, RewardID: reward.ID, CoinCost: reward.CoinCost}
		if err := tx.Create(purchase).Error; err != nil {
			return fmt.Errorf("failed to record purchase: %w", err)
		}

		entry, err = s.DebitTx(tx, userID, reward.CoinCost, ReasonReward, purchase.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	RecordMetrics(entry)
	logger.Log.Info("Reward purchased", logger.WithUserID(userID), zap.String("reward_id", rewardID))
	return purchase, nil
}
