package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/metrics"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/realtime"
	"github.com/reelhub/backend/internal/wallet"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// transitions is the order status machine
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending: {models.OrderPaid, models.OrderCancelled},
	models.OrderPaid:    {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped: {models.OrderDelivered},
}

// CanTransition reports whether the machine allows from -> to
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Role is the side of an order an actor is on
type Role int

const (
	RoleNone Role = iota
	RoleBuyer
	RoleSeller
)

func roleOf(order *models.Order, userID string) Role {
	switch userID {
	case order.SellerID:
		return RoleSeller
	case order.BuyerID:
		return RoleBuyer
	}
	return RoleNone
}

// allowedBy reports whether role may move an order to status. Buyers confirm
// card payment; sellers fulfil; either side may cancel.
func allowedBy(role Role, status models.OrderStatus) bool {
	switch status {
	case models.OrderPaid:
		return role == RoleBuyer
	case models.OrderShipped, models.OrderDelivered:
		return role == RoleSeller
	case models.OrderCancelled:
		return role == RoleBuyer || role == RoleSeller
	}
	return false
}

type OrderItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type PlaceOrderInput struct {
	Items           []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string           `json:"payment_method" binding:"required,oneof=card coins"`
	AffiliateCode   string           `json:"affiliate_code"`
	ShippingAddress string           `json:"shipping_address" binding:"max=500"`
}

// quantities merges repeated lines and validates them
func quantities(items []OrderItemInput) (map[string]int, []string, error) {
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	qty := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: every item needs a product and a positive quantity", ErrInvalidOrder)
		}
		qty[item.ProductID] += item.Quantity
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	// Fixed lock order for the stock updates
	sort.Strings(ids)
	return qty, ids, nil
}

// PlaceOrder reserves stock and creates the order. Coin orders are debited
// and marked paid immediately; card orders stay pending until confirmed.
func (s *Service) PlaceOrder(ctx context.Context, buyerID string, in PlaceOrderInput) (*models.Order, error) {
	qty, ids, err := quantities(in.Items)
	if err != nil {
		return nil, err
	}
	if in.PaymentMethod != models.PaymentCard && in.PaymentMethod != models.PaymentCoins {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidOrder, in.PaymentMethod)
	}
	if in.PaymentMethod == models.PaymentCoins && s.deps.Ledger == nil {
		return nil, ErrCoinsNotAccepted
	}

	var order *models.Order
	var debit *models.WalletTransaction

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []models.Product
		if err := tx.Where("id IN ? AND active = ?", ids, true).Find(&products).Error; err != nil {
			return err
		}
		if len(products) != len(ids) {
			return ErrProductNotFound
		}
		byID := make(map[string]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		sellerID := products[0].SellerID
		for _, p := range products {
			if p.SellerID != sellerID {
				return ErrMixedSellers
			}
			if in.PaymentMethod == models.PaymentCoins && p.CoinPrice <= 0 {
				return fmt.Errorf("%w: %s", ErrCoinsNotAccepted, p.Name)
			}
		}
		if sellerID == buyerID {
			return ErrOwnProduct
		}

		order = &models.Order{
			BuyerID:         buyerID,
			SellerID:        sellerID,
			Status:          models.OrderPending,
			PaymentMethod:   in.PaymentMethod,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		}

		if code := strings.TrimSpace(in.AffiliateCode); code != "" {
			if s.deps.Referrals == nil {
				return fmt.Errorf("%w: affiliate codes are not accepted", ErrInvalidOrder)
			}
			normalized, err := s.deps.Referrals.ValidateCodeTx(tx, code, buyerID)
			if err != nil {
				return err
			}
			order.AffiliateCode = &normalized
		}

		for _, id := range ids {
			p := byID[id]
			n := qty[id]
			res := tx.Model(&models.Product{}).Where("id = ? AND stock >= ?", id, n).
				UpdateColumn("stock", gorm.Expr("stock - ?", n))
			if res.Error != nil {
				return fmt.Errorf("failed to reserve stock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return &StockError{ProductID: id, ProductName: p.Name}
			}

			order.Items = append(order.Items, models.OrderItem{
				ProductID:      id,
				ProductName:    p.Name,
				Quantity:       n,
				UnitPriceCents: p.PriceCents,
				UnitCoins:      p.CoinPrice,
			})
			order.TotalCents += p.PriceCents * int64(n)
			if in.PaymentMethod == models.PaymentCoins {
				order.TotalCoins += p.CoinPrice * int64(n)
			}
		}

		if in.PaymentMethod == models.PaymentCoins {
			now := s.now().UTC()
			order.Status = models.OrderPaid
			order.PaidAt = &now
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if in.PaymentMethod == models.PaymentCoins {
			var err error
			debit, err = s.deps.Ledger.DebitTx(tx, buyerID, order.TotalCoins, wallet.ReasonOrderPayment, order.ID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	wallet.RecordMetrics(debit)
	metrics.Get().OrdersTotal.WithLabelValues(string(order.Status), order.PaymentMethod).Inc()
	realtime.PublishRow(s.deps.Publisher, "orders", realtime.EventInsert, order, nil)
	s.notifyStatus(ctx, order, buyerID, order.SellerID, "You have a new order")
	logger.Log.Info("Order placed",
		logger.WithOrderID(order.ID),
		logger.WithUserID(buyerID),
		zap.String("payment_method", order.PaymentMethod),
		zap.Int64("total_cents", order.TotalCents))
	return order, nil
}

// Transition moves an order through the status machine on behalf of actorID
func (s *Service) Transition(ctx context.Context, actorID, orderID string, to models.OrderStatus) (*models.Order, error) {
	var order, old models.Order
	var refund *models.WalletTransaction
	var commission *models.AffiliateCommission

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Items").First(&order, "id = ?", orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		role := roleOf(&order, actorID)
		if role == RoleNone {
			return ErrOrderNotFound
		}
		if !CanTransition(order.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
		}
		if !allowedBy(role, to) {
			return ErrTransitionNotAllowed
		}
		old = order

		now := s.now().UTC()
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.OrderPaid:
			updates["paid_at"] = now
			order.PaidAt = &now
		case models.OrderShipped:
			updates["shipped_at"] = now
			order.ShippedAt = &now
		case models.OrderDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		case models.OrderCancelled:
			updates["cancelled_at"] = now
			order.CancelledAt = &now
		}

		res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, old.Status).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		order.Status = to

		switch to {
		case models.OrderCancelled:
			if err := s.restoreStockTx(tx, &order); err != nil {
				return err
			}
			if order.PaymentMethod == models.PaymentCoins && old.Status == models.OrderPaid && order.TotalCoins > 0 {
				refund, err = s.deps.Ledger.CreditTx(tx, order.BuyerID, order.TotalCoins, wallet.ReasonOrderRefund, order.ID)
				if err != nil {
					return err
				}
			}
		case models.OrderDelivered:
			if s.deps.Referrals != nil {
				commission, err = s.deps.Referrals.CommissionTx(tx, &order)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	wallet.RecordMetrics(refund)
	metrics.Get().OrdersTotal.WithLabelValues(string(to), order.PaymentMethod).Inc()
	realtime.PublishRow(s.deps.Publisher, "orders", realtime.EventUpdate, &order, &old)
	if commission != nil && s.deps.Referrals != nil {
		s.deps.Referrals.CommissionRecorded(ctx, commission)
	}

	recipient := order.BuyerID
	if actorID == order.BuyerID {
		recipient = order.SellerID
	}
	s.notifyStatus(ctx, &order, actorID, recipient, fmt.Sprintf("Order %s is now %s", shortID(order.ID), to))

	logger.Log.Info("Order status changed",
		logger.WithOrderID(order.ID),
		logger.WithUserID(actorID),
		zap.String("from", string(old.Status)),
		zap.String("to", string(to)))
	return &order, nil
}

func (s *Service) restoreStockTx(tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		err := tx.Unscoped().Model(&models.Product{}).Where("id = ?", item.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}
	return nil
}

func (s *Service) notifyStatus(ctx context.Context, order *models.Order, actorID, recipient, message string) {
	if s.deps.Notifier == nil {
		return
	}
	_, err := s.deps.Notifier.Notify(ctx, notify.Input{
		UserID:     recipient,
		ActorID:    actorID,
		Kind:       models.NotificationOrderStatus,
		TargetType: "order",
		TargetID:   order.ID,
		Message:    message,
	})
	if err != nil {
		logger.Log.Warn("Failed to notify order status", logger.WithOrderID(order.ID), zap.Error(err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// GetOrder returns an order to its buyer or seller
func (s *Service) GetOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if roleOf(&order, userID) == RoleNone {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

// OrderFilter lists orders from one side
type OrderFilter struct {
	UserID string
	Role   Role
	Status models.OrderStatus
	Limit  int
	Offset int
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{})
	switch f.Role {
	case RoleSeller:
		q = q.Where("seller_id = ?", f.UserID)
	case RoleBuyer:
		q = q.Where("buyer_id = ?", f.UserID)
	default:
		return nil, 0, fmt.Errorf("%w: unknown role", ErrInvalidOrder)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	err := q.Preload("Items").Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&orders).Error
	return orders, total, err
}
