package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/storage"
	"github.com/reelhub/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProductInput struct {
	Name        string `json:"name" binding:"required,min=1,max=120"`
	Description string `json:"description" binding:"max=5000"`
	PriceCents  int64  `json:"price_cents" binding:"required,gt=0"`
	CoinPrice   int64  `json:"coin_price" binding:"min=0"`
	Stock       int    `json:"stock" binding:"min=0"`
	ImageURL    string `json:"image_url"`
}

// ProductPatch updates only the fields that are set
type ProductPatch struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=120"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	PriceCents  *int64  `json:"price_cents" binding:"omitempty,gt=0"`
	CoinPrice   *int64  `json:"coin_price" binding:"omitempty,min=0"`
	Stock       *int    `json:"stock" binding:"omitempty,min=0"`
	Active      *bool   `json:"active"`
}

func (s *Service) CreateProduct(ctx context.Context, sellerID string, in ProductInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.PriceCents <= 0 || in.CoinPrice < 0 || in.Stock < 0 {
		return nil, fmt.Errorf("%w: price and stock must not be negative", ErrInvalidProduct)
	}

	product := &models.Product{
		SellerID:    sellerID,
		Name:        name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		CoinPrice:   in.CoinPrice,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	logger.Log.Info("Product created", logger.WithUserID(sellerID), zap.String("product_id", product.ID))
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductFilter narrows ListProducts. Inactive products are only listed for
// their own seller.
type ProductFilter struct {
	SellerID string
	ViewerID string
	Query    string
	Limit    int
	Offset   int
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.SellerID == "" || f.SellerID != f.ViewerID {
		q = q.Where("active = ?", true)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []models.Product
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&products).Error
	return products, total, err
}

func (s *Service) ownedProduct(ctx context.Context, sellerID, id string) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, ErrNotSeller
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sellerID, id string, patch ProductPatch) (*models.Product, error) {
	product, err := s.ownedProduct(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
		}
		updates["name"] = name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.PriceCents != nil {
		if *patch.PriceCents <= 0 {
			return nil, fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
		}
		updates["price_cents"] = *patch.PriceCents
	}
	if patch.CoinPrice != nil {
		if *patch.CoinPrice < 0 {
			return nil, fmt.Errorf("%w: coin price must not be negative", ErrInvalidProduct)
		}
		updates["coin_price"] = *patch.CoinPrice
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
		}
		updates["stock"] = *patch.Stock
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if len(updates) == 0 {
		return product, nil
	}

	if err := s.db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct soft-deletes the listing; existing orders keep their items
func (s *Service) DeleteProduct(ctx context.Context, sellerID, id string) error {
	product, err := s.ownedProduct(ctx, sellerID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(product).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.deleteImage(ctx, product.ImageURL)
	return nil
}

// UploadProductImage stores a new image and replaces the old one
func (s *Service) UploadProductImage(ctx context.Context, sellerID, id, filename string, body io.Reader) (*models.Product, error) {
	if s.deps.Storage == nil {
		return nil, errors.New("storage is not configured")
	}
	if !util.IsValidImageFile(filename) {
		return nil, fmt.Errorf("%w: unsupported image %q", ErrInvalidProduct, filename)
	}
	product, err := s.ownedProduct(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	res, err := s.deps.Storage.Upload(ctx, storage.KindProduct, sellerID, filename, body)
	if err != nil {
		return nil, err
	}
	previous := product.ImageURL
	if err := s.db.WithContext(ctx).Model(product).Update("image_url", res.URL).Error; err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}
	product.ImageURL = res.URL
	s.deleteImage(ctx, previous)
	return product, nil
}

func (s *Service) deleteImage(ctx context.Context, url string) {
	if s.deps.Storage == nil || url == "" {
		return
	}
	key, ok := s.deps.Storage.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.deps.Storage.DeleteFile(ctx, key); err != nil {
		logger.Log.Warn("Failed to delete product image", zap.String("key", key), zap.Error(err))
	}
}
