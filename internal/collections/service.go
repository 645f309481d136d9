// Package collections manages user-curated video collections, including the
// default "Saved" collection bookmarks land in.
package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrVideoNotFound       = errors.New("video not found")
	ErrNotOwner            = errors.New("collection belongs to another user")
	ErrAlreadyInCollection = errors.New("video is already in this collection")
	ErrDefaultCollection   = errors.New("the default collection cannot be deleted")
	ErrInvalidName         = errors.New("collection name is required")
)

var _ realtime.Bookmarker = (*Service)(nil)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateInput struct {
	Name        string `json:"name" binding:"required,min=1,max=80"`
	Description string `json:"description" binding:"max=500"`
	IsPrivate   bool   `json:"is_private"`
}

type UpdateInput struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=80"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	IsPrivate   *bool   `json:"is_private"`
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Collection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	c := &models.Collection{
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		IsPrivate:   in.IsPrivate,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return c, nil
}

// List returns ownerID's collections; private ones only when the viewer is
// the owner.
func (s *Service) List(ctx context.Context, ownerID, viewerID string) ([]models.Collection, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if ownerID != viewerID {
		query = query.Where("is_private = ?", false)
	}
	var out []models.Collection
	err := query.Order("is_default DESC, created_at").Find(&out).Error
	return out, err
}

// Get loads a collection with its items, newest first
func (s *Service) Get(ctx context.Context, viewerID, id string) (*models.Collection, error) {
	c, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if c.IsPrivate && c.UserID != viewerID {
		return nil, ErrCollectionNotFound
	}

	err = s.db.WithContext(ctx).
		Preload("Video").
		Where("collection_id = ?", c.ID).
		Order("created_at DESC").
		Find(&c.Items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*models.Collection, error) {
	c, err := s.owned(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update collection: %w", err)
		}
	}
	return s.load(ctx, s.db, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	c, err := s.owned(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if c.IsDefault {
		return ErrDefaultCollection
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", c.ID).Delete(&models.CollectionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
}

// AddVideo adds a video; adding it twice is ErrAlreadyInCollection
func (s *Service) AddVideo(ctx context.Context, userID, collectionID, videoID string) (*models.CollectionItem, error) {
	var item *models.CollectionItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.owned(ctx, tx, userID, collectionID)
		if err != nil {
			return err
		}
		created, err := s.insertItem(ctx, tx, c, videoID)
		if err != nil {
			return err
		}
		if created == nil {
			return ErrAlreadyInCollection
		}
		item = created
		return nil
	})
	return item, err
}

// RemoveVideo removes a video from a collection
func (s *Service) RemoveVideo(ctx context.Context, userID, collectionID, videoID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.owned(ctx, tx, userID, collectionID)
		if err != nil {
			return err
		}
		res := tx.Where("collection_id = ? AND video_id = ?", c.ID, videoID).Delete(&models.CollectionItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVideoNotFound
		}
		return tx.Model(c).Where("item_count > 0").UpdateColumn("item_count", gorm.Expr("item_count - 1")).Error
	})
}

// SaveToDefault bookmarks a video into the user's "Saved" collection,
// creating it on first use. Saving an already saved video succeeds.
func (s *Service) SaveToDefault(ctx context.Context, userID, videoID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.defaultCollection(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = s.insertItem(ctx, tx, c, videoID)
		return err
	})
}

// DefaultCollection returns the user's "Saved" collection, creating it
func (s *Service) DefaultCollection(ctx context.Context, userID string) (*models.Collection, error) {
	return s.defaultCollection(ctx, s.db, userID)
}

func (s *Service) defaultCollection(ctx context.Context, tx *gorm.DB, userID string) (*models.Collection, error) {
	var c models.Collection
	err := tx.WithContext(ctx).Where("user_id = ? AND is_default = ?", userID, true).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c = models.Collection{
		UserID:    userID,
		Name:      models.DefaultCollectionName,
		IsPrivate: true,
		IsDefault: true,
	}
	if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to create default collection: %w", err)
	}
	return &c, nil
}

// insertItem returns nil without error when the video was already present
func (s *Service) insertItem(ctx context.Context, tx *gorm.DB, c *models.Collection, videoID string) (*models.CollectionItem, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND status = ?", videoID, models.VideoStatusLive).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrVideoNotFound
	}

	item := &models.CollectionItem{CollectionID: c.ID, VideoID: videoID}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(item)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to add video: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	if err := tx.Model(c).UpdateColumn("item_count", gorm.Expr("item_count + 1")).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id string) (*models.Collection, error) {
	var c models.Collection
	err := tx.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) owned(ctx context.Context, tx *gorm.DB, userID, id string) (*models.Collection, error) {
	c, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}
	return c, nil
}
