// Package settings persists per-user UI preferences and named profiles of
// them, with TOML export and import.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProfileNotFound = errors.New("settings profile not found")
	ErrProfileExists   = errors.New("a profile with this name already exists")
)

// Defaults are the values of a user who never saved settings
func Defaults() models.SettingsValues {
	return models.SettingsValues{
		LayoutMode: models.LayoutFeed,
		Autoplay:   true,
		Muted:      true,
		ABREnabled: false,
	}
}

// Repository loads and stores settings
type Repository interface {
	Load(ctx context.Context, userID string) (models.SettingsValues, error)
	Save(ctx context.Context, userID string, values models.SettingsValues) error

	ListProfiles(ctx context.Context, userID string) ([]models.SettingsProfile, error)
	GetProfile(ctx context.Context, userID, profileID string) (*models.SettingsProfile, error)
	CreateProfile(ctx context.Context, profile *models.SettingsProfile) error
	UpdateProfile(ctx context.Context, profile *models.SettingsProfile) error
	DeleteProfile(ctx context.Context, userID, profileID string) error
}

// GormRepository is the database-backed Repository
type GormRepository struct {
	db *gorm.DB
}

var _ Repository = (*GormRepository)(nil)

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Load(ctx context.Context, userID string) (models.SettingsValues, error) {
	var row models.UserSettings
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return models.SettingsValues{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return row.Values, nil
}

func (r *GormRepository) Save(ctx context.Context, userID string, values models.SettingsValues) error {
	row := models.UserSettings{UserID: userID, Values: values, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (r *GormRepository) ListProfiles(ctx context.Context, userID string) ([]models.SettingsProfile, error) {
	var profiles []models.SettingsProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&profiles).Error
	return profiles, err
}

func (r *GormRepository) GetProfile(ctx context.Context, userID, profileID string) (*models.SettingsProfile, error) {
	var p models.SettingsProfile
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", profileID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) CreateProfile(ctx context.Context, profile *models.SettingsProfile) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SettingsProfile{}).
		Where("user_id = ? AND name = ?", profile.UserID, profile.Name).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrProfileExists
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *GormRepository) UpdateProfile(ctx context.Context, profile *models.SettingsProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *GormRepository) DeleteProfile(ctx context.Context, userID, profileID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", profileID, userID).Delete(&models.SettingsProfile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
