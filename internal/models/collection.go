package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultCollectionName is the collection bookmarks are saved into
const DefaultCollectionName = "Saved"

type Collection struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string           `gorm:"not null;index" json:"user_id"`
	Name        string           `gorm:"not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	IsPrivate   bool             `json:"is_private"`
	IsDefault   bool             `json:"is_default"`
	ItemCount   int              `json:"item_count"`
	Items       []CollectionItem `gorm:"foreignKey:CollectionID" json:"items,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Collection) TableName() string {
	return "collections"
}

type CollectionItem struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	CollectionID string    `gorm:"not null;uniqueIndex:idx_collection_items_unique" json:"collection_id"`
	VideoID      string    `gorm:"not null;uniqueIndex:idx_collection_items_unique" json:"video_id"`
	Video        *Video    `gorm:"foreignKey:VideoID" json:"video,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CollectionItem) TableName() string {
	return "collection_items"
}
