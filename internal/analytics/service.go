// Package analytics aggregates the creator dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/reelhub/backend/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultDays = 30
	MaxDays     = 90
)

// DayViews is the view count for one UTC day
type DayViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

// Dashboard is a creator's totals plus the daily view series
type Dashboard struct {
	Videos       int64      `json:"videos"`
	Views        int64      `json:"views"`
	Likes        int64      `json:"likes"`
	Orders       int64      `json:"orders"`
	RevenueCents int64      `json:"revenue_cents"`
	Coins        int64      `json:"coins"`
	DailyViews   []DayViews `json:"daily_views"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// ClampDays bounds the series length
func ClampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

// Dashboard builds the dashboard for userID over the last days days,
// today included
func (s *Service) Dashboard(ctx context.Context, userID string, days int) (*Dashboard, error) {
	days = ClampDays(days)
	db := s.db.WithContext(ctx)
	out := &Dashboard{}

	var videoTotals struct {
		Videos int64
		Views  int64
		Likes  int64
	}
	if err := db.Model(&models.Video{}).
		Where("user_id = ? AND status = ?", userID, models.VideoStatusLive).
		Select("COUNT(*) AS videos, COALESCE(SUM(view_count), 0) AS views, COALESCE(SUM(like_count), 0) AS likes").
		Scan(&videoTotals).Error; err != nil {
		return nil, fmt.Errorf("failed to total videos: %w", err)
	}
	out.Videos, out.Views, out.Likes = videoTotals.Videos, videoTotals.Views, videoTotals.Likes

	var orderTotals struct {
		Orders  int64
		Revenue int64
	}
	if err := db.Model(&models.Order{}).
		Where("seller_id = ? AND status IN ?", userID, []models.OrderStatus{
			models.OrderPaid, models.OrderShipped, models.OrderDelivered,
		}).
		Select("COUNT(*) AS orders, COALESCE(SUM(total_cents), 0) AS revenue").
		Scan(&orderTotals).Error; err != nil {
		return nil, fmt.Errorf("failed to total orders: %w", err)
	}
	out.Orders, out.RevenueCents = orderTotals.Orders, orderTotals.Revenue

	var balances []int64
	if err := db.Model(&models.Wallet{}).Where("user_id = ?", userID).Pluck("balance", &balances).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if len(balances) > 0 {
		out.Coins = balances[0]
	}

	series, err := s.dailyViews(db, userID, days)
	if err != nil {
		return nil, err
	}
	out.DailyViews = series
	return out, nil
}

func (s *Service) dailyViews(db *gorm.DB, userID string, days int) ([]DayViews, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	var rows []struct {
		Day   string
		Views int64
	}
	err := db.Table("video_views").
		Select("DATE(video_views.created_at) AS day, COUNT(*) AS views").
		Joins("JOIN videos ON videos.id = video_views.video_id").
		Where("videos.user_id = ? AND video_views.created_at >= ?", userID, start).
		Group("DATE(video_views.created_at)").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load daily views: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		// Postgres returns a timestamp, SQLite a date string
		day := r.Day
		if len(day) > 10 {
			day = day[:10]
		}
		counts[day] += r.Views
	}

	series := make([]DayViews, days)
	for i := range series {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		series[i] = DayViews{Date: date, Views: counts[date]}
	}
	return series, nil
}
