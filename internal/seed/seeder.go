package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/reelhub/backend/internal/affiliate"
	"github.com/reelhub/backend/internal/collections"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every seeded account
const DefaultPassword = "password123"

// ChatUsers mirrors seeded accounts into the chat provider
type ChatUsers interface {
	UpsertUser(ctx context.Context, userID, username, avatarURL string) error
}

// Counts sizes a development seed
type Counts struct {
	Users    int
	Videos   int
	Likes    int
	Views    int
	Saves    int
	Products int
}

// DefaultCounts is used by SeedDev unless overridden
var DefaultCounts = Counts{Users: 50, Videos: 300, Likes: 2000, Views: 6000, Saves: 400, Products: 40}

var seedTags = []string{"comedy", "dance", "cooking", "travel", "pets", "diy", "fitness", "music", "gaming", "fashion", "beauty", "tech"}

var seedRewards = []wallet.RewardInput{
	{Name: "Profile badge", Description: "Show off a golden badge on your profile", CoinCost: 50},
	{Name: "Featured slot", Description: "Pin one video to the top of your profile for a week", CoinCost: 250},
	{Name: "Sticker pack", Description: "Exclusive comment stickers", CoinCost: 120},
	{Name: "Creator hoodie", Description: "Limited edition hoodie", CoinCost: 2000, Stock: intPtr(25)},
}

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	chat   ChatUsers
	counts Counts
	hash   string
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db, counts: DefaultCounts}
}

// SetChatClient mirrors seeded users into the chat provider
func (s *Seeder) SetChatClient(chat ChatUsers) {
	s.chat = chat
}

// SetCounts overrides the development seed sizes
func (s *Seeder) SetCounts(c Counts) {
	s.counts = c
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev(ctx context.Context) error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(ctx, s.counts.Users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating videos...")
	videos, err := s.seedVideos(ctx, users, s.counts.Videos)
	if err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}

	log("Creating likes and views...")
	if err := s.seedEngagement(ctx, users, videos, s.counts.Likes, s.counts.Views); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}

	log("Creating saved collections...")
	if err := s.seedSaves(ctx, users, videos, s.counts.Saves); err != nil {
		return fmt.Errorf("failed to seed collections: %w", err)
	}

	log("Creating store products...")
	if err := s.seedProducts(ctx, users, s.counts.Products); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	log("Creating rewards, tiers and wallets...")
	return s.seedEconomy(ctx, users)
}

// SeedTest seeds the test database with minimal data
func (s *Seeder) SeedTest(ctx context.Context) error {
	specs := []struct {
		username    string
		displayName string
	}{
		{"alice", "Alice Smith"},
		{"bob", "Bob Johnson"},
		{"charlie", "Charlie Brown"},
		{"diana", "Diana Prince"},
		{"eve", "Eve Wilson"},
	}

	users := make([]models.User, 0, len(specs))
	for _, spec := range specs {
		user, err := s.ensureUser(ctx, spec.username, spec.username+"@example.com", spec.displayName)
		if err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		users = append(users, *user)
	}

	logger.Log.Info("Creating test videos...")
	videos, err := s.seedVideos(ctx, users, 2*len(users))
	if err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}
	if err := s.seedEngagement(ctx, users, videos, 10, 20); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}
	if err := s.seedProducts(ctx, users[:1], 2); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	return s.seedEconomy(ctx, users)
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean(ctx context.Context) error {
	tables := []string{
		"notification_delivery_logs", "notifications", "notification_preferences",
		"affiliate_commissions", "affiliate_links", "affiliate_tiers",
		"reward_purchases", "rewards", "wallet_transactions", "wallets",
		"order_items", "orders", "products",
		"collection_items", "collections",
		"video_views", "video_likes", "video_renditions", "scheduled_videos", "videos",
		"live_streams", "settings_profiles", "user_settings", "users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) passwordHash() (string, error) {
	if s.hash != "" {
		return s.hash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	s.hash = string(hashed)
	return s.hash, nil
}

// ensureUser returns the user with the username or email, creating it
func (s *Seeder) ensureUser(ctx context.Context, username, email, displayName string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ? OR email = ?", username, email).First(&user).Error
	if err == nil {
		return &user, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}
	user = models.User{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		Bio:          gofakeit.HipsterSentence(),
		AvatarURL:    fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
		PasswordHash: &hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	if s.chat != nil {
		if err := s.chat.UpsertUser(ctx, user.ID, user.Username, user.AvatarURL); err != nil {
			logger.Log.Warn("Failed to create chat user", zap.String("username", username), zap.Error(err))
		}
	}
	return &user, nil
}

// seedUsers creates users with realistic data
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	var seedUserCount int64
	s.db.WithContext(ctx).Model(&models.User{}).Where("email LIKE ?", "%@example.com").Count(&seedUserCount)
	if seedUserCount >= int64(count) {
		var users []models.User
		if err := s.db.WithContext(ctx).Where("email LIKE ?", "%@example.com").Find(&users).Error; err != nil {
			return nil, err
		}
		logger.Log.Info("Found existing users, skipping creation", zap.Int64("seed_users", seedUserCount))
		return users, nil
	}

	users := make([]models.User, 0, count)
	seen := make(map[string]bool, count)
	for len(users) < count {
		username := strings.ToLower(gofakeit.Username())
		user, err := s.ensureUser(ctx, username, username+"@example.com", gofakeit.Name())
		if err != nil {
			return nil, err
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		users = append(users, *user)
	}
	return users, nil
}

func renditionsFor(videoID string) []models.VideoRendition {
	ladder := []struct {
		label   string
		height  int
		bitrate int
	}{
		{"360p", 360, 800},
		{"720p", 720, 2500},
		{"1080p", 1080, 5000},
	}
	out := make([]models.VideoRendition, 0, len(ladder))
	for _, r := range ladder {
		out = append(out, models.VideoRendition{
			VideoID:     videoID,
			Label:       r.label,
			Height:      r.height,
			BitrateKbps: r.bitrate,
			URL:         fmt.Sprintf("https://cdn.reelhub.dev/videos/%s/%s.mp4", videoID, r.label),
		})
	}
	return out
}

// seedVideos creates published videos spread over the last month
func (s *Seeder) seedVideos(ctx context.Context, users []models.User, count int) ([]models.Video, error) {
	if len(users) == 0 {
		return nil, nil
	}

	videos := make([]models.Video, 0, count)
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		owner := users[gofakeit.Number(0, len(users)-1)]
		tags := []string{seedTags[gofakeit.Number(0, len(seedTags)-1)], seedTags[gofakeit.Number(0, len(seedTags)-1)]}
		if tags[0] == tags[1] {
			tags = tags[:1]
		}
		published := now.Add(-time.Duration(gofakeit.Number(0, 30*24)) * time.Hour)

		video := models.Video{
			UserID:          owner.ID,
			Title:           fmt.Sprintf("%s %s %s", gofakeit.Adjective(), gofakeit.Noun(), gofakeit.HipsterWord()),
			Description:     gofakeit.HipsterSentence() + " #" + tags[0],
			Tags:            tags,
			VideoURL:        fmt.Sprintf("https://cdn.reelhub.dev/videos/seed-%d.mp4", i),
			ThumbnailURL:    fmt.Sprintf("https://picsum.photos/seed/reel%d/540/960", i),
			DurationSeconds: float64(gofakeit.Number(5, 90)),
			IsPublic:        gofakeit.Number(1, 10) > 1,
			Status:          models.VideoStatusLive,
			PublishedAt:     published,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&video).Error; err != nil {
				return err
			}
			renditions := renditionsFor(video.ID)
			if err := tx.Create(&renditions).Error; err != nil {
				return err
			}
			video.Renditions = renditions
			return tx.Model(&models.User{}).Where("id = ?", owner.ID).
				UpdateColumn("video_count", gorm.Expr("video_count + 1")).Error
		})
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// seedEngagement adds random likes and views then refreshes the counters
func (s *Seeder) seedEngagement(ctx context.Context, users []models.User, videos []models.Video, likes, views int) error {
	if len(users) == 0 || len(videos) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)

	for i := 0; i < likes; i++ {
		like := models.VideoLike{
			UserID:  users[gofakeit.Number(0, len(users)-1)].ID,
			VideoID: videos[gofakeit.Number(0, len(videos)-1)].ID,
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			return err
		}
	}

	for i := 0; i < views; i++ {
		video := videos[gofakeit.Number(0, len(videos)-1)]
		watched := video.DurationSeconds * gofakeit.Float64Range(0.1, 1)
		view := models.VideoView{
			VideoID:        video.ID,
			WatchedSeconds: watched,
			Completed:      video.DurationSeconds > 0 && watched >= video.DurationSeconds*0.9,
			CreatedAt:      time.Now().UTC().Add(-time.Duration(gofakeit.Number(0, 30*24)) * time.Hour),
		}
		if gofakeit.Number(1, 4) > 1 {
			view.UserID = &users[gofakeit.Number(0, len(users)-1)].ID
		}
		if err := db.Create(&view).Error; err != nil {
			return err
		}
	}

	if err := db.Exec(`UPDATE videos SET like_count = (SELECT COUNT(*) FROM video_likes WHERE video_likes.video_id = videos.id)`).Error; err != nil {
		return err
	}
	return db.Exec(`UPDATE videos SET view_count = (SELECT COUNT(*) FROM video_views WHERE video_views.video_id = videos.id)`).Error
}

func (s *Seeder) seedSaves(ctx context.Context, users []models.User, videos []models.Video, count int) error {
	if len(users) == 0 || len(videos) == 0 {
		return nil
	}
	svc := collections.NewService(s.db)
	for i := 0; i < count; i++ {
		user := users[gofakeit.Number(0, len(users)-1)]
		video := videos[gofakeit.Number(0, len(videos)-1)]
		if err := svc.SaveToDefault(ctx, user.ID, video.ID); err != nil && !errors.Is(err, collections.ErrVideoNotFound) {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedProducts(ctx context.Context, sellers []models.User, count int) error {
	if len(sellers) == 0 {
		return nil
	}
	// a handful of creators run shops
	if len(sellers) > 10 {
		sellers = sellers[:10]
	}
	for i := 0; i < count; i++ {
		price := int64(gofakeit.Number(5, 80)) * 100
		product := models.Product{
			SellerID:    sellers[i%len(sellers)].ID,
			Name:        gofakeit.ProductName(),
			Description: gofakeit.ProductDescription(),
			PriceCents:  price,
			Stock:       gofakeit.Number(0, 50),
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/product%d/600/600", i),
			Active:      true,
		}
		if i%3 == 0 {
			product.CoinPrice = price / 10
		}
		if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
			return err
		}
	}
	return nil
}

// seedEconomy installs the reward catalog and affiliate tiers, and gives
// every user a wallet with a starting balance
func (s *Seeder) seedEconomy(ctx context.Context, users []models.User) error {
	walletSvc := wallet.NewService(s.db, nil)

	var rewards int64
	if err := s.db.WithContext(ctx).Model(&models.Reward{}).Count(&rewards).Error; err != nil {
		return err
	}
	if rewards == 0 {
		for _, in := range seedRewards {
			if _, err := walletSvc.CreateReward(ctx, in); err != nil {
				return err
			}
		}
	}

	if err := affiliate.NewService(s.db, walletSvc, nil).EnsureDefaultTiers(ctx); err != nil {
		return err
	}

	for _, user := range users {
		w, err := walletSvc.GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}
		if w.Balance > 0 {
			continue
		}
		if _, err := walletSvc.AwardCoins(ctx, user.ID, int64(gofakeit.Number(100, 1000)), wallet.ReasonAward, "seed"); err != nil {
			return err
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
