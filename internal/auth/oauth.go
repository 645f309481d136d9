package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// OAuthUserInfo is the provider profile used to find or create an account
type OAuthUserInfo struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// googleUserInfo is the v2 userinfo response
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// HandleGoogleCallback exchanges the authorization code and signs the user in
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error) {
	if s.googleConfig == nil {
		return nil, ErrOAuthNotConfigured
	}

	info, err := s.getGoogleUserInfo(ctx, code)
	if err != nil {
		logger.Log.Warn("Google OAuth exchange failed", zap.Error(err))
		return nil, fmt.Errorf("failed to get Google user info: %w", err)
	}

	return s.FindOrCreateGoogleUser(ctx, info)
}

// FindOrCreateGoogleUser resolves a Google profile to an account: an existing
// Google link first, then an account with the same email, then a new user.
func (s *Service) FindOrCreateGoogleUser(ctx context.Context, info *OAuthUserInfo) (*AuthResponse, error) {
	if info.ID == "" || info.Email == "" {
		return nil, errors.New("google profile is missing id or email")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("google_id = ?", info.ID).First(&user).Error
	if err == nil {
		return s.generateAuthResponse(&user)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error checking OAuth: %w", err)
	}

	existing, err := s.FindUserByEmail(ctx, info.Email)
	if err == nil {
		return s.linkGoogleAccount(ctx, existing, info)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.createGoogleUser(ctx, info)
}

func (s *Service) linkGoogleAccount(ctx context.Context, user *models.User, info *OAuthUserInfo) (*AuthResponse, error) {
	updates := map[string]interface{}{"google_id": info.ID}
	if user.AvatarURL == "" && info.AvatarURL != "" {
		updates["avatar_url"] = info.AvatarURL
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to link Google account: %w", err)
	}

	logger.Log.Info("Linked Google account", logger.WithUserID(user.ID))
	return s.generateAuthResponse(user)
}

func (s *Service) createGoogleUser(ctx context.Context, info *OAuthUserInfo) (*AuthResponse, error) {
	username, err := s.ensureUniqueUsername(ctx, generateUsernameFromName(info.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to generate unique username: %w", err)
	}

	displayName := info.Name
	if displayName == "" {
		displayName = username
	}

	googleID := info.ID
	user := models.User{
		Email:       info.Email,
		Username:    username,
		DisplayName: displayName,
		AvatarURL:   info.AvatarURL,
		GoogleID:    &googleID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user with OAuth: %w", err)
	}

	s.syncChatUser(ctx, &user)
	logger.Log.Info("User registered via Google", logger.WithUserID(user.ID), zap.String("username", user.Username))
	return s.generateAuthResponse(&user)
}

func (s *Service) getGoogleUserInfo(ctx context.Context, code string) (*OAuthUserInfo, error) {
	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := s.googleConfig.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var googleUser googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	return &OAuthUserInfo{
		ID:        googleUser.ID,
		Email:     googleUser.Email,
		Name:      googleUser.Name,
		AvatarURL: googleUser.Picture,
	}, nil
}

// ensureUniqueUsername appends a counter until the username is free
func (s *Service) ensureUniqueUsername(ctx context.Context, base string) (string, error) {
	username := base
	for counter := 1; counter <= 999; counter++ {
		taken, err := s.usernameTaken(ctx, username)
		if err != nil {
			return "", err
		}
		if !taken {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, counter)
	}
	return "", errors.New("unable to generate unique username")
}

// generateUsernameFromName lowercases the name and keeps [a-z0-9], at most 20 chars
func generateUsernameFromName(name string) string {
	var b strings.Builder
	for _, char := range strings.ToLower(name) {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') {
			b.WriteRune(char)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		cleaned = "creator"
	}
	if len(cleaned) > 20 {
		cleaned = cleaned[:20]
	}
	return cleaned
}
