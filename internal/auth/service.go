package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoPassword         = errors.New("account exists but no password set - try Google login")
	ErrOAuthNotConfigured = errors.New("google login is not configured")
	ErrInvalidToken       = errors.New("invalid token")
)

// TokenTTL is the lifetime of issued session tokens
const TokenTTL = 24 * time.Hour

// ChatUsers mirrors accounts into the live chat provider
type ChatUsers interface {
	UpsertUser(ctx context.Context, userID, username, avatarURL string) error
}

// Service handles all authentication operations
type Service struct {
	db           *gorm.DB
	jwtSecret    []byte
	googleConfig *oauth2.Config
	chat         ChatUsers
	now          func() time.Time
}

// NewService creates a new authentication service. googleConfig and chat may
// be nil; Google login then reports ErrOAuthNotConfigured.
func NewService(db *gorm.DB, jwtSecret []byte, googleConfig *oauth2.Config, chat ChatUsers) *Service {
	return &Service{
		db:           db,
		jwtSecret:    jwtSecret,
		googleConfig: googleConfig,
		chat:         chat,
		now:          time.Now,
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RegisterRequest represents native registration request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=30"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
}

// LoginRequest represents native login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterNativeUser creates a new user with email/password. A Google-only
// account with the same email gets the password added instead.
func (s *Service) RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	existing, err := s.FindUserByEmail(ctx, req.Email)
	if err == nil {
		if existing.PasswordHash == nil {
			return s.addPassword(ctx, existing, req.Password)
		}
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	taken, err := s.usernameTaken(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameExists
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        strings.TrimSpace(req.Email),
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: &hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.syncChatUser(ctx, &user)
	logger.Log.Info("User registered", logger.WithUserID(user.ID), zap.String("username", user.Username))
	return s.generateAuthResponse(&user)
}

// LoginNativeUser authenticates with email/password
func (s *Service) LoginNativeUser(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.FindUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrNoPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateAuthResponse(user)
}

// FindUserByEmail finds user by email (case-insensitive)
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// GetUser loads a user by id
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *Service) addPassword(ctx context.Context, user *models.User, password string) (*AuthResponse, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.PasswordHash = &hash
	return s.generateAuthResponse(user)
}

func (s *Service) usernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = LOWER(?)", username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

func (s *Service) syncChatUser(ctx context.Context, user *models.User) {
	if s.chat == nil {
		return
	}
	if err := s.chat.UpsertUser(ctx, user.ID, user.Username, user.AvatarURL); err != nil {
		// Chat membership is recreated on the next stream join
		logger.Log.Warn("Failed to create chat user", logger.WithUserID(user.ID), zap.Error(err))
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// GenerateTokenForUser creates JWT token and auth response for a user
func (s *Service) GenerateTokenForUser(user *models.User) (*AuthResponse, error) {
	return s.generateAuthResponse(user)
}

func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(TokenTTL)

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"is_admin": user.IsAdmin,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the current user row
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}

	return s.GetUser(context.Background(), userID)
}

// GetGoogleOAuthURL returns Google OAuth authorization URL
func (s *Service) GetGoogleOAuthURL(state string) (string, error) {
	if s.googleConfig == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}
