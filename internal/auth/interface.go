package auth

import (
	"context"

	"github.com/reelhub/backend/internal/models"
)

// AuthServiceInterface is the contract the HTTP handlers depend on
type AuthServiceInterface interface {
	RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	LoginNativeUser(ctx context.Context, req LoginRequest) (*AuthResponse, error)

	GetUser(ctx context.Context, userID string) (*models.User, error)
	ValidateToken(tokenString string) (*models.User, error)

	GetGoogleOAuthURL(state string) (string, error)
	HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error)
}

var _ AuthServiceInterface = (*Service)(nil)
