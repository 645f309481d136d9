package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/reelhub/backend/internal/models"
)

const totpIssuer = "Reelhub"

var (
	ErrTOTPRequired       = errors.New("two-factor code required")
	ErrInvalidCode        = errors.New("invalid two-factor code")
	ErrTOTPAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrTOTPNotInitiated   = errors.New("two-factor setup not initiated")
)

// Enrollment is returned once when two-factor setup starts
type Enrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// EnrollTOTP stores a new secret. It is not enforced until ConfirmTOTP.
func (s *Service) EnrollTOTP(ctx context.Context, userID string) (*Enrollment, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
		SecretSize:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	secret := key.Secret()
	if err := s.db.WithContext(ctx).Model(user).Select("TOTPSecret").
		Updates(&models.User{TOTPSecret: &secret}).Error; err != nil {
		return nil, fmt.Errorf("failed to save secret: %w", err)
	}
	return &Enrollment{Secret: secret, URL: key.URL()}, nil
}

// ConfirmTOTP enables two-factor after the first valid code
func (s *Service) ConfirmTOTP(ctx context.Context, userID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return ErrTOTPNotInitiated
	}
	if !s.validCode(*user.TOTPSecret, code) {
		return ErrInvalidCode
	}
	return s.db.WithContext(ctx).Model(user).Select("TOTPEnabled").
		Updates(&models.User{TOTPEnabled: true}).Error
}

// DisableTOTP turns two-factor off; a current code is required
func (s *Service) DisableTOTP(ctx context.Context, userID, code string) error {
	if err := s.requireCode(ctx, userID, code); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.User{ID: userID}).Select("TOTPEnabled", "TOTPSecret").
		Updates(&models.User{TOTPEnabled: false, TOTPSecret: nil}).Error
}

func (s *Service) requireCode(ctx context.Context, userID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled || user.TOTPSecret == nil {
		return nil
	}
	if code == "" {
		return ErrTOTPRequired
	}
	if !s.validCode(*user.TOTPSecret, code) {
		return ErrInvalidCode
	}
	return nil
}

func (s *Service) validCode(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
