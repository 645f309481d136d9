package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/reelhub/backend/internal/logger"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type fakeChat struct {
	users []string
	err   error
}

func (f *fakeChat) UpsertUser(_ context.Context, userID, _, _ string) error {
	f.users = append(f.users, userID)
	return f.err
}

// AuthServiceTestSuite contains auth service tests
type AuthServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	chat        *fakeChat
	authService *Service
	ctx         context.Context
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	_ = logger.Initialize("error", "")
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.chat = &fakeChat{}
	suite.authService = NewService(suite.db, []byte("test_jwt_secret_key"), nil, suite.chat)
	suite.ctx = context.Background()
}

func (suite *AuthServiceTestSuite) register(email, username string) *AuthResponse {
	resp, err := suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email:       email,
		Username:    username,
		Password:    "password123",
		DisplayName: "Test Creator",
	})
	suite.Require().NoError(err)
	return resp
}

func (suite *AuthServiceTestSuite) TestRegisterNativeUser() {
	t := suite.T()

	authResp := suite.register("test@reelhub.app", "testreel")
	assert.NotEmpty(t, authResp.Token)
	assert.Equal(t, "test@reelhub.app", authResp.User.Email)
	assert.Equal(t, "testreel", authResp.User.Username)
	assert.NotNil(t, authResp.User.PasswordHash)
	assert.Equal(t, []string{authResp.User.ID}, suite.chat.users)

	// Duplicate email, any casing
	_, err := suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email: "TEST@reelhub.app", Username: "other", Password: "password123", DisplayName: "Other",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	// Duplicate username, any casing
	_, err = suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email: "different@reelhub.app", Username: "TestReel", Password: "password456", DisplayName: "Different",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func (suite *AuthServiceTestSuite) TestRegisterSurvivesChatFailure() {
	suite.chat.err = errors.New("chat unavailable")
	resp := suite.register("chat@reelhub.app", "chatless")
	suite.NotEmpty(resp.Token)
}

func (suite *AuthServiceTestSuite) TestRegisterAddsPasswordToGoogleAccount() {
	t := suite.T()
	googleID := "google-123"
	require.NoError(t, suite.db.Create(&models.User{
		Email: "oauth@reelhub.app", Username: "oauthuser", DisplayName: "OAuth", GoogleID: &googleID,
	}).Error)

	resp, err := suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email: "oauth@reelhub.app", Username: "ignored", Password: "password123", DisplayName: "OAuth",
	})
	require.NoError(t, err)
	assert.Equal(t, "oauthuser", resp.User.Username)

	login, err := suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Email: "oauth@reelhub.app", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func (suite *AuthServiceTestSuite) TestLoginNativeUser() {
	t := suite.T()
	suite.register("login@reelhub.app", "logintest")

	authResp, err := suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Email: "login@reelhub.app", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, authResp.Token)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Email: "nobody@reelhub.app", Password: "password123"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Email: "login@reelhub.app", Password: "wrongpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Email: "LOGIN@REELHUB.APP", Password: "password123"})
	assert.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestLoginWithoutPassword() {
	googleID := "google-456"
	suite.Require().NoError(suite.db.Create(&models.User{
		Email: "nopass@reelhub.app", Username: "nopass", DisplayName: "No Pass", GoogleID: &googleID,
	}).Error)

	_, err := suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Email: "nopass@reelhub.app", Password: "whatever1"})
	suite.ErrorIs(err, ErrNoPassword)
}

func (suite *AuthServiceTestSuite) TestJWTTokenValidation() {
	t := suite.T()
	user := testutil.CreateUser(t, suite.db, "jwttest")

	authResp, err := suite.authService.GenerateTokenForUser(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), authResp.ExpiresAt, time.Minute)

	validated, err := suite.authService.ValidateToken(authResp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, validated.ID)

	_, err = suite.authService.ValidateToken("invalid.token.here")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Signed with another secret
	other := NewService(suite.db, []byte("other_secret"), nil, nil)
	foreign, err := other.GenerateTokenForUser(user)
	require.NoError(t, err)
	_, err = suite.authService.ValidateToken(foreign.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestExpiredToken() {
	t := suite.T()
	user := testutil.CreateUser(t, suite.db, "expired")

	suite.authService.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	authResp, err := suite.authService.GenerateTokenForUser(user)
	require.NoError(t, err)

	suite.authService.now = time.Now
	_, err = suite.authService.ValidateToken(authResp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestTokenForDeletedUser() {
	t := suite.T()
	user := testutil.CreateUser(t, suite.db, "gone")
	authResp, err := suite.authService.GenerateTokenForUser(user)
	require.NoError(t, err)

	require.NoError(t, suite.db.Delete(user).Error)
	_, err = suite.authService.ValidateToken(authResp.Token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func (suite *AuthServiceTestSuite) TestTokenClaims() {
	t := suite.T()
	user := testutil.CreateUser(t, suite.db, "claims")

	authResp, err := suite.authService.GenerateTokenForUser(user)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(authResp.Token, jwt.MapClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, "claims", claims["username"])
	assert.Equal(t, false, claims["is_admin"])
	assert.Equal(t, "HS256", parsed.Method.Alg())
}

func (suite *AuthServiceTestSuite) TestFindOrCreateGoogleUser() {
	t := suite.T()

	created, err := suite.authService.FindOrCreateGoogleUser(suite.ctx, &OAuthUserInfo{
		ID: "g-1", Email: "new@gmail.com", Name: "New Creator", AvatarURL: "https://lh3.example.com/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "newcreator", created.User.Username)
	require.NotNil(t, created.User.GoogleID)

	// Same Google id signs into the same account
	again, err := suite.authService.FindOrCreateGoogleUser(suite.ctx, &OAuthUserInfo{ID: "g-1", Email: "changed@gmail.com", Name: "New Creator"})
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, again.User.ID)

	// A native account with the same email gets linked
	native := suite.register("native@reelhub.app", "native")
	linked, err := suite.authService.FindOrCreateGoogleUser(suite.ctx, &OAuthUserInfo{ID: "g-2", Email: "Native@reelhub.app", Name: "Native"})
	require.NoError(t, err)
	assert.Equal(t, native.User.ID, linked.User.ID)

	var stored models.User
	require.NoError(t, suite.db.First(&stored, "id = ?", native.User.ID).Error)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-2", *stored.GoogleID)
}

func (suite *AuthServiceTestSuite) TestGoogleUsernameCollision() {
	testutil.CreateUser(suite.T(), suite.db, "samename")

	resp, err := suite.authService.FindOrCreateGoogleUser(suite.ctx, &OAuthUserInfo{ID: "g-3", Email: "same@gmail.com", Name: "Same Name"})
	suite.Require().NoError(err)
	suite.Equal("samename1", resp.User.Username)
}

func (suite *AuthServiceTestSuite) TestGoogleNotConfigured() {
	_, err := suite.authService.GetGoogleOAuthURL("state")
	suite.ErrorIs(err, ErrOAuthNotConfigured)

	_, err = suite.authService.HandleGoogleCallback(suite.ctx, "code")
	suite.ErrorIs(err, ErrOAuthNotConfigured)
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func TestGenerateUsernameFromName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "John Doe", "johndoe"},
		{"name with numbers", "DJ Shadow 2024", "djshadow2024"},
		{"special characters", "Mike-Dean!", "mikedean"},
		{"empty string", "", "creator"},
		{"only special chars", "!@#$%", "creator"},
		{"long name", "This Is A Very Long Name That Exceeds Twenty", "thisisaverylongnamet"},
		{"unicode characters", "José García", "josgarca"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateUsernameFromName(tt.input))
		})
	}
}
