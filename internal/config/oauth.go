package config

import (
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleOAuth builds the Google OAuth client configuration. It returns an error
// when the redirect base URL or client credentials are missing.
func (s OAuthSettings) GoogleOAuth() (*oauth2.Config, error) {
	if s.RedirectURL == "" {
		return nil, fmt.Errorf("OAUTH_REDIRECT_URL environment variable not set")
	}
	if s.GoogleClientID == "" || s.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	return &oauth2.Config{
		ClientID:     s.GoogleClientID,
		ClientSecret: s.GoogleClientSecret,
		RedirectURL:  s.RedirectURL + "/api/v1/auth/google/callback",
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, nil
}
