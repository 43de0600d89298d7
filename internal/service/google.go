package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/sumire/recipebox/internal/domain"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var errGoogleAuthFailed = domain.Errorf(domain.ErrUnauthorized, "google authorization failed")

// GoogleConfig holds Google OAuth client settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// GoogleProvider implements OAuthProvider for Google accounts.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a new GoogleProvider.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     googleOAuth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
			RedirectURL:  cfg.CallbackURL,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL returns the Google consent page URL for state.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Profile exchanges the authorization code and fetches the account profile.
// Accounts without a verified email are rejected.
func (g *GoogleProvider) Profile(ctx context.Context, code string) (*domain.OAuthProfile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		slog.Warn("google token exchange failed", "error", err)
		return nil, errGoogleAuthFailed
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch google user info: %w", err)
	}

	if info.Email == "" {
		return nil, domain.Errorf(domain.ErrUnauthorized, "no email provided by google")
	}
	if !info.VerifiedEmail {
		return nil, domain.Errorf(domain.ErrUnauthorized, "email not verified by google")
	}

	return &domain.OAuthProfile{
		Provider:   domain.AuthProviderGoogle,
		ProviderID: info.ID,
		Email:      info.Email,
		Name:       info.fullName(),
		Image:      info.Picture,
	}, nil
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func (i googleUserInfo) fullName() string {
	if i.GivenName != "" && i.FamilyName != "" {
		return i.GivenName + " " + i.FamilyName
	}
	return strings.TrimSpace(i.Name)
}

func (g *GoogleProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}
