// Package supabase wraps the managed auth provider behind the calls the API
// needs.
package supabase

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/limey-tt/limey-backend/internal/config"
)

var ErrNotConfigured = errors.New("auth provider is not configured")

// Session is what the API hands back to the client after a sign in.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	// Confirmed is false when sign up requires email confirmation first.
	Confirmed bool `json:"confirmed"`
}

type Client struct {
	api gotrue.Client
}

// extractProjectRef turns https://abcd.supabase.co into abcd.
func extractProjectRef(host string) string {
	return strings.SplitN(host, ".", 2)[0]
}

// NewClient builds the auth client. Hosted projects are addressed by project
// reference; anything else is treated as a self-hosted GoTrue under /auth/v1.
func NewClient(cfg config.SupabaseConfig) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrNotConfigured
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid SUPABASE_URL %q", cfg.URL)
	}

	api := gotrue.New(extractProjectRef(parsed.Host), cfg.AnonKey)
	if !strings.HasSuffix(parsed.Host, ".supabase.co") {
		api = api.WithCustomGoTrueURL(strings.TrimRight(cfg.URL, "/") + "/auth/v1")
	}

	logrus.WithField("host", parsed.Host).Info("Auth provider client configured")
	return &Client{api: api}, nil
}

// Ping checks that the provider answers.
func (c *Client) Ping() error {
	if _, err := c.api.GetSettings(); err != nil {
		return fmt.Errorf("failed to reach auth provider: %w", err)
	}
	return nil
}

func (c *Client) SignUp(email, password string, data map[string]interface{}) (*Session, error) {
	resp, err := c.api.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("sign up failed: %w", err)
	}

	return &Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		AccessToken:  resp.Session.AccessToken,
		RefreshToken: resp.Session.RefreshToken,
		ExpiresIn:    resp.Session.ExpiresIn,
		Confirmed:    resp.Session.AccessToken != "",
	}, nil
}

func (c *Client) SignIn(email, password string) (*Session, error) {
	resp, err := c.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return fromToken(resp), nil
}

func (c *Client) Refresh(refreshToken string) (*Session, error) {
	resp, err := c.api.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return fromToken(resp), nil
}

func fromToken(resp *types.TokenResponse) *Session {
	return &Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		Confirmed:    true,
	}
}
