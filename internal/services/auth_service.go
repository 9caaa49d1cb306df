// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/models"
	"github.com/limey-tt/limey-backend/internal/pkg/supabase"
	"github.com/limey-tt/limey-backend/internal/utils"
)

// AuthProvider is the managed auth service. Passwords never touch this API's
// database.
type AuthProvider interface {
	SignUp(email, password string, data map[string]interface{}) (*supabase.Session, error)
	SignIn(email, password string) (*supabase.Session, error)
	Refresh(refreshToken string) (*supabase.Session, error)
}

type AuthService struct {
	provider AuthProvider
	profiles *ProfileService
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,username"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	Session *supabase.Session `json:"session"`
	Profile *models.Profile   `json:"profile,omitempty"`
}

// NewAuthService accepts a nil provider; every call then fails with
// ErrAuthUnavailable.
func NewAuthService(provider AuthProvider, profiles *ProfileService) *AuthService {
	return &AuthService{
		provider: provider,
		profiles: profiles,
	}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if s.provider == nil {
		return nil, ErrAuthUnavailable
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.profiles.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	session, err := s.provider.SignUp(strings.ToLower(req.Email), req.Password, map[string]interface{}{
		"username":     req.Username,
		"display_name": displayName,
	})
	if err != nil {
		logrus.WithError(err).WithField("email", req.Email).Warn("Sign up rejected by auth provider")
		return nil, fmt.Errorf("%w: %v", ErrSignupFailed, err)
	}

	profile, err := s.profiles.EnsureProfile(ctx, session.UserID, req.Username, displayName)
	if err != nil {
		return nil, err
	}

	logrus.WithField("user_id", session.UserID).Info("Account created")
	return &AuthResponse{Session: session, Profile: profile}, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if s.provider == nil {
		return nil, ErrAuthUnavailable
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.provider.SignIn(strings.ToLower(req.Email), req.Password)
	if err != nil {
		logrus.WithError(err).WithField("email", req.Email).Debug("Sign in failed")
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	return &AuthResponse{Session: session, Profile: profile}, nil
}

func (s *AuthService) Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error) {
	if s.provider == nil {
		return nil, ErrAuthUnavailable
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.provider.Refresh(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return &AuthResponse{Session: session}, nil
}
