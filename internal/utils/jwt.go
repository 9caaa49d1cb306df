// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// SupabaseClaims mirrors the access tokens issued by the managed auth provider.
type SupabaseClaims struct {
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *SupabaseClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IsAdmin reports the admin role granted through app_metadata. Users cannot
// edit app_metadata themselves.
func (c *SupabaseClaims) IsAdmin() bool {
	role, _ := c.AppMetadata["role"].(string)
	return role == "admin"
}

var jwtSecret = []byte("your-secret-key-change-in-production")

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateJWT signs a token shaped like the auth provider's. Used by local
// tooling and tests; production tokens come from the provider.
func GenerateJWT(userID uuid.UUID, email string, admin bool, ttl time.Duration) (string, error) {
	claims := SupabaseClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
		},
	}
	if admin {
		claims.AppMetadata = map[string]interface{}{"role": "admin"}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*SupabaseClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SupabaseClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if _, err := claims.UserID(); err != nil {
		return nil, errors.New("token subject is not a user id")
	}

	return claims, nil
}
