// internal/middleware/auth.go
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/utils"
)

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *utils.SupabaseClaims) {
	c.Set("user_id", claims.Subject)
	c.Set("email", claims.Email)
	c.Set("is_admin", claims.IsAdmin())
}

// AuthRequired accepts access tokens issued by the auth provider.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		if c.GetHeader("Authorization") == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(token)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// AdminChecker looks up the profile-level admin flag.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ResolveAdmin reports whether the caller is an admin, either through the
// token's app_metadata role or the profile's is_admin flag. A positive answer
// from the profile is cached on the context.
func ResolveAdmin(c *gin.Context, admins AdminChecker) bool {
	if c.GetBool("is_admin") {
		return true
	}

	userID, ok := utils.GetUserUUIDFromContext(c)
	if !ok {
		return false
	}

	isAdmin, err := admins.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to check admin flag")
		return false
	}
	if isAdmin {
		c.Set("is_admin", true)
	}
	return isAdmin
}

// AdminRequired must run after AuthRequired.
func AdminRequired(admins AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ResolveAdmin(c, admins) {
			utils.ForbiddenResponse(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		if claims, err := utils.ValidateJWT(token); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}
