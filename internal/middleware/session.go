package middleware

import (
	"context"
	"errors"

	"blog_api/internal/apperror"
	"blog_api/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RevocationChecker reports whether a token id was revoked at logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionMiddleware authenticates the request from the session cookie and
// stores the caller's auth.Identity under auth.IdentityKey.
func SessionMiddleware(tokens *auth.TokenService, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.CookieName)
		if err != nil || token == "" {
			apperror.Abort(c, apperror.Unauthenticated, "Authentication required")
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				apperror.Abort(c, apperror.InvalidToken, "Token expired")
			} else {
				apperror.Abort(c, apperror.InvalidToken, "Invalid token")
			}
			return
		}

		if revoked != nil && claims.ID != "" {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// Redis outage: accept the signature alone.
				logrus.WithError(err).Warn("Failed to check token revocation")
			} else if isRevoked {
				apperror.Abort(c, apperror.InvalidToken, "Token has been revoked")
				return
			}
		}

		c.Set(auth.IdentityKey, claims.Identity())
		c.Next()
	}
}
