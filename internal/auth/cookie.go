package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetSessionCookie writes the session token cookie. Secure cookies are sent
// cross-site so the frontend on BASE_URL can use them.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	if secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(CookieName, token, maxAge, "/", "", secure, true)
}

func ClearSessionCookie(c *gin.Context, secure bool) {
	SetSessionCookie(c, "", -1, secure)
}
