package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anyrag/models"
)

// RequireAuth validates the bearer token against stored access tokens. The
// router only installs it when AUTH_ACCOUNTS is configured.
func RequireAuth(db *gorm.DB, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token != "" {
			accessToken, err := models.GetValidAccessToken(db, token)
			if err != nil {
				logger.Errorw("token lookup failed", "error", err)
			} else if accessToken != nil {
				c.Set("account", accessToken.Account)
				c.Next()
				return
			}
		}

		RespondCustomStatusErr(c, http.StatusUnauthorized, ErrAccessDenied)
	}
}

// CurrentAccount returns the account name behind the request's token, or ""
// when the request is anonymous.
func CurrentAccount(c *gin.Context) string {
	return c.GetString("account")
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
