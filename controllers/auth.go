package controllers

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anyrag/models"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *zap.SugaredLogger
	// Accounts maps usernames to passwords as configured in AUTH_ACCOUNTS.
	Accounts    map[string]string
	TokenExpiry time.Duration
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a AuthController) SignIn(c *gin.Context) {
	type signInParams struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var payload signInParams
	if err := c.BindJSON(&payload); err != nil {
		RespondBadRequestErr(c, err)
		return
	}

	password, ok := a.Accounts[payload.Username]
	if !ok || password != payload.Password {
		RespondCustomStatusErr(c, http.StatusUnauthorized, ErrBadCredentials)
		return
	}

	accessToken, err := models.CreateAccessToken(
		a.DB, payload.Username, generateRandomString(128), time.Now().Add(a.TokenExpiry),
	)
	if err != nil {
		a.Logger.Errorw("failed to create access token", "account", payload.Username, "error", err)
		RespondInternalErr(c, ErrInternalError)
		return
	}

	RespondOK(c, TokenResponse{
		AccessToken: accessToken.Token,
		TokenType:   "bearer",
		ExpiresAt:   accessToken.ExpiresAt,
	})
}

func generateRandomString(l int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	b := make([]byte, l)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}

	return string(b)
}
