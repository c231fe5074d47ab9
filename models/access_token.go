package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type AccessToken struct {
	Generic

	Account   string    `gorm:"index;not null" json:"account"`
	Token     string    `gorm:"uniqueIndex" json:"token"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

func CreateAccessToken(db *gorm.DB, account, token string, expiresAt time.Time) (*AccessToken, error) {
	accessToken := &AccessToken{
		Account:   account,
		Token:     token,
		ExpiresAt: expiresAt,
	}

	if err := db.Create(accessToken).Error; err != nil {
		return nil, err
	}

	return accessToken, nil
}

// GetValidAccessToken looks a token up, treating expired tokens as absent.
func GetValidAccessToken(db *gorm.DB, token string) (*AccessToken, error) {
	var accessToken AccessToken
	err := db.Where("token = ? AND expires_at > ?", token, time.Now()).First(&accessToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &accessToken, nil
}
