package models

import "gorm.io/gorm"

// QueryLog keeps a record of every answered query. Stored primarily for
// debugging and supportability reasons.
type QueryLog struct {
	Generic

	// Account is the authenticated caller, or empty when auth is disabled.
	Account    string `gorm:"index" json:"account"`
	Query      string `gorm:"not null" json:"query"`
	Mode       string `gorm:"index;not null" json:"mode"`
	Answer     string `json:"answer"`
	Multimodal bool   `json:"multimodal"`
	DurationMs int64  `json:"duration_ms"`
}

func CreateQueryLog(db *gorm.DB, account, query, mode, answer string, multimodal bool, durationMs int64) (*QueryLog, error) {
	log := QueryLog{
		Account:    account,
		Query:      query,
		Mode:       mode,
		Answer:     answer,
		Multimodal: multimodal,
		DurationMs: durationMs,
	}

	if err := db.Create(&log).Error; err != nil {
		return nil, err
	}

	return &log, nil
}
