package models

import "gorm.io/gorm"

// Holding represents a user's current position in one symbol.
// A row exists only while Shares > 0: selling a position down to zero deletes
// the row, it is never stored zeroed.
type Holding struct {
	gorm.Model
	UserID string `gorm:"uniqueIndex:idx_user_symbol;not null" json:"user_id"`
	Symbol string `gorm:"uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	Name   string `json:"name"`
	Shares int64  `gorm:"not null" json:"shares"`
}
