package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account holds a user's cash balance. One row per user; the balance is a
// stored running total and is authoritative for buying power — it is never
// derived from the transaction history.
type Account struct {
	gorm.Model
	UserID      string          `gorm:"uniqueIndex;not null" json:"user_id"`
	CashBalance decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cash_balance"`
}
