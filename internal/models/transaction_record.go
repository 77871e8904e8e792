package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Operations recorded in the transaction history.
const (
	OpDeposit  = "deposit"
	OpPurchase = "purchase"
	OpSale     = "sale"
)

// TransactionRecord is an append-only audit entry. Rows are immutable once
// written and are never updated or deleted.
//
// Trade rows carry the traded share count and the price at trade time.
// Deposit rows carry zero shares and the deposited amount in Price.
type TransactionRecord struct {
	gorm.Model
	UserID    string          `gorm:"index;not null" json:"user_id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	Operation string          `gorm:"not null" json:"operation"`
	Timestamp int64           `json:"timestamp"`
}
