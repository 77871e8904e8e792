package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-broker-go/internal/config"
	"paper-broker-go/internal/ledger"
	"paper-broker-go/internal/models"
	"paper-broker-go/internal/quote"
)

const defaultQuoteTimeout = 5 * time.Second

// Engine is the trading ledger engine. It is the only component that mutates
// Account and Holding state; every operation is atomic with respect to the
// Account/Holding/TransactionRecord triple for one user.
//
// Callers hand it an already-verified userID. Identity, sessions, and
// rendering live outside.
type Engine struct {
	logger *zap.Logger
	cfg    *config.Config
	quotes quote.Provider
	store  ledger.Store
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, quotes quote.Provider, store ledger.Store) *Engine {
	return &Engine{
		logger: logger,
		cfg:    cfg,
		quotes: quotes,
		store:  store,
	}
}

// DepositReceipt reports a completed cash deposit.
type DepositReceipt struct {
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// TradeReceipt reports a completed buy or sell.
type TradeReceipt struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Operation  string          `json:"operation"`
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// Deposit adds cash to the user's account. The amount must parse as a decimal
// of at least the configured minimum unit. The deposit is appended to the
// transaction history so the audit trail covers cash inflows too.
func (e *Engine) Deposit(ctx context.Context, userID, amount string) (*DepositReceipt, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, newError(KindInvalidAmount, "amount %q is not a number", amount)
	}
	min := e.minimumDeposit()
	if amt.LessThan(min) {
		return nil, newError(KindInvalidAmount, "amount %s is below the minimum deposit of %s", amt, min)
	}

	var balance decimal.Decimal
	err = e.store.AtomicUpdate(ctx, userID, func(tx *gorm.DB) error {
		acct, err := lockedAccount(tx, userID)
		if err != nil {
			return err
		}
		acct.CashBalance = acct.CashBalance.Add(amt)
		if err := tx.Model(acct).Update("cash_balance", acct.CashBalance).Error; err != nil {
			return err
		}
		balance = acct.CashBalance
		return tx.Create(&models.TransactionRecord{
			UserID:    userID,
			Price:     amt,
			Operation: models.OpDeposit,
			Timestamp: time.Now().Unix(),
		}).Error
	})
	if err != nil {
		return nil, e.classify("deposit", userID, err)
	}

	e.logger.Info("Deposit applied",
		zap.String("user_id", userID),
		zap.String("amount", amt.String()),
		zap.String("new_balance", balance.String()),
	)

	return &DepositReceipt{UserID: userID, Amount: amt, NewBalance: balance}, nil
}

// Buy purchases whole shares of a symbol at the latest quoted price.
//
// The quote is fetched before any ledger lock is taken, so a slow or dead
// provider never stalls other operations for the user. The funds check runs
// inside the atomic unit: concurrent buys for one user serialize, and only the
// prefix that fits within the balance can succeed.
func (e *Engine) Buy(ctx context.Context, userID, symbol, shares string) (*TradeReceipt, error) {
	symbol, qty, err := parseOrder(symbol, shares)
	if err != nil {
		return nil, err
	}

	q, err := e.lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	totalCost := q.Price.Mul(decimal.NewFromInt(qty))

	var receipt *TradeReceipt
	err = e.store.AtomicUpdate(ctx, userID, func(tx *gorm.DB) error {
		acct, err := lockedAccount(tx, userID)
		if err != nil {
			return err
		}
		if acct.CashBalance.LessThan(totalCost) {
			return newError(KindInsufficientFunds,
				"buying %d %s costs %s but only %s is available", qty, symbol, totalCost, acct.CashBalance)
		}

		acct.CashBalance = acct.CashBalance.Sub(totalCost)
		if err := tx.Model(acct).Update("cash_balance", acct.CashBalance).Error; err != nil {
			return err
		}

		var h models.Holding
		err = tx.Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			h = models.Holding{UserID: userID, Symbol: symbol, Name: q.Name, Shares: qty}
			if err := tx.Create(&h).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&h).Update("shares", h.Shares+qty).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&models.TransactionRecord{
			UserID:    userID,
			Symbol:    symbol,
			Name:      q.Name,
			Shares:    qty,
			Price:     q.Price,
			Operation: models.OpPurchase,
			Timestamp: time.Now().Unix(),
		}).Error; err != nil {
			return err
		}

		receipt = &TradeReceipt{
			OrderID:    uuid.NewString(),
			UserID:     userID,
			Operation:  models.OpPurchase,
			Symbol:     symbol,
			Name:       q.Name,
			Shares:     qty,
			Price:      q.Price,
			Total:      totalCost,
			NewBalance: acct.CashBalance,
		}
		return nil
	})
	if err != nil {
		return nil, e.classify("buy", userID, err)
	}

	e.logger.Info("Buy executed",
		zap.String("user_id", userID),
		zap.String("symbol", symbol),
		zap.Int64("shares", qty),
		zap.String("price", q.Price.String()),
		zap.String("total_cost", totalCost.String()),
	)
	return receipt, nil
}

// Sell sells whole shares of an existing position at the latest quoted price.
// Selling the entire position removes the holding row.
//
// The position checks run before the quote lookup so a missing position is
// reported even while the provider is unreachable; they are re-run inside the
// atomic unit against the transaction's view of the row.
func (e *Engine) Sell(ctx context.Context, userID, symbol, shares string) (*TradeReceipt, error) {
	symbol, qty, err := parseOrder(symbol, shares)
	if err != nil {
		return nil, err
	}

	held, err := e.store.GetHolding(ctx, userID, symbol)
	if err != nil {
		return nil, e.classify("sell", userID, err)
	}
	if qty > held.Shares {
		return nil, newError(KindInsufficientShares,
			"selling %d %s but only %d held", qty, symbol, held.Shares)
	}

	q, err := e.lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	proceeds := q.Price.Mul(decimal.NewFromInt(qty))

	var receipt *TradeReceipt
	err = e.store.AtomicUpdate(ctx, userID, func(tx *gorm.DB) error {
		var h models.Holding
		err := tx.Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindNoSuchPosition, "no position in %s", symbol)
		}
		if err != nil {
			return err
		}
		if qty > h.Shares {
			return newError(KindInsufficientShares,
				"selling %d %s but only %d held", qty, symbol, h.Shares)
		}

		acct, err := lockedAccount(tx, userID)
		if err != nil {
			return err
		}
		acct.CashBalance = acct.CashBalance.Add(proceeds)
		if err := tx.Model(acct).Update("cash_balance", acct.CashBalance).Error; err != nil {
			return err
		}

		if h.Shares == qty {
			// Zero-share rows must not exist. Hard delete so the symbol can
			// be repurchased without tripping the unique index.
			if err := tx.Unscoped().Delete(&h).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&h).Update("shares", h.Shares-qty).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&models.TransactionRecord{
			UserID:    userID,
			Symbol:    symbol,
			Name:      h.Name,
			Shares:    qty,
			Price:     q.Price,
			Operation: models.OpSale,
			Timestamp: time.Now().Unix(),
		}).Error; err != nil {
			return err
		}

		receipt = &TradeReceipt{
			OrderID:    uuid.NewString(),
			UserID:     userID,
			Operation:  models.OpSale,
			Symbol:     symbol,
			Name:       h.Name,
			Shares:     qty,
			Price:      q.Price,
			Total:      proceeds,
			NewBalance: acct.CashBalance,
		}
		return nil
	})
	if err != nil {
		return nil, e.classify("sell", userID, err)
	}

	e.logger.Info("Sell executed",
		zap.String("user_id", userID),
		zap.String("symbol", symbol),
		zap.Int64("shares", qty),
		zap.String("price", q.Price.String()),
		zap.String("proceeds", proceeds.String()),
	)
	return receipt, nil
}

// Quote returns the latest quote for a symbol without touching the ledger.
func (e *Engine) Quote(ctx context.Context, symbol string) (*quote.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, newError(KindInvalidSymbol, "symbol must not be empty")
	}
	return e.lookup(ctx, symbol)
}

// History returns the user's transaction records, most recent first.
func (e *Engine) History(ctx context.Context, userID string) ([]models.TransactionRecord, error) {
	records, err := e.store.ListHistory(ctx, userID)
	if err != nil {
		return nil, e.classify("history", userID, err)
	}
	return records, nil
}

// lookup fetches a quote under the configured deadline and maps provider
// failures onto the engine taxonomy.
func (e *Engine) lookup(ctx context.Context, symbol string) (*quote.Quote, error) {
	timeout := time.Duration(e.cfg.Quote.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultQuoteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		if quote.IsNotFound(err) {
			return nil, wrapError(KindSymbolNotFound, err, "symbol %s does not exist", symbol)
		}
		e.logger.Warn("Quote provider unavailable", zap.String("symbol", symbol), zap.Error(err))
		return nil, wrapError(KindUpstreamUnavailable, err, "no quote for %s at this time", symbol)
	}
	return q, nil
}

// classify turns store or transaction errors into typed engine errors.
// Engine errors raised inside an atomic unit pass through untouched.
func (e *Engine) classify(op, userID string, err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		return ee
	}
	if errors.Is(err, ledger.ErrNoHolding) {
		return wrapError(KindNoSuchPosition, err, "no position to sell")
	}
	e.logger.Error("Ledger operation failed",
		zap.String("operation", op),
		zap.String("user_id", userID),
		zap.Error(err),
	)
	return wrapError(KindStorage, err, "%s failed, no changes were applied", op)
}

func (e *Engine) minimumDeposit() decimal.Decimal {
	if min, err := decimal.NewFromString(e.cfg.Ledger.MinimumDeposit); err == nil {
		return min
	}
	return decimal.NewFromInt(1)
}

// lockedAccount loads the account row inside the current transaction.
func lockedAccount(tx *gorm.DB, userID string) (*models.Account, error) {
	var acct models.Account
	err := tx.Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrNoAccount
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// parseOrder validates the symbol and share count of an order. Shares must be
// a positive whole number; fractional or zero quantities are rejected.
func parseOrder(symbol, shares string) (string, int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", 0, newError(KindInvalidSymbol, "symbol must not be empty")
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(shares), 10, 64)
	if err != nil || qty < 1 {
		return "", 0, newError(KindInvalidQuantity, "shares %q must be a positive whole number", shares)
	}
	return symbol, qty, nil
}
