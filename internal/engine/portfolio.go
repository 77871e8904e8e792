package engine

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PortfolioRow is one priced position in a portfolio view.
type PortfolioRow struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Shares      int64           `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	MarketValue decimal.Decimal `json:"market_value"`
	// PriceUnavailable marks a row whose quote lookup failed. The row keeps
	// its share count; price and market value are zero and excluded from the
	// net worth.
	PriceUnavailable bool `json:"price_unavailable,omitempty"`
}

// Portfolio is the read-only valuation of a user's ledger at current prices.
type Portfolio struct {
	UserID      string          `json:"user_id"`
	Rows        []PortfolioRow  `json:"rows"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	NetWorth    decimal.Decimal `json:"net_worth"`
	// Complete is false when at least one row could not be priced, so the
	// net worth understates the true total.
	Complete bool `json:"complete"`
}

// Portfolio prices every holding of the user at the latest quotes. Quotes are
// fetched concurrently, one lookup per holding; a failed lookup marks its row
// unavailable instead of aborting the whole view. Nothing is mutated.
func (e *Engine) Portfolio(ctx context.Context, userID string) (*Portfolio, error) {
	acct, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, e.classify("portfolio", userID, err)
	}
	holdings, err := e.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, e.classify("portfolio", userID, err)
	}

	rows := make([]PortfolioRow, len(holdings))
	var wg sync.WaitGroup
	for i, h := range holdings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row := PortfolioRow{Symbol: h.Symbol, Name: h.Name, Shares: h.Shares}
			q, err := e.lookup(ctx, h.Symbol)
			if err != nil {
				e.logger.Warn("Portfolio row left unpriced",
					zap.String("user_id", userID),
					zap.String("symbol", h.Symbol),
					zap.Error(err),
				)
				row.PriceUnavailable = true
			} else {
				row.Price = q.Price
				row.MarketValue = q.Price.Mul(decimal.NewFromInt(h.Shares))
			}
			rows[i] = row
		}()
	}
	wg.Wait()

	view := &Portfolio{
		UserID:      userID,
		Rows:        rows,
		CashBalance: acct.CashBalance,
		NetWorth:    acct.CashBalance,
		Complete:    true,
	}
	for _, row := range rows {
		if row.PriceUnavailable {
			view.Complete = false
			continue
		}
		view.NetWorth = view.NetWorth.Add(row.MarketValue)
	}
	return view, nil
}
