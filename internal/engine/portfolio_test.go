package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"paper-broker-go/internal/models"
	"paper-broker-go/internal/quote"
)

func TestPortfolio_Empty(t *testing.T) {
	e, provider, _ := setupEngine(t, "10000.00")

	view, err := e.Portfolio(context.Background(), "alice")

	assert.NoError(t, err)
	assert.Empty(t, view.Rows)
	assert.True(t, view.CashBalance.Equal(dec(t, "10000.00")))
	assert.True(t, view.NetWorth.Equal(dec(t, "10000.00")))
	assert.True(t, view.Complete)
	provider.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestPortfolio_PricesAllHoldings(t *testing.T) {
	e, provider, _ := setupEngine(t, "10000.00")
	provider.On("Lookup", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()
	provider.On("Lookup", mock.Anything, "MSFT").
		Return(&quote.Quote{Symbol: "MSFT", Name: "Microsoft Corp", Price: dec(t, "400.00")}, nil).Once()

	_, err := e.Buy(context.Background(), "alice", "AAPL", "10")
	assert.NoError(t, err)
	_, err = e.Buy(context.Background(), "alice", "MSFT", "2")
	assert.NoError(t, err)

	// Fresh quotes for the view itself.
	provider.On("Lookup", mock.Anything, "AAPL").Return(aapl("160.00"), nil).Once()
	provider.On("Lookup", mock.Anything, "MSFT").
		Return(&quote.Quote{Symbol: "MSFT", Name: "Microsoft Corp", Price: dec(t, "410.00")}, nil).Once()

	view, err := e.Portfolio(context.Background(), "alice")

	assert.NoError(t, err)
	assert.True(t, view.Complete)
	assert.Len(t, view.Rows, 2)
	// Rows follow the store's symbol ordering.
	assert.Equal(t, "AAPL", view.Rows[0].Symbol)
	assert.True(t, view.Rows[0].MarketValue.Equal(dec(t, "1600.00")))
	assert.Equal(t, "MSFT", view.Rows[1].Symbol)
	assert.True(t, view.Rows[1].MarketValue.Equal(dec(t, "820.00")))

	// cash 10000 - 1500 - 800 = 7700; net worth 7700 + 1600 + 820.
	assert.True(t, view.CashBalance.Equal(dec(t, "7700.00")))
	assert.True(t, view.NetWorth.Equal(dec(t, "10120.00")))
	provider.AssertExpectations(t)
}

func TestPortfolio_PartialQuoteFailure(t *testing.T) {
	e, provider, store := setupEngine(t, "10000.00")
	provider.On("Lookup", mock.Anything, "AAPL").Return(aapl("100.00"), nil).Once()
	provider.On("Lookup", mock.Anything, "MSFT").
		Return(&quote.Quote{Symbol: "MSFT", Name: "Microsoft Corp", Price: dec(t, "400.00")}, nil).Once()

	_, err := e.Buy(context.Background(), "alice", "AAPL", "5")
	assert.NoError(t, err)
	_, err = e.Buy(context.Background(), "alice", "MSFT", "1")
	assert.NoError(t, err)

	provider.On("Lookup", mock.Anything, "AAPL").Return(aapl("110.00"), nil).Once()
	provider.On("Lookup", mock.Anything, "MSFT").
		Return(nil, &quote.Error{Kind: quote.KindUnavailable, Symbol: "MSFT", Detail: "down"}).Once()

	view, err := e.Portfolio(context.Background(), "alice")

	// One dead quote must not abort the whole view.
	assert.NoError(t, err)
	assert.Len(t, view.Rows, 2)
	assert.False(t, view.Complete)

	assert.False(t, view.Rows[0].PriceUnavailable)
	assert.True(t, view.Rows[0].MarketValue.Equal(dec(t, "550.00")))

	assert.True(t, view.Rows[1].PriceUnavailable)
	assert.Equal(t, int64(1), view.Rows[1].Shares)
	assert.True(t, view.Rows[1].MarketValue.IsZero())

	// cash 10000 - 500 - 400 = 9100; only the priced row counts.
	assert.True(t, view.NetWorth.Equal(dec(t, "9650.00")))

	// The unpriced holding itself is untouched.
	h, err := store.GetHolding(context.Background(), "alice", "MSFT")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), h.Shares)
}

func TestHistory_ReturnsRecordsNewestFirst(t *testing.T) {
	e, provider, _ := setupEngine(t, "10000.00")
	provider.On("Lookup", mock.Anything, "AAPL").Return(aapl("100.00"), nil)

	_, err := e.Deposit(context.Background(), "alice", "500.00")
	assert.NoError(t, err)
	_, err = e.Buy(context.Background(), "alice", "AAPL", "2")
	assert.NoError(t, err)
	_, err = e.Sell(context.Background(), "alice", "AAPL", "2")
	assert.NoError(t, err)

	history, err := e.History(context.Background(), "alice")

	assert.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, models.OpSale, history[0].Operation)
	assert.Equal(t, models.OpPurchase, history[1].Operation)
	assert.Equal(t, models.OpDeposit, history[2].Operation)
}
