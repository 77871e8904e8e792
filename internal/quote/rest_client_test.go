package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:    client,
		apiKey:    "test_api_key",
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		retryWait: time.Millisecond,             // Keep retry backoff out of test time
	}

	return rc, server
}

func TestLookup_Success(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test_api_key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/iex/AAPL":
			_, _ = w.Write([]byte(`[{"ticker":"AAPL","last":150.25,"timestamp":"2024-06-03T15:30:00Z"}]`))
		case "/tiingo/daily/AAPL":
			_, _ = w.Write([]byte(`{"ticker":"AAPL","name":"Apple Inc"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	// Act
	q, err := rc.Lookup(context.Background(), "AAPL")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "Apple Inc", q.Name)
	assert.Equal(t, "150.25", q.Price.String())
	assert.Equal(t, 2024, q.Timestamp.Year())
}

func TestLookup_FallsBackToTngoLast(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/iex/MSFT":
			_, _ = w.Write([]byte(`[{"ticker":"MSFT","last":0,"tngoLast":410.5,"timestamp":"2024-06-03T15:30:00Z"}]`))
		case "/tiingo/daily/MSFT":
			_, _ = w.Write([]byte(`{"ticker":"MSFT","name":"Microsoft Corp"}`))
		}
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	q, err := rc.Lookup(context.Background(), "MSFT")

	assert.NoError(t, err)
	assert.Equal(t, "410.5", q.Price.String())
}

func TestLookup_SymbolNotFound(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	// Act
	q, err := rc.Lookup(context.Background(), "ZZZZ")

	// Assert
	assert.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnavailable(err))
}

func TestLookup_EmptyPriceData(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	q, err := rc.Lookup(context.Background(), "GONE")

	assert.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, IsNotFound(err))
}

func TestLookup_UpstreamError(t *testing.T) {
	// Arrange
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	// Act
	q, err := rc.Lookup(context.Background(), "AAPL")

	// Assert
	assert.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 3, calls) // Server errors are retried before giving up
}

func TestLookup_ContextTimeout(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Act
	q, err := rc.Lookup(ctx, "AAPL")

	// Assert
	assert.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, IsUnavailable(err))
}

func TestLookup_EmptySymbol(t *testing.T) {
	rc, server := setupTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty symbol")
	}))
	defer server.Close()

	q, err := rc.Lookup(context.Background(), "")

	assert.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, IsNotFound(err))
}
