package datafetcher

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_scanner_backend/models"
	"market_scanner_backend/services/marketcache"
)

func TestGetQuotesBatchParsesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL,MSFT", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"symbol":"AAPL","price":190.5,"change":1.2,"change_percent":0.63,"volume":50000000,"avg_volume":60000000},
			{"symbol":"MSFT","price":420.1,"volume":20000000}
		]}`))
	}))
	defer server.Close()

	cache := marketcache.New()
	client := NewQuoteClient(server.URL, cache)

	quotes, err := client.GetQuotesBatch([]string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, 190.5, quotes["AAPL"].Price)
	assert.Equal(t, 420.1, quotes["MSFT"].Price)

	// Fresh quotes must land in the cache
	entry, ok := cache.Get(marketcache.KindQuote, "AAPL")
	require.True(t, ok)
	quote, ok := entry.Payload.(*models.Quote)
	require.True(t, ok)
	assert.Equal(t, 190.5, quote.Price)
}

func TestGetQuotesBatchParsesBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"tsla","price":250.0,"volume":80000000}]`))
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, marketcache.New())

	quotes, err := client.GetQuotesBatch([]string{"TSLA"})
	require.NoError(t, err)
	require.Contains(t, quotes, "TSLA", "symbols are normalized to upper case")
	assert.Equal(t, 250.0, quotes["TSLA"].Price)
}

func TestGetQuoteSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"symbol":"NVDA","price":130.25,"volume":300000000}]}`))
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, marketcache.New())

	quote, err := client.GetQuote("nvda")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, "NVDA", quote.Symbol)
	assert.Equal(t, 130.25, quote.Price)
}

func TestGetQuoteAbsentSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, marketcache.New())

	quote, err := client.GetQuote("ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestGetQuotesBatchEmptyInput(t *testing.T) {
	client := NewQuoteClient("", nil)

	quotes, err := client.GetQuotesBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestGetQuotesBatchUnconfigured(t *testing.T) {
	client := NewQuoteClient("", nil)

	_, err := client.GetQuotesBatch([]string{"AAPL"})
	assert.Error(t, err)
}

func TestConnectivityTransitions(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"symbol":"AAPL","price":190.0,"volume":1000000}]}`))
	}))
	defer server.Close()

	cache := marketcache.New()
	client := NewQuoteClient(server.URL, cache)

	assert.False(t, client.Connected())

	_, err := client.GetQuotesBatch([]string{"AAPL"})
	require.NoError(t, err)
	assert.True(t, client.Connected())
	assert.True(t, cache.Connected())

	// Seed a second cached quote that won't be refreshed on reconnect
	cache.Put(marketcache.KindQuote, "MSFT", &models.Quote{Symbol: "MSFT", Price: 400, Timestamp: time.Now()})

	failing.Store(true)
	_, err = client.GetQuotesBatch([]string{"AAPL"})
	require.Error(t, err)
	assert.False(t, client.Connected())
	assert.False(t, cache.Connected())

	// Cached data survives the outage untouched
	_, ok := cache.Get(marketcache.KindQuote, "MSFT")
	assert.True(t, ok)

	failing.Store(false)
	_, err = client.GetQuotesBatch([]string{"AAPL"})
	require.NoError(t, err)
	assert.True(t, client.Connected())

	// Reconnect marks every cached quote pending; the fresh AAPL write
	// clears its own flag, leaving MSFT awaiting refresh
	pending := cache.PendingRefresh()
	assert.Contains(t, pending, "MSFT")
	assert.NotContains(t, pending, "AAPL")
}

func TestServerErrorReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, marketcache.New())

	_, err := client.GetQuotesBatch([]string{"AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
