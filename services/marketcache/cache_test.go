package marketcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quotePayload struct {
	Price  float64
	Volume float64
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New()
	before := time.Now()

	c.Put(KindQuote, "AAPL", quotePayload{Price: 100})

	entry, ok := c.Get(KindQuote, "AAPL")
	require.True(t, ok)
	assert.Equal(t, quotePayload{Price: 100}, entry.Payload)
	assert.True(t, entry.IsCached, "reads must be marked as served from cache")
	assert.False(t, entry.LastUpdated.Before(before))
}

func TestGetMissIsAbsent(t *testing.T) {
	c := New()
	_, ok := c.Get(KindQuote, "NVDA")
	assert.False(t, ok)
}

func TestPutOverwritesPriorEntry(t *testing.T) {
	c := New()
	c.Put(KindQuote, "AAPL", quotePayload{Price: 100})
	c.Put(KindQuote, "AAPL", quotePayload{Price: 101})

	entry, ok := c.Get(KindQuote, "AAPL")
	require.True(t, ok)
	assert.Equal(t, quotePayload{Price: 101}, entry.Payload)
}

func TestCachedDataSurvivesDisconnect(t *testing.T) {
	c := New()
	c.Put(KindQuote, "AAPL", quotePayload{Price: 100})

	c.OnDisconnected()
	entry, ok := c.Get(KindQuote, "AAPL")
	require.True(t, ok, "disconnect must not drop cached payloads")
	assert.Equal(t, quotePayload{Price: 100}, entry.Payload)
	assert.True(t, entry.IsCached)

	c.OnConnected()
	entry, ok = c.Get(KindQuote, "AAPL")
	require.True(t, ok, "reconnect must not drop cached payloads either")
	assert.Equal(t, quotePayload{Price: 100}, entry.Payload)
}

func TestReconnectBookkeeping(t *testing.T) {
	c := New()
	c.Put(KindQuote, "AAPL", quotePayload{})
	c.Put(KindQuote, "MSFT", quotePayload{})

	assert.Empty(t, c.PendingRefresh())

	c.OnConnected()
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, c.PendingRefresh())

	c.MarkRefreshed("AAPL")
	assert.ElementsMatch(t, []string{"MSFT"}, c.PendingRefresh())

	c.MarkRefreshed("MSFT")
	assert.Empty(t, c.PendingRefresh())

	// Marking an unknown key is a silent no-op
	c.MarkRefreshed("TSLA")
	assert.Empty(t, c.PendingRefresh())
}

func TestFreshWriteClearsPendingRefresh(t *testing.T) {
	c := New()
	c.Put(KindQuote, "AAPL", quotePayload{Price: 100})
	c.OnConnected()
	require.Len(t, c.PendingRefresh(), 1)

	c.Put(KindQuote, "AAPL", quotePayload{Price: 101})
	assert.Empty(t, c.PendingRefresh(), "a fresh quote write counts as a refresh")
}

func TestHistoricalCompositeKey(t *testing.T) {
	c := New()
	key1 := HistoricalKey("AAPL", "1D", "5min")
	key2 := HistoricalKey("AAPL", "1D", "1min")

	c.Put(KindHistorical, key1, "five-minute-bars")
	c.Put(KindHistorical, key2, "one-minute-bars")

	entry, ok := c.Get(KindHistorical, key1)
	require.True(t, ok)
	assert.Equal(t, "five-minute-bars", entry.Payload)

	entry, ok = c.Get(KindHistorical, key2)
	require.True(t, ok)
	assert.Equal(t, "one-minute-bars", entry.Payload)
}

func TestRestorePreservesTimestamp(t *testing.T) {
	c := New()
	stale := time.Now().Add(-48 * time.Hour)
	c.Restore(KindQuote, "AAPL", quotePayload{Price: 95}, stale)

	entry, ok := c.Get(KindQuote, "AAPL")
	require.True(t, ok)
	assert.Equal(t, stale, entry.LastUpdated, "restored entries must look as stale as they are")
	assert.True(t, entry.IsCached)
}

func TestStats(t *testing.T) {
	c := New()
	c.Put(KindQuote, "AAPL", quotePayload{})
	c.Put(KindQuote, "MSFT", quotePayload{})
	c.Put(KindAccount, "account", "snapshot")
	c.OnConnected()
	c.MarkRefreshed("AAPL")

	stats := c.Stats()
	assert.Equal(t, 2, stats.Counts[KindQuote])
	assert.Equal(t, 1, stats.Counts[KindAccount])
	assert.Equal(t, 0, stats.Counts[KindNews])
	assert.True(t, stats.Connected)
	assert.NotNil(t, stats.LastConnectedAt)
	assert.Equal(t, 1, stats.PendingRefresh)

	c.OnDisconnected()
	stats = c.Stats()
	assert.False(t, stats.Connected)
	assert.NotNil(t, stats.LastDisconnectedAt)
}

func TestKeysAndEntries(t *testing.T) {
	c := New()
	c.Put(KindQuote, "AAPL", quotePayload{Price: 1})
	c.Put(KindQuote, "MSFT", quotePayload{Price: 2})

	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, c.Keys(KindQuote))

	entries := c.Entries(KindQuote)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, e.IsCached)
	}
}
