package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_scanner_backend/models"
	"market_scanner_backend/services/marketcache"
)

func newTestArchive(t *testing.T) *QuoteArchive {
	t.Helper()
	archive, err := NewQuoteArchive(filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestSnapshotAndWarmStart(t *testing.T) {
	archive := newTestArchive(t)

	cache := marketcache.New()
	cache.Put(marketcache.KindQuote, "AAPL", &models.Quote{Symbol: "AAPL", Price: 190.5, Volume: 50000000})
	cache.Put(marketcache.KindQuote, "MSFT", &models.Quote{Symbol: "MSFT", Price: 420.1, Volume: 20000000})

	require.NoError(t, archive.Snapshot(cache))

	count, err := archive.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// A cold cache warm-started from the archive serves the old data
	restored := marketcache.New()
	n, err := archive.WarmStart(restored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entry, ok := restored.Get(marketcache.KindQuote, "AAPL")
	require.True(t, ok)
	quote, ok := entry.Payload.(*models.Quote)
	require.True(t, ok)
	assert.Equal(t, 190.5, quote.Price)
}

func TestWarmStartPreservesTimestamps(t *testing.T) {
	archive := newTestArchive(t)

	cache := marketcache.New()
	old := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	cache.Restore(marketcache.KindQuote, "TSLA", &models.Quote{Symbol: "TSLA", Price: 250}, old)

	require.NoError(t, archive.Snapshot(cache))

	restored := marketcache.New()
	_, err := archive.WarmStart(restored)
	require.NoError(t, err)

	entry, ok := restored.Get(marketcache.KindQuote, "TSLA")
	require.True(t, ok)
	assert.WithinDuration(t, old, entry.LastUpdated, time.Second, "restored data must look as stale as it is")
}

func TestSnapshotReplacesPriorRows(t *testing.T) {
	archive := newTestArchive(t)

	cache := marketcache.New()
	cache.Put(marketcache.KindQuote, "AAPL", &models.Quote{Symbol: "AAPL", Price: 190.5})
	require.NoError(t, archive.Snapshot(cache))

	cache.Put(marketcache.KindQuote, "AAPL", &models.Quote{Symbol: "AAPL", Price: 195.0})
	require.NoError(t, archive.Snapshot(cache))

	count, err := archive.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	restored := marketcache.New()
	_, err = archive.WarmStart(restored)
	require.NoError(t, err)
	entry, _ := restored.Get(marketcache.KindQuote, "AAPL")
	assert.Equal(t, 195.0, entry.Payload.(*models.Quote).Price)
}

func TestSnapshotEmptyCacheIsNoop(t *testing.T) {
	archive := newTestArchive(t)

	require.NoError(t, archive.Snapshot(marketcache.New()))

	count, err := archive.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}
