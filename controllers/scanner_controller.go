package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"market_scanner_backend/services/marketcache"
	"market_scanner_backend/services/scanner"
	"market_scanner_backend/services/universe"
)

// ScannerController exposes the wave scanner, universe manager and
// data cache over HTTP. All endpoints serve some answer: a partial or
// empty batch and stale-but-marked cached data are normal responses,
// never 5xx failures.
type ScannerController struct {
	scanner  *scanner.WaveScanner
	universe *universe.Manager
	cache    *marketcache.Cache
}

// NewScannerController creates a new scanner controller
func NewScannerController(ws *scanner.WaveScanner, um *universe.Manager, cache *marketcache.Cache) *ScannerController {
	return &ScannerController{
		scanner:  ws,
		universe: um,
		cache:    cache,
	}
}

// GetStats returns cumulative scanner counters
// GET /api/v1/scanner/stats
func (sc *ScannerController) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, sc.scanner.Stats())
}

// GetConfig returns the static scanner configuration
// GET /api/v1/scanner/config
func (sc *ScannerController) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, sc.scanner.Config())
}

// GetRVOL returns the cached relative-volume estimate for a symbol
// GET /api/v1/scanner/rvol/:symbol
func (sc *ScannerController) GetRVOL(c *gin.Context) {
	symbol := universe.NormalizeSymbol(c.Param("symbol"))
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"rvol":   sc.scanner.SymbolRVOL(symbol),
	})
}

// GetUniverse returns the deduplicated universe, paginated
// GET /api/v1/universe
func (sc *ScannerController) GetUniverse(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 1000 {
		limit = 200
	}

	symbols := sc.universe.FullUniverse()
	total := len(symbols)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"data": symbols[start:end],
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
		"loaded_at": sc.universe.LoadedAt(),
	})
}

// GetWrapInfo returns coverage progress of the current pass
// GET /api/v1/universe/wrap-info
func (sc *ScannerController) GetWrapInfo(c *gin.Context) {
	size := sc.scanner.Config().WaveSize
	if raw := c.Query("wave_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}
	c.JSON(http.StatusOK, sc.universe.WrapInfo(size))
}

// GetCacheStats returns per-kind entry counts and connectivity info
// GET /api/v1/cache/stats
func (sc *ScannerController) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, sc.cache.Stats())
}

// GetCachedQuote returns the last known good quote for a symbol. A 404
// means the symbol was never fetched; it is the cache-miss "absent"
// outcome, not a failure.
// GET /api/v1/cache/quote/:symbol
func (sc *ScannerController) GetCachedQuote(c *gin.Context) {
	symbol := universe.NormalizeSymbol(c.Param("symbol"))
	entry, ok := sc.cache.Get(marketcache.KindQuote, symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached quote for symbol", "symbol": symbol})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetCachedHistorical returns cached historical bars for a symbol
// GET /api/v1/cache/historical/:symbol?duration=1D&bar_size=5min
func (sc *ScannerController) GetCachedHistorical(c *gin.Context) {
	symbol := universe.NormalizeSymbol(c.Param("symbol"))
	duration := c.DefaultQuery("duration", "1D")
	barSize := c.DefaultQuery("bar_size", "5min")

	key := marketcache.HistoricalKey(symbol, duration, barSize)
	entry, ok := sc.cache.Get(marketcache.KindHistorical, key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached historical data for key", "key": key})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetPendingRefresh lists symbols awaiting refresh since the last
// reconnect
// GET /api/v1/cache/pending-refresh
func (sc *ScannerController) GetPendingRefresh(c *gin.Context) {
	pending := sc.cache.PendingRefresh()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(pending),
		"symbols": pending,
	})
}
