package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"market_scanner_backend/services/watchlist"
)

// WatchlistController handles watchlist CRUD requests
type WatchlistController struct {
	watchlist *watchlist.Service
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(wl *watchlist.Service) *WatchlistController {
	return &WatchlistController{watchlist: wl}
}

// GetWatchlist returns all watchlist entries
// GET /api/v1/watchlist
func (wc *WatchlistController) GetWatchlist(c *gin.Context) {
	entries, err := wc.watchlist.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load watchlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "total": len(entries)})
}

// addWatchlistRequest is the add/update payload
type addWatchlistRequest struct {
	Symbol     string          `json:"symbol" binding:"required"`
	Note       string          `json:"note"`
	AddedPrice decimal.Decimal `json:"added_price"`
}

// AddToWatchlist inserts or updates a watchlist entry
// POST /api/v1/watchlist
func (wc *WatchlistController) AddToWatchlist(c *gin.Context) {
	var req addWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	entry, err := wc.watchlist.Add(req.Symbol, req.Note, req.AddedPrice)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save watchlist entry"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RemoveFromWatchlist deletes a watchlist entry
// DELETE /api/v1/watchlist/:symbol
func (wc *WatchlistController) RemoveFromWatchlist(c *gin.Context) {
	if err := wc.watchlist.Remove(c.Param("symbol")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove watchlist entry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
