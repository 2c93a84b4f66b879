package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"market_scanner_backend/scheduler"
	"market_scanner_backend/services"
	"market_scanner_backend/services/scanner"
	"market_scanner_backend/services/universe"
)

// AdminController handles privileged maintenance actions, guarded by
// the JWT middleware
type AdminController struct {
	scheduler *scheduler.Scheduler
	scanner   *scanner.WaveScanner
	universe  *universe.Manager
	mongo     *services.MongoDBClient
	archive   *services.QuoteArchive
}

// NewAdminController creates a new admin controller. mongo and archive
// may be nil.
func NewAdminController(sched *scheduler.Scheduler, ws *scanner.WaveScanner, um *universe.Manager,
	mongo *services.MongoDBClient, archive *services.QuoteArchive) *AdminController {
	return &AdminController{
		scheduler: sched,
		scanner:   ws,
		universe:  um,
		mongo:     mongo,
		archive:   archive,
	}
}

// ReloadUniverse re-resolves index lists and reloads the universe
// POST /api/v1/admin/actions/reload-universe
func (ac *AdminController) ReloadUniverse(c *gin.Context) {
	ac.scheduler.ReloadUniverse()
	c.JSON(http.StatusOK, gin.H{
		"status":        "reloaded",
		"total_symbols": ac.universe.Size(),
		"loaded_at":     ac.universe.LoadedAt(),
	})
}

// RefreshHotPool forces a hot-pool refresh on the next scan cycle
// POST /api/v1/admin/actions/refresh-hot-pool
func (ac *AdminController) RefreshHotPool(c *gin.Context) {
	ac.scanner.InvalidateHotPool()
	c.JSON(http.StatusOK, gin.H{"status": "hot pool invalidated"})
}

// GetSystemStatus reports storage and connectivity diagnostics
// GET /api/v1/admin/status
func (ac *AdminController) GetSystemStatus(c *gin.Context) {
	status := gin.H{
		"scanner":  ac.scanner.Stats(),
		"universe": ac.universe.WrapInfo(ac.scanner.Config().WaveSize),
	}
	if ac.mongo != nil {
		status["mongodb"] = ac.mongo.GetConnectionStatus()
	}
	if ac.archive != nil {
		if count, err := ac.archive.Count(); err == nil {
			status["quote_archive"] = gin.H{"quotes": count}
		}
	}
	c.JSON(http.StatusOK, status)
}
