package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"market_scanner_backend/config"
	"market_scanner_backend/controllers"
	"market_scanner_backend/middleware"
	"market_scanner_backend/scheduler"
	"market_scanner_backend/services"
	"market_scanner_backend/services/marketcache"
	"market_scanner_backend/services/scanner"
	"market_scanner_backend/services/universe"
	"market_scanner_backend/services/watchlist"
)

// Deps carries the constructed service instances the routes expose
type Deps struct {
	Config    *config.Config
	Scanner   *scanner.WaveScanner
	Universe  *universe.Manager
	Cache     *marketcache.Cache
	Watchlist *watchlist.Service
	Scheduler *scheduler.Scheduler
	Realtime  *services.RealtimeScanService
	Mongo     *services.MongoDBClient
	Archive   *services.QuoteArchive
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	loginRateLimiter := middleware.NewRateLimiter(5, 15*time.Minute, 30*time.Minute)

	scannerController := controllers.NewScannerController(deps.Scanner, deps.Universe, deps.Cache)
	watchlistController := controllers.NewWatchlistController(deps.Watchlist)
	authController := controllers.NewAuthController(deps.Config.JWTSecret, deps.Config.AdminPasswordHash, loginRateLimiter)
	adminController := controllers.NewAdminController(deps.Scheduler, deps.Scanner, deps.Universe, deps.Mongo, deps.Archive)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Scanner routes
		scannerRoutes := api.Group("/scanner")
		{
			scannerRoutes.GET("/stats", scannerController.GetStats)
			scannerRoutes.GET("/config", scannerController.GetConfig)
			scannerRoutes.GET("/rvol/:symbol", scannerController.GetRVOL)
		}

		// Universe routes
		universeRoutes := api.Group("/universe")
		{
			universeRoutes.GET("", scannerController.GetUniverse)
			universeRoutes.GET("/wrap-info", scannerController.GetWrapInfo)
		}

		// Cache routes
		cacheRoutes := api.Group("/cache")
		{
			cacheRoutes.GET("/stats", scannerController.GetCacheStats)
			cacheRoutes.GET("/quote/:symbol", scannerController.GetCachedQuote)
			cacheRoutes.GET("/historical/:symbol", scannerController.GetCachedHistorical)
			cacheRoutes.GET("/pending-refresh", scannerController.GetPendingRefresh)
		}

		// Watchlist routes
		watchlistRoutes := api.Group("/watchlist")
		{
			watchlistRoutes.GET("", watchlistController.GetWatchlist)
			watchlistRoutes.POST("", watchlistController.AddToWatchlist)
			watchlistRoutes.DELETE("/:symbol", watchlistController.RemoveFromWatchlist)
		}

		// Admin routes
		adminRoutes := api.Group("/admin")
		{
			adminRoutes.POST("/login", middleware.LoginRateLimitMiddleware(loginRateLimiter), authController.Login)

			protected := adminRoutes.Group("")
			protected.Use(middleware.JWTAuthMiddleware(deps.Config.JWTSecret))
			{
				protected.GET("/status", adminController.GetSystemStatus)
				protected.POST("/actions/reload-universe", adminController.ReloadUniverse)
				protected.POST("/actions/refresh-hot-pool", adminController.RefreshHotPool)
			}
		}
	}

	// WebSocket stream of scan cycle events
	if deps.Realtime != nil {
		router.GET("/ws/scans", func(c *gin.Context) {
			deps.Realtime.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
