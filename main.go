package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"market_scanner_backend/config"
	"market_scanner_backend/models"
	"market_scanner_backend/routes"
	"market_scanner_backend/scheduler"
	"market_scanner_backend/services"
	"market_scanner_backend/services/datafetcher"
	"market_scanner_backend/services/marketcache"
	"market_scanner_backend/services/scanner"
	"market_scanner_backend/services/universe"
	"market_scanner_backend/services/watchlist"
)

// coreInitialized tracks whether the scanner core has finished its
// background initialization, for the /ready health endpoint
var coreInitialized bool
var coreInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Market Scanner Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Health endpoints come first so orchestrators can detect the
	// service before the core finishes initializing
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Build the scanner core and supporting services in the background
	var jobScheduler *scheduler.Scheduler
	var realtime *services.RealtimeScanService
	go func() {
		// Optional PostgreSQL for watchlist and scan journal
		var db *gorm.DB
		if gormDB, err := config.InitDB(cfg); err != nil {
			log.Printf("Running without PostgreSQL: %v", err)
		} else {
			db = gormDB
			if err := runMigrations(db); err != nil {
				log.Printf("ERROR: Migration failed: %v", err)
			}
		}

		// Optional MongoDB for index list persistence
		mongo := services.NewMongoDBClient(cfg.MongoURI, cfg.MongoDBName)
		if err := mongo.Connect(); err != nil {
			log.Printf("MongoDB not configured or failed to connect: %v", err)
		}

		// Data cache with warm start from the local quote archive
		cache := marketcache.New()
		archive, err := services.NewQuoteArchive(cfg.QuoteArchivePath)
		if err != nil {
			log.Printf("Quote archive unavailable: %v", err)
			archive = nil
		} else {
			if _, err := archive.WarmStart(cache); err != nil {
				log.Printf("Quote archive warm start failed: %v", err)
			}
		}

		// Universe manager seeded from the index list service
		indexList := services.NewIndexListService(cfg.IndexAPIURL, mongo)
		universeMgr := universe.NewManager()
		universeMgr.Load(indexList.FetchIndexLists())

		// Collaborators and the wave scanner itself
		fetcher := datafetcher.NewQuoteClient(cfg.QuoteAPIURL, cache)
		watchlistSvc := watchlist.NewService(db)
		waveScanner := scanner.NewWaveScanner(cfg.Scanner, universeMgr, watchlistSvc, fetcher, nil)

		// WebSocket broadcast hub
		realtime = services.NewRealtimeScanService()
		go realtime.Run()

		// Background scheduler driving the scan loop
		jobScheduler = scheduler.NewScheduler(cfg, db, waveScanner, universeMgr, cache, fetcher, indexList, archive, realtime, mongo)
		jobScheduler.Start()

		routes.SetupRoutes(router, routes.Deps{
			Config:    cfg,
			Scanner:   waveScanner,
			Universe:  universeMgr,
			Cache:     cache,
			Watchlist: watchlistSvc,
			Scheduler: jobScheduler,
			Realtime:  realtime,
			Mongo:     mongo,
			Archive:   archive,
		})

		coreInitMutex.Lock()
		coreInitialized = true
		coreInitMutex.Unlock()

		log.Println("Application fully initialized")
	}()

	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if realtime != nil {
			realtime.Shutdown()
		}
	})
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := models.MigrateScanModels(db); err != nil {
		return err
	}
	if err := models.MigrateWatchlistModels(db); err != nil {
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// setupHealthEndpoints registers liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Market Scanner Backend is running",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		coreInitMutex.RLock()
		ready := coreInitialized
		coreInitMutex.RUnlock()

		if !ready {
			c.JSON(503, gin.H{"status": "initializing"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
}

// corsMiddleware allows cross-origin API access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger logs each request with latency
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// gracefulShutdown waits for a signal then drains the server
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
