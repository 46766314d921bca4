package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/lotfolio/src/config"
	"github.com/username/lotfolio/src/database"
	"github.com/username/lotfolio/src/handlers"
	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/processors"
	"github.com/username/lotfolio/src/services"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Lotfolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	defer database.DB.Close()
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(config.Cfg.ReportCacheTTL, config.Cfg.ReportCacheCleanup)

	logger.L.Info("Initializing services and handlers...")
	matcher := processors.NewLotMatcher()
	lotService := services.NewLotService(database.DB, matcher, reportCache, config.Cfg.DefaultPageSize)
	transactionService := services.NewTransactionService(
		database.DB,
		processors.NewTransactionProcessor(),
		lotService,
		config.Cfg.AutoMatchOnImport,
		config.Cfg.DefaultPageSize,
	)
	accountService := services.NewAccountService(database.DB)
	annotationService := services.NewAnnotationService(database.DB)

	var scheduler *services.MatchScheduler
	if config.Cfg.MatchSchedule != "" {
		scheduler = services.NewMatchScheduler(lotService, 5*time.Minute)
		if err := scheduler.Start(config.Cfg.MatchSchedule); err != nil {
			logger.L.Error("Invalid MATCH_SCHEDULE", "schedule", config.Cfg.MatchSchedule, "error", err)
			os.Exit(1)
		}
	}

	logger.L.Info("Configuring routes...")
	router := handlers.NewRouter(handlers.RouterConfig{
		LotService:         lotService,
		TransactionService: transactionService,
		AccountService:     accountService,
		AnnotationService:  annotationService,
		AllowedOrigins:     config.Cfg.AllowedOrigins,
		Limiter:            rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst),
		MaxUploadSize:      config.Cfg.MaxUploadSizeBytes,
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.L.Info("Shutdown signal received")

	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Server shutdown failed", "error", err)
		return
	}
	logger.L.Info("Server stopped gracefully.")
}
