package main

import (
	"log"

	"mediavault-backend/config"
	"mediavault-backend/internal/api"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/models"
	"mediavault-backend/internal/services"
	"mediavault-backend/pkg/logger"
)

// @title mediavault-backend API
// @version 1.0
// @description Storage credit ledger and upload admission control service.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFilename,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	router, err := api.NewRouter()
	if err != nil {
		log.Fatalf("failed to create router: %v", err)
	}

	// Migrate the schema
	err = database.DB.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.AccountStatus{},
		&models.LedgerEntry{},
		&models.Upload{},
		&models.PurchaseOrder{},
		&models.Purchase{},
		&models.PaymentConfig{},
		&models.RateLimitWindow{},
		&models.DailyMediaUsage{},
	)
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Reclaims credits from abandoned reservations
	go services.SweepMgr.Start()
	defer services.SweepMgr.Stop()

	if err := router.Run(":8080"); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
