package api

import (
	"mediavault-backend/config"
	_ "mediavault-backend/docs"
	"mediavault-backend/internal/api/v1/account"
	adminAccount "mediavault-backend/internal/api/v1/admin/account"
	adminLedger "mediavault-backend/internal/api/v1/admin/ledger"
	adminPayment "mediavault-backend/internal/api/v1/admin/payment"
	adminUser "mediavault-backend/internal/api/v1/admin/user"
	"mediavault-backend/internal/api/v1/auth"
	"mediavault-backend/internal/api/v1/purchase"
	"mediavault-backend/internal/api/v1/upload"
	"mediavault-backend/internal/database"
	"mediavault-backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter() (*gin.Engine, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	_, err = database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}

	err = database.ConnectRedis(cfg)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := router.Group("/api/v1")
	{
		auth.RegisterRoutes(v1)

		// Gateway callbacks verify their own signatures
		purchase.RegisterPublicRoutes(v1)

		authorized := v1.Group("/")
		authorized.Use(middleware.AuthMiddleware())
		{
			account.RegisterRoutes(authorized)
			upload.RegisterRoutes(authorized)
			purchase.RegisterRoutes(authorized)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			adminUser.RegisterRoutes(admin)
			adminAccount.RegisterRoutes(admin)
			adminLedger.RegisterRoutes(admin)
			adminPayment.RegisterRoutes(admin)
		}
	}

	return router, nil
}
