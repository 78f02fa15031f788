package payment

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/payments")
	payments.GET("/configs", ListPaymentConfigs)
	payments.POST("/configs", CreatePaymentConfig)
	payments.PUT("/configs/:id", UpdatePaymentConfig)
	payments.DELETE("/configs/:id", DeletePaymentConfig)
	payments.POST("/orders/:id/complete", CompleteOrder)
	payments.POST("/orders/:id/cancel", CancelOrder)
}
