package account

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup) {
	account := router.Group("/account")
	account.GET("/summary", GetSummary)
	account.GET("/usage/daily", GetDailyUsage)
}
