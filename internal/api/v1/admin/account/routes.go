package account

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup) {
	accounts := router.Group("/accounts")
	accounts.GET("", ListAccounts)
	accounts.POST("/:id/adjust", AdjustCredits)
	accounts.POST("/:id/freeze", FreezeAccount)
	accounts.POST("/:id/unfreeze", UnfreezeAccount)
	accounts.GET("/:id/reconcile", ReconcileAccount)
}
