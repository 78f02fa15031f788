package purchase

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup) {
	h := NewHandler()

	purchases := router.Group("/purchases")
	purchases.GET("/methods", h.GetPaymentMethods)
	purchases.POST("/orders", h.CreateOrder)
	purchases.GET("/orders", h.ListOrders)
	purchases.POST("/orders/:id/pay", h.PayOrder)
}

// RegisterPublicRoutes mounts the gateway callback, which carries its own
// signature verification instead of a bearer token.
func RegisterPublicRoutes(router *gin.RouterGroup) {
	h := NewHandler()

	router.GET("/purchases/notify/:uuid", h.Notify)
	router.POST("/purchases/notify/:uuid", h.Notify)
}
