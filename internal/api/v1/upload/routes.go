package upload

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup) {
	uploads := router.Group("/uploads")
	uploads.POST("", BeginUpload)
	uploads.GET("", ListUploads)
	uploads.GET("/:id", GetUpload)
	uploads.POST("/:id/finalize", FinalizeUpload)
	uploads.POST("/:id/fail", FailUpload)

	router.GET("/storage/token", GetStorageToken)
}
