package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, middleware ...gin.HandlerFunc) {
	authGroup := router.Group("/auth", middleware...)
	{
		authGroup.GET("/ping", handler.Ping)
		authGroup.POST("/token", handler.Token)
	}
}
