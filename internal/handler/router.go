package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lromeral/sitechat/internal/middleware"
)

type RouterDeps struct {
	Chat          *ChatHandler
	Admin         *AdminHandler
	JWTSecret     []byte
	RatePerMinute int
	RateBurst     int
	RateBurstWin  time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	chatGroup := api.Group("/chat")
	chatGroup.Use(middleware.OptionalAuth(deps.JWTSecret))
	chatGroup.Use(middleware.RateLimit(deps.RatePerMinute, deps.RateBurst, deps.RateBurstWin))
	chatGroup.POST("/message", deps.Chat.Message)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	adminGroup.POST("/index/post/:id", deps.Admin.IndexPost)
	adminGroup.POST("/index/product/:id", deps.Admin.IndexProduct)
	adminGroup.POST("/index/term/:id", deps.Admin.IndexTerm)
	adminGroup.POST("/index/site", deps.Admin.IndexSite)
	adminGroup.POST("/index/document", deps.Admin.IndexDocument)
	adminGroup.POST("/index/rendered", deps.Admin.IndexRendered)
	adminGroup.POST("/index/queries", deps.Admin.IndexQueries)
	adminGroup.POST("/index/all", deps.Admin.ReindexAll)
	adminGroup.DELETE("/index/:type/:id", deps.Admin.DeleteSource)
	adminGroup.GET("/status", deps.Admin.Status)
}
