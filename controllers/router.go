package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	HealthController    *HealthController
	AuthController      *AuthController
	DocumentsController *DocumentsController
	QueriesController   *QueriesController

	DB     *gorm.DB
	Logger *zap.SugaredLogger
	// AuthEnabled guards every endpoint except /health and /auth behind
	// bearer tokens.
	AuthEnabled bool
}

func (r Router) RegisterRoutes(router gin.IRouter) {
	//
	// Anonymous requests
	//
	router.GET("/health", r.HealthController.Status)

	api := router.Group("/")
	if r.AuthEnabled {
		router.POST("/auth", r.AuthController.SignIn)
		api.Use(RequireAuth(r.DB, r.Logger))
	}

	//
	// Document ingestion
	//
	api.POST("/upload", r.DocumentsController.Upload)
	api.POST("/content", r.DocumentsController.InsertContent)
	api.POST("/batch", r.DocumentsController.Batch)

	//
	// Queries
	//
	api.POST("/query", r.QueriesController.Query)
	api.POST("/multimodal-query", r.QueriesController.MultimodalQuery)
}
