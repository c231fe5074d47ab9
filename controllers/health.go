package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthController struct {
	DB     *gorm.DB
	Logger *zap.SugaredLogger
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func (h HealthController) Status(c *gin.Context) {
	if err := h.DB.Raw(`SELECT 1`).Row().Err(); err != nil {
		h.Logger.Errorw("database ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now(),
			Message:   "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Message:   "Simple RAG API is running",
	})
}
