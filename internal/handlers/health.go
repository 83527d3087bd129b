package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/services"
	"github.com/huangang/projecthub/backend/internal/workflow"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	db := models.GetDB()
	if db == nil {
		dbStatus = "error: database not initialized"
		overall = "unhealthy"
	} else if sqlDB, err := db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	queueMode := "sync"
	if q := services.GetTaskQueue(); q != nil && q.IsAsync() {
		queueMode = "async (Redis)"
	}

	components := gin.H{
		"database":   dbStatus,
		"queue_mode": queueMode,
	}

	if dbStatus == "ok" {
		var pending int64
		db.Model(&models.Project{}).Where("status = ?", workflow.StatusPending).Count(&pending)
		components["pending_projects"] = pending
		db.Model(&models.Workshop{}).Where("status = ?", workflow.StatusPending).Count(&pending)
		components["pending_workshops"] = pending
	} else {
		status = 503
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "projecthub",
		"components": components,
	})
}
