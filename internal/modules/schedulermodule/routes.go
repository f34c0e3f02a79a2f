package schedulermodule

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// RegisterRoutes registers the scheduler module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	logger.Info("Registering scheduler module routes")

	api := router.Group("/api/scheduler")
	{
		api.GET("/jobs", m.listJobs)
		api.POST("/sync", m.syncSchedule)
	}
}

func (m *Module) listJobs(c *gin.Context) {
	var jobs []ScheduledJob
	if err := m.db.Order("name").Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	now := time.Now().UTC()
	due := 0
	for i := range jobs {
		if jobs[i].Due(now) {
			due++
		}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "due": due, "registered": m.scheduler.JobKeys()})
}

func (m *Module) syncSchedule(c *gin.Context) {
	result, err := SyncSchedule(m.db, config.Get().Schedule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
