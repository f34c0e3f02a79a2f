package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"
)

var startedAt = time.Now()

// handleHealthCheck reports liveness plus a database ping.
func handleHealthCheck(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"

	if db := database.GetDB(); db != nil {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			status = "degraded"
			dbStatus = err.Error()
		}
	} else {
		status = "degraded"
		dbStatus = "not initialized"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbStatus,
		"uptime":   time.Since(startedAt).Round(time.Second).String(),
	})
}

// handleSystemStatus reports host-level metrics for the admin dashboard.
func handleSystemStatus(c *gin.Context) {
	resp := gin.H{"uptime": time.Since(startedAt).Round(time.Second).String()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = gin.H{
			"total":        vm.Total,
			"used":         vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}
	if info, err := host.Info(); err == nil {
		resp["host"] = gin.H{
			"hostname": info.Hostname,
			"os":       info.OS,
			"platform": info.Platform,
			"uptime":   info.Uptime,
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleListModules lists the registered modules and their status.
func handleListModules(c *gin.Context) {
	type moduleInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Core bool   `json:"core"`
	}
	var out []moduleInfo
	for _, m := range modulemanager.ListModules() {
		out = append(out, moduleInfo{ID: m.ID(), Name: m.Name(), Core: m.Core()})
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}

// handleRecentEvents returns the buffered recent events.
func handleRecentEvents(c *gin.Context) {
	bus := events.GetGlobalEventBus()
	if bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not running"})
		return
	}
	recent := bus.RecentEvents()
	c.JSON(http.StatusOK, gin.H{"events": recent, "count": len(recent)})
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// handleEventStream streams bus events to a websocket client until it
// disconnects.
func handleEventStream(c *gin.Context) {
	bus := events.GetGlobalEventBus()
	if bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not running"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	// Buffered so a slow client drops events instead of blocking the bus.
	stream := make(chan events.Event, 64)
	unsubscribe := bus.Subscribe(nil, func(event events.Event) {
		select {
		case stream <- event:
		default:
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event := <-stream:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// handleGetConfig returns the active configuration with secrets redacted.
func handleGetConfig(c *gin.Context) {
	cfg := *config.Get()
	if cfg.Spond.Token != "" {
		cfg.Spond.Token = "[redacted]"
	}
	if cfg.Email.SendgridKey != "" {
		cfg.Email.SendgridKey = "[redacted]"
	}
	if cfg.Database.Password != "" {
		cfg.Database.Password = "[redacted]"
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}
