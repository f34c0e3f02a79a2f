// Package server assembles the HTTP API: event bus, module system, and
// the core routes every deployment gets.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/middleware"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"
	"github.com/redbridgehc/clubhouse/internal/modules/schedulermodule"

	// Import all modules to trigger their registration
	_ "github.com/redbridgehc/clubhouse/internal/modules/incidentsmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/membershipsmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/membersmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/schedulermodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/spondmodule"
	_ "github.com/redbridgehc/clubhouse/internal/modules/tasksmodule"
)

// systemEventBus is the process-wide bus, started once in SetupRouter.
var systemEventBus events.EventBus

var moduleInitialized bool

// SetupRouter configures and returns the main router
func SetupRouter() *gin.Engine {
	r := gin.Default()

	// CORS middleware for development
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorLogger())

	if err := initializeEventBus(); err != nil {
		logger.Error("failed to initialize event bus", logger.Err(err))
	}
	if err := initializeModules(); err != nil {
		logger.Error("failed to initialize modules", logger.Err(err))
	}

	setupCoreRoutes(r)
	modulemanager.RegisterRoutes(r)

	return r
}

// initializeEventBus starts the process-wide event bus and registers it
// globally so modules can publish without holding a reference.
func initializeEventBus() error {
	if systemEventBus != nil {
		return nil
	}
	bus := events.NewEventBus(events.DefaultEventBusConfig())
	if err := bus.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	systemEventBus = bus
	events.SetGlobalEventBus(bus)
	return nil
}

// initializeModules migrates and initializes all registered modules.
func initializeModules() error {
	if moduleInitialized {
		return nil
	}
	if err := modulemanager.LoadAll(database.GetDB()); err != nil {
		return err
	}
	moduleInitialized = true
	return nil
}

// StartBackground launches long-running workers, currently the job
// scheduler. Call after SetupRouter.
func StartBackground(ctx context.Context) {
	if m, ok := modulemanager.GetModule(schedulermodule.ModuleID); ok {
		if sched, ok := m.(*schedulermodule.Module); ok {
			sched.Start(ctx)
		}
	}
}

// Run serves the router until the context is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, router *gin.Engine) error {
	cfg := config.Get()
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 HTTP server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if systemEventBus != nil {
		if err := systemEventBus.Stop(shutdownCtx); err != nil {
			logger.Warn("event bus stop failed", logger.Err(err))
		}
	}
	return nil
}
