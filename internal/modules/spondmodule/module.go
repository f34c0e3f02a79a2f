// Package spondmodule mirrors groups, members and events from the Spond
// API and manages the player-to-member links used by attendance and
// finance reporting.
package spondmodule

import (
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "integration.spond"
	ModuleName = "Spond Integration"
)

// Module implements the external sync and linking features.
type Module struct {
	db  *gorm.DB
	api API
}

// Register registers the spond module with the module system.
func Register() {
	modulemanager.Register(&Module{})
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return false }

// Migrate creates or updates the spond mirror schema.
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("Migrating spond module schema")
	return db.AutoMigrate(
		&SpondGroup{},
		&SpondMember{},
		&SpondEvent{},
		&PlayerSpondLink{},
	)
}

// Init captures the database handle and builds the API client when a
// token is configured.
func (m *Module) Init() error {
	m.db = database.GetDB()
	cfg := config.Get()
	if cfg.Spond.Token != "" {
		m.api = NewClient(cfg.Spond)
	} else {
		logger.Warn("spond token not configured, sync disabled")
	}
	return nil
}

// SetAPI overrides the API client. Exposed for tests.
func (m *Module) SetAPI(api API) {
	m.api = api
}
