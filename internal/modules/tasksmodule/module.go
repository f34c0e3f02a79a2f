// Package tasksmodule tracks club admin work items and sends the daily
// open-task digest.
package tasksmodule

import (
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "club.tasks"
	ModuleName = "Tasks"
)

// Module implements task tracking.
type Module struct {
	db *gorm.DB
}

// Register registers the tasks module with the module system.
func Register() {
	modulemanager.Register(&Module{})
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return false }

// Migrate creates or updates the tasks schema.
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("Migrating tasks module schema")
	return db.AutoMigrate(&Task{})
}

// Init captures the database handle for request handlers.
func (m *Module) Init() error {
	m.db = database.GetDB()
	return nil
}
