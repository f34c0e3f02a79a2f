// Package incidentsmodule records injury and safeguarding reports and
// routes new ones to the review team.
package incidentsmodule

import (
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "club.incidents"
	ModuleName = "Incidents"
)

// Module implements incident reporting.
type Module struct {
	db       *gorm.DB
	mailer   email.Service
	clubName string
}

// Register registers the incidents module with the module system.
func Register() {
	modulemanager.Register(&Module{})
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return false }

// Migrate creates or updates the incidents schema.
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("Migrating incidents module schema")
	return db.AutoMigrate(&Incident{}, &IncidentRouting{})
}

// Init captures the database handle and builds the outgoing mailer.
func (m *Module) Init() error {
	m.db = database.GetDB()
	cfg := config.Get()
	m.mailer = email.NewServiceFromConfig(cfg)
	m.clubName = cfg.Club.Name
	return nil
}
