// Package membersmodule owns player records: players and their types,
// the dynamic registration questionnaire, answers, teams and positions.
package membersmodule

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
	ModuleID   = "club.members"
	ModuleName = "Members"
)

// Module implements player and team management.
type Module struct {
	db *gorm.DB
}

// Register registers the members module with the module system.
func Register() {
	modulemanager.Register(&Module{})
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return true }

// Migrate creates or updates the members schema.
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("Migrating members module schema")
	return db.AutoMigrate(
		&PlayerType{},
		&Player{},
		&QuestionCategory{},
		&DynamicQuestion{},
		&PlayerAnswer{},
		&Team{},
		&Position{},
		&TeamMembership{},
	)
}

// Init captures the database handle for request handlers.
func (m *Module) Init() error {
	m.db = database.GetDB()
	return nil
}
