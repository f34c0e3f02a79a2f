// Package membershipsmodule owns the season catalogue: seasons,
// categories, products with payment plans, add-on fees, match fee
// tariffs and player subscriptions, plus seed export/import, season
// cloning and wallet pass payloads.
package membershipsmodule

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
	ModuleID   = "club.memberships"
	ModuleName = "Memberships"
)

// Module implements the memberships catalogue.
type Module struct {
	db *gorm.DB
}

// Register registers the memberships module with the module system.
func Register() {
	modulemanager.Register(&Module{})
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return true }

// Migrate creates or updates the catalogue schema.
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("Migrating memberships module schema")
	return db.AutoMigrate(
		&Season{},
		&MembershipCategory{},
		&MembershipProduct{},
		&PaymentPlan{},
		&AddOnFee{},
		&MatchFeeTariff{},
		&Subscription{},
	)
}

// Init captures the database handle for request handlers.
func (m *Module) Init() error {
	m.db = database.GetDB()
	return nil
}
