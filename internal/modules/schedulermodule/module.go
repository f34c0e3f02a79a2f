// Package schedulermodule drives the periodic jobs declared in the
// configuration file, backed by the scheduled_jobs table.
package schedulermodule

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/config"
	"github.com/redbridgehc/clubhouse/internal/database"
	"github.com/redbridgehc/clubhouse/internal/email"
	"github.com/redbridgehc/clubhouse/internal/logger"
	"github.com/redbridgehc/clubhouse/internal/modules/modulemanager"
	"github.com/redbridgehc/clubhouse/internal/modules/spondmodule"
	"github.com/redbridgehc/clubhouse/internal/modules/tasksmodule"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "core.scheduler"
	ModuleName = "Scheduler"
)

// Job keys understood out of the box.
const (
	JobSpondSync  = "spond.sync"
	JobTaskDigest = "tasks.digest"
)

// Module owns the scheduler and its job registry.
type Module struct {
	db        *gorm.DB
	scheduler *Scheduler
}

// Register registers the scheduler module with the module system.
func Register() {
	modulemanager.Register(&Module{})
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return true }

// Migrate creates or updates the scheduler schema.
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("Migrating scheduler module schema")
	return db.AutoMigrate(&ScheduledJob{})
}

// Init builds the scheduler and registers the built-in jobs.
func (m *Module) Init() error {
	m.db = database.GetDB()
	m.scheduler = NewScheduler(m.db, clockwork.NewRealClock())

	cfg := config.Get()

	if cfg.Spond.Token != "" {
		api := spondmodule.NewClient(cfg.Spond)
		m.scheduler.RegisterJob(JobSpondSync, func(ctx context.Context) error {
			_, err := spondmodule.Sync(ctx, m.db, api, time.Now().UTC())
			return err
		})
	} else {
		logger.Warn("spond token not configured, spond.sync job not registered")
	}

	mailer := email.NewServiceFromConfig(cfg)
	m.scheduler.RegisterJob(JobTaskDigest, func(ctx context.Context) error {
		_, err := tasksmodule.SendDigest(m.db, mailer, cfg.Club.Name, time.Now().UTC(), tasksmodule.DigestOptions{})
		return err
	})

	return nil
}

// Scheduler exposes the underlying scheduler so the server can start it.
func (m *Module) Scheduler() *Scheduler { return m.scheduler }

// Start launches the scheduler loop in the background.
func (m *Module) Start(ctx context.Context) {
	go m.scheduler.Run(ctx)
}
