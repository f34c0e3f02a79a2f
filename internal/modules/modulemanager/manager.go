package modulemanager

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/logger"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string                // Unique identifier for the module
	Name() string              // Display name for the module
	Core() bool                // Whether this is a core module (cannot be disabled)
	Migrate(db *gorm.DB) error // Run database migrations
	Init() error               // Initialize the module
}

// RouteRegistrar is an optional interface for modules that register routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// ModuleRegistry manages module registration and initialization
type ModuleRegistry struct {
	modules         map[string]Module
	disabledModules map[string]bool
	mu              sync.RWMutex
	initialized     bool
}

// Registry is the global module registry
var Registry = &ModuleRegistry{
	modules:         make(map[string]Module),
	disabledModules: make(map[string]bool),
}

// Register adds a module to the registry
func Register(m Module) {
	Registry.Register(m)
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module registered after initialization",
			logger.String("module", m.ID()))
	}
	r.modules[m.ID()] = m
	logger.Debug("📦 module registered", logger.String("module", m.ID()))
}

// LoadAll migrates and initializes all registered modules
func LoadAll(db *gorm.DB) error {
	return Registry.LoadAll(db)
}

// LoadAll migrates and initializes all registered modules in a stable
// order (by module ID).
func (r *ModuleRegistry) LoadAll(db *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module system already initialized")
		return nil
	}

	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		if r.disabledModules[id] {
			if r.modules[id].Core() {
				return fmt.Errorf("attempted to disable core module: %s", id)
			}
			logger.Warn("⚠️ skipping disabled module", logger.String("module", id))
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	logger.Info("🔄 loading modules", logger.Int("count", len(ids)))
	for _, id := range ids {
		m := r.modules[id]
		if err := m.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", m.Name(), err)
		}
		if err := m.Init(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", m.Name(), err)
		}
		logger.Info("✅ module loaded", logger.String("module", id))
	}

	r.initialized = true
	return nil
}

// DisableModule marks a module as disabled (development/testing only)
func DisableModule(id string) {
	Registry.mu.Lock()
	defer Registry.mu.Unlock()
	Registry.disabledModules[id] = true
}

// GetModule returns a module by ID
func GetModule(id string) (Module, bool) {
	Registry.mu.RLock()
	defer Registry.mu.RUnlock()
	m, ok := Registry.modules[id]
	return m, ok
}

// ListModules returns all registered modules
func ListModules() []Module {
	Registry.mu.RLock()
	defer Registry.mu.RUnlock()
	modules := make([]Module, 0, len(Registry.modules))
	for _, m := range Registry.modules {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].ID() < modules[j].ID() })
	return modules
}

// RegisterRoutes registers routes for all modules that implement
// RouteRegistrar.
func RegisterRoutes(router *gin.Engine) {
	for _, m := range ListModules() {
		if rr, ok := m.(RouteRegistrar); ok {
			rr.RegisterRoutes(router)
		}
	}
}

// Reset clears the registry. Exposed for tests.
func Reset() {
	Registry.mu.Lock()
	defer Registry.mu.Unlock()
	Registry.modules = make(map[string]Module)
	Registry.disabledModules = make(map[string]bool)
	Registry.initialized = false
}
