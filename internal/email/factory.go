package email

import "github.com/redbridgehc/clubhouse/internal/config"

// NewServiceFromConfig picks the backend declared in the configuration,
// falling back to the console backend.
func NewServiceFromConfig(cfg *config.Config) Service {
	if cfg.Email.Backend == BackendSendgrid && cfg.Email.SendgridKey != "" {
		return NewSendgridService(cfg.Email, cfg.Club.Name)
	}
	return NewConsoleService()
}
