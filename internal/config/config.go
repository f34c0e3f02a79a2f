package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the clubhouse server and CLI.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Club     ClubConfig     `yaml:"club"`
	Spond    SpondConfig    `yaml:"spond"`
	Email    EmailConfig    `yaml:"email"`

	// Schedule declares the periodic jobs that sync-schedule reconciles
	// into the scheduled_jobs table.
	Schedule map[string]JobSpec `yaml:"schedule"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig selects the backing database. SQLite is the default;
// Postgres is opt-in for real deployments.
type DatabaseConfig struct {
	Type       string `yaml:"type"` // "sqlite" or "postgres"
	SQLitePath string `yaml:"sqlite_path"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
}

// ClubConfig identifies the club for dashboards and wallet passes.
type ClubConfig struct {
	Name            string `yaml:"name"`
	ShortName       string `yaml:"short_name"`
	PassBackground  string `yaml:"pass_background"`
	PassForeground  string `yaml:"pass_foreground"`
	PassDescription string `yaml:"pass_description"`
}

// SpondConfig holds credentials and tuning for the Spond API client.
type SpondConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
}

// EmailConfig selects the outgoing mail backend.
type EmailConfig struct {
	Backend     string `yaml:"backend"` // "sendgrid" or "console"
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
	SendgridKey string `yaml:"sendgrid_key"`
}

// JobSpec declares one periodic job in the schedule section.
type JobSpec struct {
	Job     string `yaml:"job"`   // registered job key, e.g. "spond.sync"
	Every   int    `yaml:"every"` // interval in seconds
	Enabled *bool  `yaml:"enabled"`
}

var (
	mu  sync.RWMutex
	cfg = defaultConfig()
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Type:       "sqlite",
			SQLitePath: "./clubhouse-data/clubhouse.db",
			Host:       "localhost",
			Port:       5432,
		},
		Club: ClubConfig{
			Name:            "Redbridge Hockey Club",
			ShortName:       "RHC",
			PassBackground:  "rgb(20,45,90)",
			PassForeground:  "rgb(255,255,255)",
			PassDescription: "Club membership card",
		},
		Spond: SpondConfig{
			BaseURL:  "https://api.spond.com/v1",
			PageSize: 100,
			Timeout:  30 * time.Second,
		},
		Email: EmailConfig{
			Backend:     "console",
			FromName:    "Clubhouse",
			FromAddress: "noreply@redbridgehc.org.uk",
		},
	}
}

// Load reads configuration from the given YAML file (optional) and then
// applies environment overrides. A missing path is not an error; defaults
// plus environment are enough to run.
func Load(path string) error {
	mu.Lock()
	defer mu.Unlock()

	// .env is a development convenience, ignored when absent
	_ = godotenv.Load()

	c := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnv(c)

	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// applyEnv overrides secrets and deployment-specific values from the
// environment so they never have to live in the YAML file.
func applyEnv(c *Config) {
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		c.Database.Type = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("SPOND_API_BASE"); v != "" {
		c.Spond.BaseURL = v
	}
	if v := os.Getenv("SPOND_API_TOKEN"); v != "" {
		c.Spond.Token = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Email.SendgridKey = v
		if c.Email.Backend == "" || c.Email.Backend == "console" {
			c.Email.Backend = "sendgrid"
		}
	}
}

// Validate checks the configuration for values that would only fail later.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database.type %q", c.Database.Type)
	}
	switch c.Email.Backend {
	case "sendgrid", "console":
	default:
		return fmt.Errorf("config: unsupported email.backend %q", c.Email.Backend)
	}
	for name, spec := range c.Schedule {
		if spec.Job == "" {
			return fmt.Errorf("config: schedule entry %q has no job key", name)
		}
		if spec.Every <= 0 {
			return fmt.Errorf("config: schedule entry %q has non-positive interval", name)
		}
	}
	return nil
}

// Get returns the current configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Set replaces the current configuration. Exposed for tests.
func Set(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}
