package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ============================================================
// Configuration
// ============================================================

// Server holds settings shared by every service binary.
type Server struct {
	Port         string `env:"PORT" envDefault:"3000"`
	Environment  string `env:"ENV" envDefault:"development"`
	ReadTimeout  int    `env:"READ_TIMEOUT" envDefault:"10"`
	WriteTimeout int    `env:"WRITE_TIMEOUT" envDefault:"10"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Planner configures the planner service.
type Planner struct {
	Server

	DBPath             string        `env:"PLANNER_DB_PATH" envDefault:"data/db/planner.db"`
	MigrationsPath     string        `env:"PLANNER_MIGRATIONS" envDefault:"migrations/001_init_projects.sql"`
	CatalogURL         string        `env:"CATALOG_URL" envDefault:"http://localhost:5000"`
	CatalogFile        string        `env:"CATALOG_FILE"`
	CatalogTimeout     time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`
	ExportDir          string        `env:"EXPORT_DIR" envDefault:"exports"`
	ResolveConcurrency int           `env:"RESOLVE_CONCURRENCY" envDefault:"8"`
	LoadTimeout        time.Duration `env:"LOAD_TIMEOUT" envDefault:"10s"`
}

// Gateway configures the API gateway.
type Gateway struct {
	Server

	PlannerURL string `env:"PLANNER_URL" envDefault:"http://localhost:3001"`
	CatalogURL string `env:"CATALOG_URL" envDefault:"http://localhost:5000"`
	// Shared secret of the auth layer; without it no X-User-ID is forwarded.
	AuthToken string `env:"GATEWAY_AUTH_TOKEN"`
}

// Load parses environment variables into target.
func Load(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadPlanner загружает конфигурацию planner-сервиса.
func LoadPlanner() (*Planner, error) {
	var cfg Planner
	if err := Load(&cfg); err != nil {
		return nil, err
	}
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = 1
	}
	return &cfg, nil
}

// LoadGateway загружает конфигурацию gateway.
func LoadGateway() (*Gateway, error) {
	var cfg Gateway
	if err := Load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
