package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"landscape-planner/internal/common/config"
	"landscape-planner/internal/common/logging"
	"landscape-planner/internal/common/middleware"
	"landscape-planner/internal/planner/catalog"
	"landscape-planner/internal/planner/exports"
	"landscape-planner/internal/planner/handlers"
	"landscape-planner/internal/planner/repository"
	"landscape-planner/internal/planner/workspace"
)

// ============================================================
// Planner Service
// ============================================================

func main() {
	cfg, err := config.LoadPlanner()
	if err != nil {
		log.Fatal("load config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal("open sqlite", "err", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background(), cfg.MigrationsPath); err != nil {
		logger.Fatal("init db", "err", err)
	}

	svc, err := openCatalog(cfg, logger)
	if err != nil {
		logger.Fatal("open catalog", "err", err)
	}

	registry := workspace.NewRegistry(workspace.Options{
		Catalog:     svc,
		Logger:      logger,
		Concurrency: cfg.ResolveConcurrency,
	})
	storage := exports.NewFileStorage(cfg.ExportDir)
	planner := handlers.NewPlannerHandler(registry, repo, storage, svc, logger, cfg.LoadTimeout)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Planner Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ready", "workspaces": registry.Len()})
	})

	// ============================================================
	// Planner Routes
	// ============================================================

	api := app.Group("/", middleware.RequireUser())
	planner.Register(api)

	// ============================================================
	// Server Start
	// ============================================================

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		registry.Shutdown()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("starting planner service", "addr", addr, "env", cfg.Environment, "catalog", catalogSource(cfg))

	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", "err", err)
	}
}

// openCatalog prefers a local TOML seed over the remote catalog service.
func openCatalog(cfg *config.Planner, logger *log.Logger) (catalog.Service, error) {
	if cfg.CatalogFile != "" {
		mem, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		logger.Info("catalog seed loaded", "file", cfg.CatalogFile, "assets", mem.Len())
		return mem, nil
	}
	return catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogTimeout, logger), nil
}

func catalogSource(cfg *config.Planner) string {
	if cfg.CatalogFile != "" {
		return cfg.CatalogFile
	}
	return cfg.CatalogURL
}
