package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"landscape-planner/internal/common/config"
	"landscape-planner/internal/common/logging"
	"landscape-planner/internal/common/middleware"
	"landscape-planner/internal/gateway/handlers"
	"landscape-planner/internal/gateway/proxy"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatal("load config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)
	if cfg.AuthToken == "" {
		logger.Warn("GATEWAY_AUTH_TOKEN is empty, requests reach the planner without a user")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "API Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())
	app.Use(middleware.TrustedUser(cfg.AuthToken))

	// ============================================================
	// Health Check Routes
	// ============================================================

	health := handlers.NewHealth(2*time.Second, map[string]string{
		"planner": cfg.PlannerURL,
	})
	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", health.ReadinessProbe)
	app.Get("/health/startup", handlers.StartupProbe)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "API Gateway v1",
			"status":  "ok",
		})
	})

	// ============================================================
	// Service Routes (Proxy)
	// ============================================================

	p := proxy.New(time.Duration(cfg.WriteTimeout)*time.Second, logger)

	// Planner Service
	toPlanner := p.Prefix(cfg.PlannerURL, "/api/v1")
	api.All("/workspaces", toPlanner)
	api.All("/workspaces/*", toPlanner)
	api.All("/projects", toPlanner)
	api.All("/projects/*", toPlanner)
	api.All("/assets", toPlanner)
	api.All("/assets/*", toPlanner)

	// Catalog Service: /api/v1/catalog/assets -> /api/assets
	api.All("/catalog/*", p.Prefix(cfg.CatalogURL+"/api", "/api/v1/catalog"))

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("starting api gateway", "addr", addr, "env", cfg.Environment)
	logger.Info("proxying", "planner", cfg.PlannerURL, "catalog", cfg.CatalogURL)

	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", "err", err)
	}
}
