package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Health Check Handlers
// ============================================================

// LivenessProbe проверяет, что приложение работает
func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// Health опрашивает /health/live у зависимых сервисов.
type Health struct {
	client   *http.Client
	upstream map[string]string
}

func NewHealth(timeout time.Duration, upstream map[string]string) *Health {
	return &Health{
		client:   &http.Client{Timeout: timeout},
		upstream: upstream,
	}
}

// ReadinessProbe reports 503 while any upstream service is unreachable.
func (h *Health) ReadinessProbe(c fiber.Ctx) error {
	services := make(fiber.Map, len(h.upstream))
	ready := true
	for name, baseURL := range h.upstream {
		if err := h.ping(c.Context(), baseURL+"/health/live"); err != nil {
			services[name] = err.Error()
			ready = false
			continue
		}
		services[name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "degraded",
			"services": services,
		})
	}
	return c.JSON(fiber.Map{
		"status":   "ready",
		"services": services,
	})
}

// StartupProbe проверяет, что приложение успешно запустилось
func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "started",
	})
}

func (h *Health) ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return http.StatusText(e.code) }
