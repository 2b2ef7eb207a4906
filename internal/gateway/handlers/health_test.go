package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
)

func TestReadinessProbe(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/live" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"alive"}`))
	}))
	defer live.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	tests := []struct {
		name     string
		upstream map[string]string
		status   int
		contains string
	}{
		{"all up", map[string]string{"planner": live.URL}, http.StatusOK, `"ready"`},
		{"one down", map[string]string{"planner": live.URL, "catalog": broken.URL}, http.StatusServiceUnavailable, `"degraded"`},
		{"nothing configured", map[string]string{}, http.StatusOK, `"ready"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth(time.Second, tt.upstream)
			app := fiber.New()
			app.Get("/health/ready", h.ReadinessProbe)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.status || !strings.Contains(string(body), tt.contains) {
				t.Errorf("got %d %s", resp.StatusCode, body)
			}
		})
	}
}
