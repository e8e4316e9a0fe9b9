package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"automator/internal/logger"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type Handler struct {
	log       *logger.Logger
	checks    map[string]Check
	startTime time.Time
	isReady   atomic.Bool
}

func NewHandler(checks map[string]Check) *Handler {
	return &Handler{
		log:       logger.New("Health"),
		checks:    checks,
		startTime: time.Now(),
	}
}

// SetReady marks the application as ready to receive traffic. Safe to call
// from the startup goroutine while the handler is already serving.
func (h *Handler) SetReady() {
	h.isReady.Store(true)
	h.log.LogInfof("ready for traffic after %v", time.Since(h.startTime))
}

type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Overall struct {
	OverallStatus string                     `json:"overall_status"`
	Timestamp     string                     `json:"timestamp"`
	Ready         bool                       `json:"ready"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components"`
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 8*time.Second)
	defer cancel()

	statuses := make(map[string]ComponentStatus, len(h.checks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	allOk := true

	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			status := ComponentStatus{Status: "ok"}
			if err := check(ctx); err != nil {
				status = ComponentStatus{Status: "error", Error: err.Error()}
			}
			mu.Lock()
			statuses[name] = status
			if status.Status != "ok" {
				allOk = false
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	ready := h.isReady.Load()
	resp := Overall{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Ready:         ready,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    statuses,
	}

	switch {
	case allOk && ready:
		resp.OverallStatus = "ok"
		return c.Status(http.StatusOK).JSON(resp)
	case !ready:
		resp.OverallStatus = "starting"
		return c.Status(http.StatusServiceUnavailable).JSON(resp)
	default:
		resp.OverallStatus = "error"
		h.log.LogWarnf("health check failed: %+v", statuses)
		return c.Status(http.StatusServiceUnavailable).JSON(resp)
	}
}

func Limiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{"error": "Rate limit exceeded"})
		},
	})
}
