package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthApp(h *Handler) *fiber.App {
	app := fiber.New()
	app.Get("/v1/health", h.HandleHealth)
	return app
}

func getHealth(t *testing.T, app *fiber.App) (int, Overall) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.NoError(t, err)
	var out Overall
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandleHealthReadyGate(t *testing.T) {
	h := NewHandler(nil)
	app := healthApp(h)

	code, out := getHealth(t, app)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", out.OverallStatus)
	assert.False(t, out.Ready)

	h.SetReady()
	code, out = getHealth(t, app)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out.OverallStatus)
	assert.True(t, out.Ready)
}

func TestHandleHealthSetReadyConcurrentWithRequests(t *testing.T) {
	h := NewHandler(nil)
	app := healthApp(h)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
			assert.NoError(t, err)
			assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, resp.StatusCode)
		}()
	}
	h.SetReady()
	wg.Wait()

	code, _ := getHealth(t, app)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandleHealthFailingComponent(t *testing.T) {
	h := NewHandler(map[string]Check{
		"redis":   func(ctx context.Context) error { return nil },
		"browser": func(ctx context.Context) error { return errors.New("browser disconnected") },
	})
	h.SetReady()
	app := healthApp(h)

	code, out := getHealth(t, app)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", out.OverallStatus)
	assert.Equal(t, "ok", out.Components["redis"].Status)
	assert.Equal(t, "error", out.Components["browser"].Status)
	assert.Equal(t, "browser disconnected", out.Components["browser"].Error)
}
