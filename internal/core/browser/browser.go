package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"automator/internal/config"
	"automator/internal/core/engine"
	"automator/internal/core/job"
	"automator/internal/logger"
	"automator/internal/storage"
)

// Manager owns the shared headless browser for the direct lane. The
// browser lives for the whole process; each job gets its own isolated
// BrowserContext and page, released when the job finishes.
type Manager struct {
	log      *logger.Logger
	cfg      config.Config
	assets   *storage.Service
	pw       *playwright.Playwright
	browser  playwright.Browser
	registry map[string]handler
}

type handler func(ctx context.Context, s *session, p params) (interface{}, error)

func New(cfg config.Config, assets *storage.Service) (*Manager, error) {
	m := &Manager{log: logger.New("Browser"), cfg: cfg, assets: assets}
	m.registry = map[string]handler{
		"navigate":   m.handleNavigate,
		"scrape":     m.handleScrape,
		"click":      m.handleClick,
		"type":       m.handleType,
		"screenshot": m.handleScreenshot,
		"pdf":        m.handlePDF,
		"wait":       m.handleWait,
		"evaluate":   m.handleEvaluate,
		"scroll":     m.handleScroll,
		"select":     m.handleSelect,
	}
	if err := engine.VerifyRegistry(job.LaneBrowser, func(t string) bool {
		_, ok := m.registry[t]
		return ok
	}); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright initialization failed: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}
	m.pw = pw
	m.browser = browser
	m.log.LogInfof("headless browser ready")
	return m, nil
}

func (m *Manager) Lane() job.Lane { return job.LaneBrowser }

// StartJob acquires a fresh page for one job.
func (m *Manager) StartJob(ctx context.Context, jobID string) (engine.Session, error) {
	bctx, err := m.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return nil, fmt.Errorf("browser context creation failed: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("page creation failed: %w", err)
	}
	return &session{mgr: m, bctx: bctx, page: page, jobID: jobID}, nil
}

// Healthy reports whether the shared browser connection is still up, for
// the health endpoint.
func (m *Manager) Healthy(ctx context.Context) error {
	if m.browser == nil || !m.browser.IsConnected() {
		return fmt.Errorf("browser disconnected")
	}
	return nil
}

// Close shuts the shared browser down. Callers drain in-flight workers
// first so no job is orphaned mid-action.
func (m *Manager) Close() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.log.LogWarnf("browser close: %v", err)
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			m.log.LogWarnf("playwright stop: %v", err)
		}
	}
}

type session struct {
	mgr   *Manager
	bctx  playwright.BrowserContext
	page  playwright.Page
	jobID string
}

func (s *session) Exec(ctx context.Context, a *job.Action) (interface{}, error) {
	h, ok := s.mgr.registry[a.Type]
	if !ok {
		return nil, job.NewActionError(job.CodeUnknownAction, fmt.Sprintf("no browser handler for %q", a.Type))
	}
	return h(ctx, s, params(a.Params))
}

func (s *session) Close() {
	if err := s.bctx.Close(); err != nil {
		s.mgr.log.LogWarnf("job %s: context close: %v", s.jobID, err)
	}
}

// timeoutMs converts the configured per-primitive timeout for playwright,
// which takes milliseconds.
func (m *Manager) timeoutMs() float64 {
	return float64(m.cfg.ActionTimeout.Milliseconds())
}
