package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"automator/internal/core/job"
	"automator/internal/utils/markdown"
)

func browserErr(format string, v ...interface{}) *job.ActionError {
	msg := fmt.Sprintf(format, v...)
	code := job.CodeBrowserError
	if strings.Contains(msg, "Timeout") || strings.Contains(msg, "timeout") {
		code = job.CodeTimeout
	}
	return job.NewActionError(code, msg)
}

func (m *Manager) handleNavigate(_ context.Context, s *session, p params) (interface{}, error) {
	url := p.str("url", "")
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(m.timeoutMs()),
	})
	if err != nil {
		return nil, browserErr("navigation to %s failed: %v", url, err)
	}
	status := 200
	if resp != nil {
		status = resp.Status()
	}
	title, _ := s.page.Title()
	return map[string]interface{}{"url": url, "status": status, "title": title}, nil
}

func (m *Manager) handleScrape(_ context.Context, s *session, p params) (interface{}, error) {
	selector := p.str("selector", "")
	attribute := p.str("attribute", "")
	format := p.str("format", "text")
	loc := s.page.Locator(selector)

	extract := func(l playwright.Locator) (interface{}, error) {
		if attribute != "" {
			return l.GetAttribute(attribute, playwright.LocatorGetAttributeOptions{Timeout: playwright.Float(m.timeoutMs())})
		}
		switch format {
		case "html":
			return l.InnerHTML(playwright.LocatorInnerHTMLOptions{Timeout: playwright.Float(m.timeoutMs())})
		case "markdown":
			html, err := l.InnerHTML(playwright.LocatorInnerHTMLOptions{Timeout: playwright.Float(m.timeoutMs())})
			if err != nil {
				return nil, err
			}
			return markdown.FromHTML(html), nil
		default:
			return l.TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(m.timeoutMs())})
		}
	}

	if p.boolean("multiple", false) {
		items, err := loc.All()
		if err != nil {
			return nil, browserErr("scrape %s: %v", selector, err)
		}
		values := make([]interface{}, 0, len(items))
		for _, l := range items {
			v, err := extract(l)
			if err != nil {
				return nil, browserErr("scrape %s: %v", selector, err)
			}
			values = append(values, v)
		}
		return map[string]interface{}{"data": values, "count": len(values)}, nil
	}

	v, err := extract(loc.First())
	if err != nil {
		return nil, browserErr("scrape %s: %v", selector, err)
	}
	return map[string]interface{}{"data": v}, nil
}

func (m *Manager) handleClick(_ context.Context, s *session, p params) (interface{}, error) {
	selector := p.str("selector", "")
	if err := s.page.Locator(selector).Click(playwright.LocatorClickOptions{Timeout: playwright.Float(m.timeoutMs())}); err != nil {
		return nil, browserErr("click %s: %v", selector, err)
	}
	return map[string]interface{}{"clicked": selector}, nil
}

func (m *Manager) handleType(_ context.Context, s *session, p params) (interface{}, error) {
	selector := p.str("selector", "")
	value := p.str("value", "")
	opts := playwright.LocatorPressSequentiallyOptions{Timeout: playwright.Float(m.timeoutMs())}
	if d := p.number("delay", 0); d > 0 {
		opts.Delay = playwright.Float(d)
	}
	if err := s.page.Locator(selector).PressSequentially(value, opts); err != nil {
		return nil, browserErr("type into %s: %v", selector, err)
	}
	return map[string]interface{}{"typed": len(value)}, nil
}

func (m *Manager) handleScreenshot(_ context.Context, s *session, p params) (interface{}, error) {
	var buf []byte
	var err error
	if selector := p.str("selector", ""); selector != "" {
		buf, err = s.page.Locator(selector).Screenshot(playwright.LocatorScreenshotOptions{
			Timeout: playwright.Float(m.timeoutMs()),
		})
	} else {
		buf, err = s.page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(p.boolean("fullPage", false)),
			Timeout:  playwright.Float(m.timeoutMs()),
		})
	}
	if err != nil {
		return nil, browserErr("screenshot capture failed: %v", err)
	}
	if len(buf) == 0 {
		return nil, browserErr("screenshot capture produced an empty image")
	}
	url, err := m.assets.Save(buf, "screenshots", "png")
	if err != nil {
		return nil, browserErr("screenshot save failed: %v", err)
	}
	return map[string]interface{}{"url": url, "size": len(buf)}, nil
}

func (m *Manager) handlePDF(_ context.Context, s *session, p params) (interface{}, error) {
	opts := playwright.PagePdfOptions{}
	if f := p.str("format", ""); f != "" {
		opts.Format = playwright.String(f)
	}
	if mg := p.str("margin", ""); mg != "" {
		opts.Margin = &playwright.Margin{
			Top:    playwright.String(mg),
			Right:  playwright.String(mg),
			Bottom: playwright.String(mg),
			Left:   playwright.String(mg),
		}
	}
	buf, err := s.page.PDF(opts)
	if err != nil {
		return nil, browserErr("pdf render failed: %v", err)
	}
	url, err := m.assets.Save(buf, "pdfs", "pdf")
	if err != nil {
		return nil, browserErr("pdf save failed: %v", err)
	}
	return map[string]interface{}{"url": url, "size": len(buf)}, nil
}

func (m *Manager) handleWait(_ context.Context, s *session, p params) (interface{}, error) {
	timeout := p.number("timeout", float64(m.cfg.ActionTimeout.Milliseconds()))
	if selector := p.str("selector", ""); selector != "" {
		err := s.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(timeout),
		})
		if err != nil {
			return nil, browserErr("wait for %s: %v", selector, err)
		}
		return map[string]interface{}{"found": selector}, nil
	}
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(timeout),
	})
	if err != nil {
		return nil, browserErr("wait for network idle: %v", err)
	}
	return map[string]interface{}{"idle": true}, nil
}

func (m *Manager) handleEvaluate(_ context.Context, s *session, p params) (interface{}, error) {
	value, err := s.page.Evaluate(p.str("script", ""))
	if err != nil {
		return nil, browserErr("evaluate failed: %v", err)
	}
	return map[string]interface{}{"value": value}, nil
}

func (m *Manager) handleScroll(_ context.Context, s *session, p params) (interface{}, error) {
	if selector := p.str("selector", ""); selector != "" {
		err := s.page.Locator(selector).ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
			Timeout: playwright.Float(m.timeoutMs()),
		})
		if err != nil {
			return nil, browserErr("scroll to %s: %v", selector, err)
		}
		return map[string]interface{}{"scrolled": selector}, nil
	}
	x := int(p.number("x", 0))
	y := int(p.number("y", 0))
	if _, err := s.page.Evaluate(fmt.Sprintf("() => window.scrollTo(%d, %d)", x, y)); err != nil {
		return nil, browserErr("scroll to %d,%d: %v", x, y, err)
	}
	return map[string]interface{}{"x": x, "y": y}, nil
}

func (m *Manager) handleSelect(_ context.Context, s *session, p params) (interface{}, error) {
	selector := p.str("selector", "")
	value := p.str("value", "")
	selected, err := s.page.Locator(selector).SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(m.timeoutMs())})
	if err != nil {
		return nil, browserErr("select %s on %s: %v", value, selector, err)
	}
	return map[string]interface{}{"selected": selected}, nil
}
