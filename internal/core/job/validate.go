package job

import "fmt"

// Submission validation: every action's params must match the shape its
// handler expects before the job is ever persisted. The remote-lane shapes
// mirror the sidecar's request models; since action outputs are never piped
// forward, each remote action carries its own url.

func ValidateActions(lane Lane, actions []Action) error {
	for i, a := range actions {
		var err error
		if lane == LaneRemote {
			err = validateRemoteAction(a)
		} else {
			err = validateBrowserAction(a)
		}
		if err != nil {
			return fmt.Errorf("%w: action %d (%s): %v", ErrInvalid, i, a.Type, err)
		}
	}
	return nil
}

func validateBrowserAction(a Action) error {
	p := paramReader(a.Params)
	switch a.Type {
	case "navigate":
		return p.requireString("url")
	case "scrape":
		if err := p.requireString("selector"); err != nil {
			return err
		}
		if f, ok := p.optionalString("format"); ok {
			switch f {
			case "text", "html", "markdown":
			default:
				return fmt.Errorf("format must be one of text, html, markdown")
			}
		}
		return nil
	case "click":
		return p.requireString("selector")
	case "type":
		return firstErr(p.requireString("selector"), p.requireString("value"))
	case "screenshot", "pdf":
		return nil
	case "wait":
		return nil
	case "evaluate":
		return p.requireString("script")
	case "scroll":
		if _, ok := p.optionalString("selector"); ok {
			return nil
		}
		if p.hasNumber("x") && p.hasNumber("y") {
			return nil
		}
		return fmt.Errorf("requires selector or x and y coordinates")
	case "select":
		return firstErr(p.requireString("selector"), p.requireString("value"))
	default:
		return fmt.Errorf("not a browser-lane action")
	}
}

func validateRemoteAction(a Action) error {
	p := paramReader(a.Params)
	switch a.Type {
	case "crawl", "screenshot", "extractPDF", "toMarkdown", "toPDF":
		return p.requireString("url")
	case "extract", "verify", "wait":
		return firstErr(p.requireString("url"), p.requireString("selector"))
	case "generateSchema":
		return firstErr(p.requireString("url"), p.requireString("prompt"))
	case "crawlLinks":
		// Params travel to the sidecar verbatim, so keys follow its request
		// model: link_selector, not linkSelector.
		return firstErr(p.requireString("url"), p.requireString("link_selector"))
	case "filter":
		return firstErr(p.requireString("url"), p.requireString("selector"), p.requireString("condition"))
	default:
		return fmt.Errorf("not a remote-lane action")
	}
}

type paramReader map[string]interface{}

func (p paramReader) requireString(key string) error {
	v, ok := p[key]
	if !ok {
		return fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fmt.Errorf("%s must be a non-empty string", key)
	}
	return nil
}

func (p paramReader) optionalString(key string) (string, bool) {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// hasNumber accepts JSON numbers, which decode as float64.
func (p paramReader) hasNumber(key string) bool {
	switch p[key].(type) {
	case float64, int:
		return true
	}
	return false
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
