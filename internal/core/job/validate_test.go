package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBrowserActions(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		ok     bool
	}{
		{"navigate with url", Action{Type: "navigate", Params: map[string]interface{}{"url": "https://example.com"}}, true},
		{"navigate missing url", Action{Type: "navigate"}, false},
		{"navigate empty url", Action{Type: "navigate", Params: map[string]interface{}{"url": ""}}, false},
		{"scrape with selector", Action{Type: "scrape", Params: map[string]interface{}{"selector": "h1"}}, true},
		{"scrape with markdown format", Action{Type: "scrape", Params: map[string]interface{}{"selector": "article", "format": "markdown"}}, true},
		{"scrape bad format", Action{Type: "scrape", Params: map[string]interface{}{"selector": "article", "format": "xml"}}, false},
		{"click without selector", Action{Type: "click"}, false},
		{"type with selector and value", Action{Type: "type", Params: map[string]interface{}{"selector": "input", "value": "hello"}}, true},
		{"type missing value", Action{Type: "type", Params: map[string]interface{}{"selector": "input"}}, false},
		{"screenshot no params", Action{Type: "screenshot"}, true},
		{"pdf no params", Action{Type: "pdf"}, true},
		{"wait no params", Action{Type: "wait"}, true},
		{"evaluate with script", Action{Type: "evaluate", Params: map[string]interface{}{"script": "document.title"}}, true},
		{"evaluate missing script", Action{Type: "evaluate"}, false},
		{"scroll by selector", Action{Type: "scroll", Params: map[string]interface{}{"selector": "#footer"}}, true},
		{"scroll by coordinates", Action{Type: "scroll", Params: map[string]interface{}{"x": float64(0), "y": float64(800)}}, true},
		{"scroll missing target", Action{Type: "scroll"}, false},
		{"select with selector and value", Action{Type: "select", Params: map[string]interface{}{"selector": "select#lang", "value": "go"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateActions(LaneBrowser, []Action{tc.action})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
			}
		})
	}
}

func TestValidateRemoteActions(t *testing.T) {
	url := map[string]interface{}{"url": "https://example.com"}
	cases := []struct {
		name   string
		action Action
		ok     bool
	}{
		{"crawl with url", Action{Type: "crawl", Params: url}, true},
		{"crawl without url", Action{Type: "crawl"}, false},
		{"extract needs selector", Action{Type: "extract", Params: url}, false},
		{"extract complete", Action{Type: "extract", Params: map[string]interface{}{"url": "https://example.com", "selector": ".price"}}, true},
		{"generateSchema needs prompt", Action{Type: "generateSchema", Params: url}, false},
		{"generateSchema complete", Action{Type: "generateSchema", Params: map[string]interface{}{"url": "https://example.com", "prompt": "product fields"}}, true},
		{"crawlLinks needs link_selector", Action{Type: "crawlLinks", Params: url}, false},
		{"crawlLinks complete", Action{Type: "crawlLinks", Params: map[string]interface{}{"url": "https://example.com", "link_selector": "a.next"}}, true},
		{"crawlLinks rejects camelCase key", Action{Type: "crawlLinks", Params: map[string]interface{}{"url": "https://example.com", "linkSelector": "a.next"}}, false},
		{"filter needs condition", Action{Type: "filter", Params: map[string]interface{}{"url": "https://example.com", "selector": ".row"}}, false},
		{"toMarkdown with url", Action{Type: "toMarkdown", Params: url}, true},
		{"remote wait needs url and selector", Action{Type: "wait"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateActions(LaneRemote, []Action{tc.action})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
			}
		})
	}
}

func TestValidateRejectsForeignLaneAction(t *testing.T) {
	// crawl has no browser handler, so it cannot ride a browser-lane job.
	err := ValidateActions(LaneBrowser, []Action{{Type: "crawl", Params: map[string]interface{}{"url": "https://example.com"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}
