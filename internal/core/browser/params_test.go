package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParamsAccessors(t *testing.T) {
	p := params{
		"selector": "h1",
		"fullPage": true,
		"width":    float64(1280),
		"count":    3,
		"empty":    "",
	}

	assert.Equal(t, "h1", p.str("selector", "body"))
	assert.Equal(t, "body", p.str("missing", "body"))
	assert.Equal(t, "body", p.str("empty", "body"), "empty string falls back to default")

	assert.True(t, p.boolean("fullPage", false))
	assert.False(t, p.boolean("missing", false))

	assert.Equal(t, float64(1280), p.number("width", 0))
	assert.Equal(t, float64(3), p.number("count", 0), "plain int accepted alongside JSON float64")
	assert.Equal(t, float64(7), p.number("missing", 7))

	assert.True(t, p.has("empty"))
	assert.False(t, p.has("missing"))
}
