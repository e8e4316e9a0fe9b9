package browser

// params is the decoded handler argument mapping. Values arrive from JSON,
// so numbers are float64.
type params map[string]interface{}

func (p params) str(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (p params) boolean(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func (p params) number(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func (p params) has(key string) bool {
	_, ok := p[key]
	return ok
}
