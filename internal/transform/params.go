package transform

// Param helpers pull typed values out of a channel's free-form params
// map (spec §6), tolerating the numeric-type variance YAML unmarshaling
// produces (int vs float64) and falling back to a default when absent.

func Float(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func Int(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func Bool(params map[string]any, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}

func String(params map[string]any, key string, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}
