package tools

import "fmt"

// RequireString returns a non-empty string argument or an error naming
// the missing key.
func RequireString(args map[string]any, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	return val, nil
}

// StringArg returns a string argument, or fallback when absent or
// empty.
func StringArg(args map[string]any, key, fallback string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

// IntArg returns a numeric argument as int64, or fallback when absent.
// JSON numbers decode as float64; int covers handler tests that pass
// literals.
func IntArg(args map[string]any, key string, fallback int64) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return fallback
	}
}

// ObjectArg returns a nested object argument, or nil when absent.
func ObjectArg(args map[string]any, key string) map[string]any {
	if val, ok := args[key].(map[string]any); ok {
		return val
	}
	return nil
}
