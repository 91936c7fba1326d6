package config

// GetDefaults returns the default configuration values.
func GetDefaults() map[string]any {
	return map[string]any{
		"startup_timeout": "10s",
		"ready_timeout":   "5s",
		"journal":         "",
		"log_level":       "warn",
		"log_format":      "text",
		"scenarios_dir":   "testdata/scenarios",
		"golden_dir":      "",
	}
}
