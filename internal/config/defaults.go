package config

import (
	"runtime"
)

// PlatformDefaults returns platform-specific default values
type PlatformDefaults struct {
	ExporterURL string
}

// GetPlatformDefaults returns platform-specific defaults based on runtime.GOOS
func GetPlatformDefaults() PlatformDefaults {
	switch runtime.GOOS {
	case "windows":
		return PlatformDefaults{
			ExporterURL: "http://localhost:9182/metrics", // windows_exporter
		}
	default:
		return PlatformDefaults{
			ExporterURL: "http://localhost:9100/metrics", // node_exporter
		}
	}
}

// UpdateConfigDefaults updates viper defaults with platform-specific values
func UpdateConfigDefaults(v interface{}) {
	type viper interface {
		SetDefault(key string, value interface{})
	}

	if viperInstance, ok := v.(viper); ok {
		defaults := GetPlatformDefaults()
		viperInstance.SetDefault("metrics.exporter_url", defaults.ExporterURL)
	}
}
