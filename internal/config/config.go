package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stone-age-io/sysconfig/internal/hostmetrics"
	"go.uber.org/zap/zapcore"
)

// DefaultOutput is the snapshot destination when none is configured
const DefaultOutput = "system_config.yaml"

// Config is the complete program configuration
type Config struct {
	Output  string        `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Disk    DiskConfig    `mapstructure:"disk"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MetricsConfig selects where CPU, memory, disk and network statistics come from
type MetricsConfig struct {
	Source      string        `mapstructure:"source"`
	ExporterURL string        `mapstructure:"exporter_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type DiskConfig struct {
	AllPartitions bool `mapstructure:"all_partitions"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// flagKeys maps command line flags to the config keys they override
var flagKeys = map[string]string{
	"metrics-source": "metrics.source",
	"log-level":      "logging.level",
}

// RegisterFlags defines the command line flags that override config keys
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("metrics-source", "", "host metrics source: builtin, exporter or none")
	flags.String("log-level", "", "log level: debug, info, warn or error")
}

// Load builds the configuration from defaults, the optional config file,
// changed flags and the positional output path, in increasing precedence.
// The process environment is not consulted.
func Load(configPath string, flags *pflag.FlagSet, output string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if output != "" {
		v.Set("output", output)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Metrics.Source = strings.ToLower(cfg.Metrics.Source)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output", DefaultOutput)

	v.SetDefault("metrics.source", hostmetrics.SourceBuiltin)
	v.SetDefault("metrics.timeout", 30*time.Second)

	v.SetDefault("disk.all_partitions", false)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)

	UpdateConfigDefaults(v)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Output) == "" {
		return fmt.Errorf("output path is required")
	}

	switch cfg.Metrics.Source {
	case hostmetrics.SourceBuiltin, hostmetrics.SourceExporter, hostmetrics.SourceNone:
	default:
		return fmt.Errorf("invalid metrics.source: %q (must be builtin, exporter or none)", cfg.Metrics.Source)
	}

	if cfg.Metrics.Source == hostmetrics.SourceExporter && cfg.Metrics.ExporterURL == "" {
		return fmt.Errorf("metrics.exporter_url is required when metrics.source is exporter")
	}

	if cfg.Metrics.Timeout <= 0 {
		return fmt.Errorf("metrics.timeout must be positive")
	}

	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}

	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB <= 0 {
			return fmt.Errorf("logging.max_size_mb must be positive")
		}
		if cfg.Logging.MaxBackups < 0 {
			return fmt.Errorf("logging.max_backups cannot be negative")
		}
	}

	return nil
}
