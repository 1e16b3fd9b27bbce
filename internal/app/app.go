package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/stone-age-io/sysconfig/internal/collector"
	"github.com/stone-age-io/sysconfig/internal/config"
	"github.com/stone-age-io/sysconfig/internal/hostmetrics"
	"github.com/stone-age-io/sysconfig/internal/snapshot"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options carries command line input for one run
type Options struct {
	ConfigFile string
	Output     string // positional output path, overrides config
	Flags      *pflag.FlagSet
	Check      bool // re-read the written file
	Version    string
	Stdout     io.Writer
	Stderr     io.Writer
}

// App collects one snapshot and writes it to disk
type App struct {
	config    *config.Config
	logger    *zap.Logger
	collector *collector.Collector
	logFile   *lumberjack.Logger // nil without logging.file
	stdout    io.Writer
	check     bool
}

// New loads configuration and wires the collector
func New(opts Options) (*App, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigFile, opts.Flags, opts.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, logFile, err := initLogger(cfg.Logging, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting sysconfig",
		zap.String("version", opts.Version),
		zap.String("output", cfg.Output),
		zap.String("metrics_source", cfg.Metrics.Source))

	provider, err := hostmetrics.New(cfg.Metrics.Source, cfg.Metrics.ExporterURL, cfg.Metrics.Timeout, logger)
	if err != nil {
		logger.Warn("Host metrics provider could not be created", zap.Error(err))
		provider = nil
	}

	return &App{
		config:    cfg,
		logger:    logger,
		logFile:   logFile,
		collector: collector.New(logger, provider, collector.WithAllPartitions(cfg.Disk.AllPartitions)),
		stdout:    opts.Stdout,
		check:     opts.Check,
	}, nil
}

// Run gathers a snapshot and writes it. A write failure is reported on
// stdout and is not an error.
func (a *App) Run(ctx context.Context) error {
	snap := a.collector.Gather(ctx)

	if err := snapshot.WriteFile(a.config.Output, snap); err != nil {
		a.logger.Error("Failed to write configuration file",
			zap.String("path", a.config.Output),
			zap.Error(err))
		fmt.Fprintf(a.stdout, "Failed to write configuration file: %v\n", err)
		return nil
	}
	fmt.Fprintf(a.stdout, "Configuration file successfully saved to %s\n", a.config.Output)

	if a.check {
		if _, err := snapshot.ReadFile(a.config.Output); err != nil {
			return fmt.Errorf("written file failed verification: %w", err)
		}
		a.logger.Info("Written file verified", zap.String("path", a.config.Output))
	}

	return nil
}

// Close flushes buffered log entries and releases the log file
func (a *App) Close() {
	a.logger.Sync()
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// initLogger creates the logger: console output on stderr plus an optional
// rotated JSON file
func initLogger(cfg config.LoggingConfig, stderr io.Writer) (*zap.Logger, *lumberjack.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// stdout is reserved for the result message
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(stderr), level),
	}

	var fileWriter *lumberjack.Logger
	if cfg.File != "" {
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(fileWriter), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logger, fileWriter, nil
}
