package hostmetrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnsupported is returned for statistics a provider cannot report on this host
var ErrUnsupported = errors.New("not reported by this platform")

// Provider supplies CPU, memory, disk and network statistics
type Provider interface {
	// Name returns the provider name for logging
	Name() string

	// CPUCounts returns the number of logical or physical cores
	CPUCounts(ctx context.Context, logical bool) (int, error)

	// CPUFrequency returns the frequency bounds in MHz; unknown values are nil
	CPUFrequency(ctx context.Context) (Frequency, error)

	// CPUPercent blocks for interval and returns utilization over it
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)

	VirtualMemory(ctx context.Context) (VirtualMemory, error)

	// Partitions lists mounted filesystems; all includes pseudo filesystems
	Partitions(ctx context.Context, all bool) ([]Partition, error)

	// Usage returns space statistics for the filesystem mounted at mountpoint
	Usage(ctx context.Context, mountpoint string) (Usage, error)

	// Interfaces lists network interfaces and their addresses in enumeration order
	Interfaces(ctx context.Context) ([]Interface, error)
}

// Frequency holds CPU frequency bounds in MHz
type Frequency struct {
	Current *float64
	Min     *float64
	Max     *float64
}

// VirtualMemory holds system memory statistics in bytes
type VirtualMemory struct {
	Total       uint64
	Available   uint64
	Used        uint64
	UsedPercent float64
}

// Partition is a mounted filesystem
type Partition struct {
	Device     string
	Mountpoint string
	Fstype     string
	Opts       []string
}

// Usage holds filesystem space statistics in bytes
type Usage struct {
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
}

// Interface is a network interface with its addresses
type Interface struct {
	Name  string
	Addrs []Address
}

// Address is an interface address; empty strings mean not applicable
type Address struct {
	Family    string
	Address   string
	Netmask   string
	Broadcast string
	PTP       string
}

const (
	SourceBuiltin  = "builtin"
	SourceExporter = "exporter"
	SourceNone     = "none"
)

// New creates the provider for source.
// A nil Provider with a nil error means host metrics are disabled.
func New(source, exporterURL string, timeout time.Duration, logger *zap.Logger) (Provider, error) {
	source = strings.ToLower(source)
	if source == "" {
		source = SourceBuiltin // Default
	}

	switch source {
	case SourceBuiltin:
		logger.Debug("Using builtin host metrics provider (gopsutil)")
		return NewBuiltin(logger), nil
	case SourceExporter:
		if exporterURL == "" {
			return nil, fmt.Errorf("exporter_url required for exporter source")
		}
		logger.Debug("Using exporter host metrics provider", zap.String("url", exporterURL))
		return NewExporter(exporterURL, logger, createHTTPClient(timeout)), nil
	case SourceNone:
		logger.Debug("Host metrics disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown metrics source: %s", source)
	}
}

// pseudoFilesystems are skipped unless all partitions are requested
var pseudoFilesystems = map[string]bool{
	"autofs":      true,
	"binfmt_misc": true,
	"cgroup":      true,
	"cgroup2":     true,
	"configfs":    true,
	"debugfs":     true,
	"devfs":       true,
	"devpts":      true,
	"devtmpfs":    true,
	"fusectl":     true,
	"mqueue":      true,
	"nsfs":        true,
	"overlay":     true,
	"proc":        true,
	"pstore":      true,
	"rootfs":      true,
	"securityfs":  true,
	"sysfs":       true,
	"tmpfs":       true,
	"tracefs":     true,
}

// isPseudoFilesystem reports whether fstype is a virtual filesystem
func isPseudoFilesystem(fstype string) bool {
	return pseudoFilesystems[fstype]
}
