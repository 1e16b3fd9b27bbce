package hostmetrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

// Builtin collects host metrics using gopsutil
type Builtin struct {
	logger *zap.Logger
}

// NewBuiltin creates a new gopsutil-based provider
func NewBuiltin(logger *zap.Logger) *Builtin {
	return &Builtin{logger: logger}
}

func (b *Builtin) Name() string {
	return "builtin (gopsutil)"
}

func (b *Builtin) CPUCounts(ctx context.Context, logical bool) (int, error) {
	n, err := cpu.CountsWithContext(ctx, logical)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, ErrUnsupported
	}
	return n, nil
}

func (b *Builtin) CPUFrequency(ctx context.Context) (Frequency, error) {
	return readFrequency(ctx)
}

func (b *Builtin) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	// false = combined across all CPUs
	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no CPU utilization returned")
	}
	return percents[0], nil
}

func (b *Builtin) VirtualMemory(ctx context.Context) (VirtualMemory, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return VirtualMemory{}, err
	}
	return VirtualMemory{
		Total:       vmem.Total,
		Available:   vmem.Available,
		Used:        vmem.Used,
		UsedPercent: vmem.UsedPercent,
	}, nil
}

func (b *Builtin) Partitions(ctx context.Context, all bool) ([]Partition, error) {
	stats, err := disk.PartitionsWithContext(ctx, all)
	if err != nil {
		return nil, err
	}

	partitions := make([]Partition, 0, len(stats))
	for _, p := range stats {
		if !all && isPseudoFilesystem(p.Fstype) {
			b.logger.Debug("Skipping pseudo filesystem",
				zap.String("mountpoint", p.Mountpoint),
				zap.String("fstype", p.Fstype))
			continue
		}
		partitions = append(partitions, Partition{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			Opts:       p.Opts,
		})
	}
	return partitions, nil
}

func (b *Builtin) Usage(ctx context.Context, mountpoint string) (Usage, error) {
	usage, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Total:       usage.Total,
		Used:        usage.Used,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

func (b *Builtin) Interfaces(ctx context.Context) ([]Interface, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	interfaces := make([]Interface, 0, len(stats))
	for _, stat := range stats {
		broadcast := hasFlag(stat.Flags, "broadcast")

		iface := Interface{Name: stat.Name}
		for _, a := range stat.Addrs {
			addr, err := parseCIDRAddress(a.Addr, broadcast)
			if err != nil {
				b.logger.Debug("Skipping unparsable interface address",
					zap.String("interface", stat.Name),
					zap.Error(err))
				continue
			}
			iface.Addrs = append(iface.Addrs, addr)
		}
		if stat.HardwareAddr != "" {
			iface.Addrs = append(iface.Addrs, linkAddress(stat.HardwareAddr, broadcast))
		}
		interfaces = append(interfaces, iface)
	}
	return interfaces, nil
}

// hasFlag reports whether an interface flag list contains flag
func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
