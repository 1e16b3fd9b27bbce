package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stone-age-io/sysconfig/internal/hostmetrics"
	"github.com/stone-age-io/sysconfig/internal/platform"
	"github.com/stone-age-io/sysconfig/internal/snapshot"
	"github.com/stone-age-io/sysconfig/internal/utils"
	"go.uber.org/zap"
)

const (
	// SampleInterval is the observation window for CPU utilization
	SampleInterval = time.Second

	// UnavailableMarker replaces sections whose data source is not present
	UnavailableMarker = "host metrics provider not available"
)

// Collector gathers a snapshot of the host
type Collector struct {
	logger         *zap.Logger
	metrics        hostmetrics.Provider // nil when host metrics are unavailable
	identify       func() platform.Info
	env            EnvironmentSource
	now            func() time.Time
	allPartitions  bool
	sampleInterval time.Duration
}

// Option configures a Collector
type Option func(*Collector)

// WithEnvironment replaces the process environment as the environment source
func WithEnvironment(env EnvironmentSource) Option {
	return func(c *Collector) {
		c.env = env
	}
}

// WithClock sets the clock used for the snapshot timestamp
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// WithPlatform replaces OS identification
func WithPlatform(identify func() platform.Info) Option {
	return func(c *Collector) {
		c.identify = identify
	}
}

// WithAllPartitions includes pseudo filesystems in the disk section
func WithAllPartitions(all bool) Option {
	return func(c *Collector) {
		c.allPartitions = all
	}
}

// New creates a collector. metrics may be nil, in which case the CPU, memory,
// disk and network sections carry UnavailableMarker.
func New(logger *zap.Logger, metrics hostmetrics.Provider, opts ...Option) *Collector {
	c := &Collector{
		logger:         logger,
		metrics:        metrics,
		identify:       platform.Identify,
		env:            ProcessEnvironment{},
		now:            time.Now,
		sampleInterval: SampleInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gather collects every section in order. Faults are recorded in the
// snapshot rather than returned, so the result is always complete.
func (c *Collector) Gather(ctx context.Context) *snapshot.Snapshot {
	if c.metrics == nil {
		c.logger.Warn("Host metrics provider not available, CPU, memory, disk and network will be skipped")
	} else {
		c.logger.Debug("Collecting host metrics", zap.String("provider", c.metrics.Name()))
	}

	snap := &snapshot.Snapshot{}
	snap.OS = c.collectOS()
	snap.CPU = metricSection(ctx, c, "cpu", "Error collecting CPU info", c.collectCPU)
	snap.Memory = metricSection(ctx, c, "memory", "Error collecting memory info", c.collectMemory)
	snap.Disk = metricSection(ctx, c, "disk", "Error collecting disk info", c.collectDisk)
	snap.Network = metricSection(ctx, c, "network", "Error collecting network info", c.collectNetwork)
	snap.Environment = section(c.logger, "environment", "Error collecting environment variables", c.collectEnvironment)
	snap.Timestamp = c.now().Format(time.RFC3339Nano)

	c.logger.Info("Snapshot collected", zap.String("timestamp", snap.Timestamp))
	return snap
}

// section runs fn inside a failure boundary, converting errors and panics
// into a descriptive string for the section
func section[T any](logger *zap.Logger, name, errPrefix string, fn func() (T, error)) (result snapshot.Section[T]) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic while collecting section",
				zap.String("section", name),
				zap.Any("panic", r))
			result = snapshot.Unavailable[T](fmt.Sprintf("%s: %v", errPrefix, r))
		}
	}()

	value, err := fn()
	if err != nil {
		logger.Warn("Failed to collect section",
			zap.String("section", name),
			zap.Error(err))
		return snapshot.Unavailable[T](fmt.Sprintf("%s: %v", errPrefix, err))
	}

	logger.Debug("Collected section", zap.String("section", name))
	return snapshot.Available(value)
}

// metricSection is section for data that needs the host metrics provider
func metricSection[T any](ctx context.Context, c *Collector, name, errPrefix string,
	fn func(context.Context, hostmetrics.Provider) (T, error)) snapshot.Section[T] {
	if c.metrics == nil {
		return snapshot.Unavailable[T](UnavailableMarker)
	}
	return section(c.logger, name, errPrefix, func() (T, error) {
		return fn(ctx, c.metrics)
	})
}

func (c *Collector) collectOS() snapshot.OSInfo {
	info := c.identify()
	return snapshot.OSInfo{
		System:    info.System,
		Release:   info.Release,
		Version:   info.Version,
		Machine:   info.Machine,
		Processor: info.Processor,
	}
}

func (c *Collector) collectCPU(ctx context.Context, p hostmetrics.Provider) (snapshot.CPUInfo, error) {
	var info snapshot.CPUInfo
	var err error

	if info.PhysicalCores, err = optionalCount(p.CPUCounts(ctx, false)); err != nil {
		return snapshot.CPUInfo{}, fmt.Errorf("physical cores: %w", err)
	}
	if info.TotalCores, err = optionalCount(p.CPUCounts(ctx, true)); err != nil {
		return snapshot.CPUInfo{}, fmt.Errorf("logical cores: %w", err)
	}

	freq, err := p.CPUFrequency(ctx)
	if err != nil && !errors.Is(err, hostmetrics.ErrUnsupported) {
		return snapshot.CPUInfo{}, fmt.Errorf("frequency: %w", err)
	}
	info.MaxFrequencyMHz = freq.Max
	info.MinFrequencyMHz = freq.Min
	info.CurrentFrequencyMHz = freq.Current

	c.logger.Debug("Sampling CPU utilization", zap.Duration("interval", c.sampleInterval))
	percent, err := p.CPUPercent(ctx, c.sampleInterval)
	if err != nil {
		return snapshot.CPUInfo{}, fmt.Errorf("utilization: %w", err)
	}
	info.UsagePercent = utils.Round(percent)

	return info, nil
}

// optionalCount maps ErrUnsupported to an unknown (nil) count
func optionalCount(n int, err error) (*int, error) {
	if errors.Is(err, hostmetrics.ErrUnsupported) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Collector) collectMemory(ctx context.Context, p hostmetrics.Provider) (snapshot.MemoryInfo, error) {
	vm, err := p.VirtualMemory(ctx)
	if err != nil {
		return snapshot.MemoryInfo{}, err
	}
	return snapshot.MemoryInfo{
		TotalMB:     utils.BytesToMB(vm.Total),
		AvailableMB: utils.BytesToMB(vm.Available),
		UsedMB:      utils.BytesToMB(vm.Used),
		Percentage:  utils.Round(vm.UsedPercent),
	}, nil
}

func (c *Collector) collectDisk(ctx context.Context, p hostmetrics.Provider) ([]snapshot.Partition, error) {
	partitions, err := p.Partitions(ctx, c.allPartitions)
	if err != nil {
		return nil, err
	}

	records := make([]snapshot.Partition, 0, len(partitions))
	for _, partition := range partitions {
		records = append(records, c.collectPartition(ctx, p, partition))
	}
	return records, nil
}

// collectPartition reads usage for one partition. A fault yields a record
// holding only the device and the error.
func (c *Collector) collectPartition(ctx context.Context, p hostmetrics.Provider, partition hostmetrics.Partition) (record snapshot.Partition) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered panic while reading disk usage",
				zap.String("device", partition.Device),
				zap.Any("panic", r))
			record = partitionFault(partition.Device, fmt.Sprint(r))
		}
	}()

	usage, err := p.Usage(ctx, partition.Mountpoint)
	if err != nil {
		c.logger.Debug("Could not get disk usage",
			zap.String("device", partition.Device),
			zap.String("mountpoint", partition.Mountpoint),
			zap.Error(err))
		return partitionFault(partition.Device, err.Error())
	}

	return snapshot.Partition{
		Device:     partition.Device,
		Mountpoint: partition.Mountpoint,
		Fstype:     partition.Fstype,
		Opts:       strings.Join(partition.Opts, ","),
		TotalMB:    utils.BytesToMB(usage.Total),
		UsedMB:     utils.BytesToMB(usage.Used),
		FreeMB:     utils.BytesToMB(usage.Free),
		Percentage: utils.Round(usage.UsedPercent),
	}
}

func partitionFault(device, msg string) snapshot.Partition {
	if msg == "" {
		msg = "unknown error"
	}
	return snapshot.Partition{Device: device, Error: msg}
}

func (c *Collector) collectNetwork(ctx context.Context, p hostmetrics.Provider) (snapshot.Interfaces, error) {
	interfaces, err := p.Interfaces(ctx)
	if err != nil {
		return nil, err
	}

	out := make(snapshot.Interfaces, 0, len(interfaces))
	for _, iface := range interfaces {
		addrs := make([]snapshot.Address, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, snapshot.Address{
				Family:    a.Family,
				Address:   a.Address,
				Netmask:   optional(a.Netmask),
				Broadcast: optional(a.Broadcast),
				PTP:       optional(a.PTP),
			})
		}
		out = append(out, snapshot.Interface{Name: iface.Name, Addresses: addrs})
	}
	return out, nil
}

// optional maps an empty string to an absent value
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *Collector) collectEnvironment() (snapshot.Environment, error) {
	env, err := c.env.Environ()
	if err != nil {
		return nil, err
	}
	return snapshot.Environment(env), nil
}
