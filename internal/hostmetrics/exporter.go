package hostmetrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

// maxScrapeBytes limits how much of an exporter response is parsed
const maxScrapeBytes = 10 * 1024 * 1024

// Exporter reads host metrics by scraping a Prometheus exporter
// (node_exporter or windows_exporter)
type Exporter struct {
	exporterURL string
	logger      *zap.Logger
	httpClient  *http.Client
	names       MetricNames

	mu       sync.Mutex
	families map[string]*dto.MetricFamily // last scrape, reused across sections
}

// NewExporter creates a provider that scrapes the exporter at url
func NewExporter(url string, logger *zap.Logger, httpClient *http.Client) *Exporter {
	if httpClient == nil {
		httpClient = createHTTPClient(30 * time.Second)
	}
	return &Exporter{
		exporterURL: url,
		logger:      logger,
		httpClient:  httpClient,
		names:       GetMetricNames(),
	}
}

func (e *Exporter) Name() string {
	return fmt.Sprintf("exporter (%s)", e.exporterURL)
}

// createHTTPClient creates an HTTP client with appropriate timeouts for metrics scraping
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		// Overall request timeout (connection + headers + body read)
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          2,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

func (e *Exporter) CPUCounts(ctx context.Context, logical bool) (int, error) {
	families, err := e.cached(ctx)
	if err != nil {
		return 0, err
	}

	if logical {
		family, err := e.family(families, e.names.CPUTime)
		if err != nil {
			return 0, err
		}
		cpus := make(map[string]bool)
		for _, m := range family.Metric {
			cpus[getLabelValue(m.Label, e.names.CPULabel)] = true
		}
		return len(cpus), nil
	}

	// Physical cores need the optional cpu info collector
	family, ok := families[e.names.CPUInfo]
	if e.names.CPUInfo == "" || !ok {
		return 0, ErrUnsupported
	}
	cores := make(map[string]bool)
	for _, m := range family.Metric {
		cores[getLabelValue(m.Label, "package")+"/"+getLabelValue(m.Label, "core")] = true
	}
	if len(cores) == 0 {
		return 0, ErrUnsupported
	}
	return len(cores), nil
}

func (e *Exporter) CPUFrequency(ctx context.Context) (Frequency, error) {
	families, err := e.cached(ctx)
	if err != nil {
		return Frequency{}, err
	}
	return Frequency{
		Current: meanMHz(families[e.names.CPUFreq]),
		Min:     meanMHz(families[e.names.CPUFreqMin]),
		Max:     meanMHz(families[e.names.CPUFreqMax]),
	}, nil
}

// CPUPercent scrapes twice, interval apart, and derives utilization from the
// change in idle versus total CPU time
func (e *Exporter) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	first, err := e.scrape(ctx)
	if err != nil {
		return 0, err
	}
	totalBefore, idleBefore, err := e.cpuTimes(first)
	if err != nil {
		return 0, err
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	second, err := e.scrape(ctx)
	if err != nil {
		return 0, err
	}
	totalAfter, idleAfter, err := e.cpuTimes(second)
	if err != nil {
		return 0, err
	}

	totalDelta := totalAfter - totalBefore
	idleDelta := idleAfter - idleBefore

	e.logger.Debug("CPU calculated",
		zap.Float64("total_delta", totalDelta),
		zap.Float64("idle_delta", idleDelta))

	if totalDelta <= 0 {
		return 0, nil
	}
	return ((totalDelta - idleDelta) / totalDelta) * 100, nil
}

func (e *Exporter) VirtualMemory(ctx context.Context) (VirtualMemory, error) {
	families, err := e.cached(ctx)
	if err != nil {
		return VirtualMemory{}, err
	}

	totalFamily, err := e.family(families, e.names.MemoryTotal)
	if err != nil {
		return VirtualMemory{}, err
	}
	availFamily, err := e.family(families, e.names.MemoryFree)
	if err != nil {
		return VirtualMemory{}, err
	}

	total := uint64(firstValue(totalFamily))
	available := uint64(firstValue(availFamily))
	if available > total {
		return VirtualMemory{}, fmt.Errorf("available memory %d exceeds total %d", available, total)
	}

	vm := VirtualMemory{
		Total:     total,
		Available: available,
		Used:      total - available,
	}
	if total > 0 {
		vm.UsedPercent = float64(vm.Used) / float64(total) * 100
	}
	return vm, nil
}

func (e *Exporter) Partitions(ctx context.Context, all bool) ([]Partition, error) {
	families, err := e.cached(ctx)
	if err != nil {
		return nil, err
	}
	family, err := e.family(families, e.names.DiskSizeBytes)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var partitions []Partition
	for _, m := range family.Metric {
		mountpoint := getLabelValue(m.Label, e.names.VolumeLabel)
		if mountpoint == "" || seen[mountpoint] {
			continue
		}
		p := Partition{
			Device:     mountpoint,
			Mountpoint: mountpoint,
		}
		if e.names.DeviceLabel != "" {
			p.Device = getLabelValue(m.Label, e.names.DeviceLabel)
		}
		if e.names.FstypeLabel != "" {
			p.Fstype = getLabelValue(m.Label, e.names.FstypeLabel)
		}
		if !all && isPseudoFilesystem(p.Fstype) {
			continue
		}
		seen[mountpoint] = true
		partitions = append(partitions, p)
	}
	return partitions, nil
}

func (e *Exporter) Usage(ctx context.Context, mountpoint string) (Usage, error) {
	families, err := e.cached(ctx)
	if err != nil {
		return Usage{}, err
	}

	if e.names.DiskError != "" {
		if v, ok := e.volumeValue(families[e.names.DiskError], mountpoint); ok && v != 0 {
			return Usage{}, fmt.Errorf("%s reported a device error for %s", GetExporterName(), mountpoint)
		}
	}

	size, ok := e.volumeValue(families[e.names.DiskSizeBytes], mountpoint)
	if !ok {
		return Usage{}, fmt.Errorf("no size reported for %s", mountpoint)
	}
	free, ok := e.volumeValue(families[e.names.DiskFreeBytes], mountpoint)
	if !ok {
		return Usage{}, fmt.Errorf("no free space reported for %s", mountpoint)
	}
	avail, ok := e.volumeValue(families[e.names.DiskAvailBytes], mountpoint)
	if !ok {
		avail = free
	}
	if free > size {
		return Usage{}, fmt.Errorf("free space %.0f exceeds size %.0f for %s", free, size, mountpoint)
	}

	usage := Usage{
		Total: uint64(size),
		Used:  uint64(size - free),
		Free:  uint64(avail),
	}
	// Reserved blocks are excluded, as statvfs-based tools report it
	if denom := usage.Used + usage.Free; denom > 0 {
		usage.UsedPercent = float64(usage.Used) / float64(denom) * 100
	}
	return usage, nil
}

func (e *Exporter) Interfaces(ctx context.Context) ([]Interface, error) {
	families, err := e.cached(ctx)
	if err != nil {
		return nil, err
	}
	if e.names.AddressInfo == "" {
		return nil, fmt.Errorf("interface addresses: %w", ErrUnsupported)
	}
	family, err := e.family(families, e.names.AddressInfo)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var interfaces []Interface
	for _, m := range family.Metric {
		device := getLabelValue(m.Label, "device")
		if device == "" {
			continue
		}
		addr, err := parsePrefixAddress(getLabelValue(m.Label, "address"), getLabelValue(m.Label, "netmask"), false)
		if err != nil {
			e.logger.Debug("Skipping unparsable interface address",
				zap.String("interface", device),
				zap.Error(err))
			continue
		}
		i, ok := index[device]
		if !ok {
			i = len(interfaces)
			index[device] = i
			interfaces = append(interfaces, Interface{Name: device})
		}
		interfaces[i].Addrs = append(interfaces[i].Addrs, addr)
	}
	return interfaces, nil
}

// cached returns the most recent scrape, scraping once if none exists
func (e *Exporter) cached(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	e.mu.Lock()
	families := e.families
	e.mu.Unlock()
	if families != nil {
		return families, nil
	}
	return e.scrape(ctx)
}

// scrape fetches and parses the exporter output, replacing the cache
func (e *Exporter) scrape(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	e.logger.Debug("Starting metrics scrape",
		zap.String("url", e.exporterURL),
		zap.String("exporter", GetExporterName()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.exporterURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "sysconfig/1.0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("metrics scrape timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	families, err := parseMetricFamilies(io.LimitReader(resp.Body, maxScrapeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	e.logger.Debug("Parsed metric families", zap.Int("count", len(families)))

	e.mu.Lock()
	e.families = families
	e.mu.Unlock()
	return families, nil
}

// parseMetricFamilies decodes Prometheus text format into families keyed by name
func parseMetricFamilies(reader io.Reader) (map[string]*dto.MetricFamily, error) {
	decoder := expfmt.NewDecoder(reader, expfmt.FmtText)

	families := make(map[string]*dto.MetricFamily)
	for {
		mf := &dto.MetricFamily{}
		err := decoder.Decode(mf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode metric family: %w", err)
		}
		families[mf.GetName()] = mf
	}
	return families, nil
}

// family returns the named family or an error naming the missing metric
func (e *Exporter) family(families map[string]*dto.MetricFamily, name string) (*dto.MetricFamily, error) {
	if name == "" {
		return nil, ErrUnsupported
	}
	family, ok := families[name]
	if !ok || len(family.Metric) == 0 {
		return nil, fmt.Errorf("metric %s not exposed by %s", name, e.exporterURL)
	}
	return family, nil
}

// cpuTimes sums CPU time across all cores and modes, and idle time separately
func (e *Exporter) cpuTimes(families map[string]*dto.MetricFamily) (total, idle float64, err error) {
	family, err := e.family(families, e.names.CPUTime)
	if err != nil {
		return 0, 0, err
	}
	for _, m := range family.Metric {
		value := metricValue(m)
		total += value
		if getLabelValue(m.Label, "mode") == e.names.CPUIdleLabel {
			idle += value
		}
	}
	return total, idle, nil
}

// volumeValue finds the sample for mountpoint in a per-volume family
func (e *Exporter) volumeValue(family *dto.MetricFamily, mountpoint string) (float64, bool) {
	if family == nil {
		return 0, false
	}
	for _, m := range family.Metric {
		if getLabelValue(m.Label, e.names.VolumeLabel) == mountpoint {
			return metricValue(m), true
		}
	}
	return 0, false
}

// meanMHz averages a per-CPU hertz gauge and converts it to MHz
func meanMHz(family *dto.MetricFamily) *float64 {
	if family == nil || len(family.Metric) == 0 {
		return nil
	}
	var sum float64
	for _, m := range family.Metric {
		sum += metricValue(m)
	}
	mhz := sum / float64(len(family.Metric)) / 1e6
	return &mhz
}

func firstValue(family *dto.MetricFamily) float64 {
	return metricValue(family.Metric[0])
}

// metricValue returns the sample value regardless of metric type
func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	default:
		return 0
	}
}

// getLabelValue extracts a label value from a metric's label pairs
func getLabelValue(labels []*dto.LabelPair, name string) string {
	for _, label := range labels {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
