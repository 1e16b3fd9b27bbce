package hostmetrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const nodeExporterFixture = `# HELP node_cpu_info CPU information from /proc/cpuinfo.
# TYPE node_cpu_info gauge
node_cpu_info{core="0",cpu="0",package="0"} 1
node_cpu_info{core="0",cpu="1",package="0"} 1
node_cpu_info{core="1",cpu="2",package="0"} 1
node_cpu_info{core="1",cpu="3",package="0"} 1
# TYPE node_cpu_scaling_frequency_hertz gauge
node_cpu_scaling_frequency_hertz{cpu="0"} 2e+09
node_cpu_scaling_frequency_hertz{cpu="1"} 3e+09
# TYPE node_cpu_scaling_frequency_max_hertz gauge
node_cpu_scaling_frequency_max_hertz{cpu="0"} 4e+09
node_cpu_scaling_frequency_max_hertz{cpu="1"} 4e+09
# TYPE node_cpu_scaling_frequency_min_hertz gauge
node_cpu_scaling_frequency_min_hertz{cpu="0"} 8e+08
node_cpu_scaling_frequency_min_hertz{cpu="1"} 8e+08
# TYPE node_filesystem_avail_bytes gauge
node_filesystem_avail_bytes{device="/dev/sda1",fstype="ext4",mountpoint="/"} 7.5497472e+08
node_filesystem_avail_bytes{device="tmpfs",fstype="tmpfs",mountpoint="/run"} 1.048576e+08
# TYPE node_filesystem_device_error gauge
node_filesystem_device_error{device="/dev/sda1",fstype="ext4",mountpoint="/"} 0
node_filesystem_device_error{device="/dev/sdb1",fstype="xfs",mountpoint="/data"} 1
node_filesystem_device_error{device="tmpfs",fstype="tmpfs",mountpoint="/run"} 0
# TYPE node_filesystem_free_bytes gauge
node_filesystem_free_bytes{device="/dev/sda1",fstype="ext4",mountpoint="/"} 8.05306368e+08
node_filesystem_free_bytes{device="tmpfs",fstype="tmpfs",mountpoint="/run"} 1.048576e+08
# TYPE node_filesystem_size_bytes gauge
node_filesystem_size_bytes{device="/dev/sda1",fstype="ext4",mountpoint="/"} 1.073741824e+09
node_filesystem_size_bytes{device="/dev/sdb1",fstype="xfs",mountpoint="/data"} 2.147483648e+09
node_filesystem_size_bytes{device="tmpfs",fstype="tmpfs",mountpoint="/run"} 1.048576e+08
# TYPE node_memory_MemAvailable_bytes gauge
node_memory_MemAvailable_bytes 2.68435456e+08
# TYPE node_memory_MemTotal_bytes gauge
node_memory_MemTotal_bytes 1.073741824e+09
# TYPE node_network_address_info gauge
node_network_address_info{address="10.0.0.5",device="eth0",netmask="24",scope="global"} 1
node_network_address_info{address="127.0.0.1",device="lo",netmask="8",scope="host"} 1
node_network_address_info{address="fe80::1",device="eth0",netmask="64",scope="link"} 1
`

// cpuFixture renders node_cpu_seconds_total for the n-th scrape
func cpuFixture(n int) string {
	var b strings.Builder
	b.WriteString("# TYPE node_cpu_seconds_total counter\n")
	for cpu := 0; cpu < 4; cpu++ {
		fmt.Fprintf(&b, "node_cpu_seconds_total{cpu=\"%d\",mode=\"idle\"} %d\n", cpu, 100+5*n)
		fmt.Fprintf(&b, "node_cpu_seconds_total{cpu=\"%d\",mode=\"user\"} %d\n", cpu, 50+15*n)
	}
	return b.String()
}

// newTestExporter starts a fake node_exporter and returns a provider pointed at it
func newTestExporter(t *testing.T, body string) (*Exporter, *atomic.Int32) {
	t.Helper()
	var scrapes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(scrapes.Add(1))
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, cpuFixture(n))
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	exporter := NewExporter(server.URL, zap.NewNop(), server.Client())
	exporter.names = nodeExporterNames()
	return exporter, &scrapes
}

// TestExporter_CPU tests core counts, frequency and utilization from exporter metrics
func TestExporter_CPU(t *testing.T) {
	exporter, _ := newTestExporter(t, nodeExporterFixture)
	ctx := context.Background()

	logical, err := exporter.CPUCounts(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 4, logical)

	physical, err := exporter.CPUCounts(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, physical)

	freq, err := exporter.CPUFrequency(ctx)
	require.NoError(t, err)
	require.NotNil(t, freq.Current)
	require.NotNil(t, freq.Min)
	require.NotNil(t, freq.Max)
	assert.InDelta(t, 2500.0, *freq.Current, 0.001)
	assert.InDelta(t, 800.0, *freq.Min, 0.001)
	assert.InDelta(t, 4000.0, *freq.Max, 0.001)

	// Between scrapes every CPU gains 5s idle and 15s user: 75% busy
	percent, err := exporter.CPUPercent(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, percent, 0.001)
}

// TestExporter_PhysicalCoresUnsupported tests that a missing cpu info collector is not a fault
func TestExporter_PhysicalCoresUnsupported(t *testing.T) {
	exporter, _ := newTestExporter(t, "")

	_, err := exporter.CPUCounts(context.Background(), false)
	assert.ErrorIs(t, err, ErrUnsupported)

	freq, err := exporter.CPUFrequency(context.Background())
	require.NoError(t, err)
	assert.Nil(t, freq.Current)
	assert.Nil(t, freq.Max)
}

// TestExporter_VirtualMemory tests memory derivation from MemTotal and MemAvailable
func TestExporter_VirtualMemory(t *testing.T) {
	exporter, _ := newTestExporter(t, nodeExporterFixture)

	vm, err := exporter.VirtualMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1073741824), vm.Total)
	assert.Equal(t, uint64(268435456), vm.Available)
	assert.Equal(t, uint64(805306368), vm.Used)
	assert.InDelta(t, 75.0, vm.UsedPercent, 0.001)
}

// TestExporter_MissingMemory tests that absent memory metrics are a fault
func TestExporter_MissingMemory(t *testing.T) {
	exporter, _ := newTestExporter(t, "")

	_, err := exporter.VirtualMemory(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_memory_MemTotal_bytes")
}

// TestExporter_Partitions tests filesystem enumeration and pseudo filesystem filtering
func TestExporter_Partitions(t *testing.T) {
	exporter, _ := newTestExporter(t, nodeExporterFixture)
	ctx := context.Background()

	partitions, err := exporter.Partitions(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []Partition{
		{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4"},
		{Device: "/dev/sdb1", Mountpoint: "/data", Fstype: "xfs"},
	}, partitions)

	all, err := exporter.Partitions(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// TestExporter_Usage tests usage for healthy, errored and unknown filesystems
func TestExporter_Usage(t *testing.T) {
	exporter, _ := newTestExporter(t, nodeExporterFixture)
	ctx := context.Background()

	usage, err := exporter.Usage(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, uint64(1073741824), usage.Total)
	assert.Equal(t, uint64(268435456), usage.Used)
	assert.Equal(t, uint64(754974720), usage.Free)
	assert.InDelta(t, 256.0/(256.0+720.0)*100, usage.UsedPercent, 0.001)

	_, err = exporter.Usage(ctx, "/data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device error")

	_, err = exporter.Usage(ctx, "/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no size reported")
}

// TestExporter_Interfaces tests grouping of address info by interface in scrape order
func TestExporter_Interfaces(t *testing.T) {
	exporter, _ := newTestExporter(t, nodeExporterFixture)

	interfaces, err := exporter.Interfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, interfaces, 2)

	assert.Equal(t, "eth0", interfaces[0].Name)
	assert.Equal(t, []Address{
		{Family: FamilyInet, Address: "10.0.0.5", Netmask: "255.255.255.0"},
		{Family: FamilyInet6, Address: "fe80::1", Netmask: "ffff:ffff:ffff:ffff::"},
	}, interfaces[0].Addrs)

	assert.Equal(t, "lo", interfaces[1].Name)
	assert.Equal(t, []Address{
		{Family: FamilyInet, Address: "127.0.0.1", Netmask: "255.0.0.0"},
	}, interfaces[1].Addrs)
}

// TestExporter_ScrapeCached tests that sections share one scrape
func TestExporter_ScrapeCached(t *testing.T) {
	exporter, scrapes := newTestExporter(t, nodeExporterFixture)
	ctx := context.Background()

	_, err := exporter.VirtualMemory(ctx)
	require.NoError(t, err)
	_, err = exporter.Partitions(ctx, false)
	require.NoError(t, err)
	_, err = exporter.Interfaces(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), scrapes.Load())
}

// TestExporter_BadStatus tests that non-200 responses are faults
func TestExporter_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exporter := NewExporter(server.URL, zap.NewNop(), server.Client())

	_, err := exporter.VirtualMemory(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 503")
}

// TestExporter_Name tests the provider name
func TestExporter_Name(t *testing.T) {
	exporter := NewExporter("http://localhost:9100/metrics", zap.NewNop(), nil)

	name := exporter.Name()
	if !strings.Contains(name, "exporter") {
		t.Errorf("Name() = %s, expected to contain 'exporter'", name)
	}
	if !strings.Contains(name, "localhost:9100") {
		t.Errorf("Name() = %s, expected to contain URL", name)
	}
}
