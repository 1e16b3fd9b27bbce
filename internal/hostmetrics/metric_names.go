package hostmetrics

import (
	"runtime"
)

// MetricNames defines platform-specific Prometheus metric names
type MetricNames struct {
	CPUTime        string // Counter: total CPU time per core and mode
	CPUIdleLabel   string // Label value for idle mode
	CPULabel       string // Label name for the logical CPU
	CPUInfo        string // Info: per-CPU topology (package, core)
	CPUFreq        string // Gauge: current frequency in hertz
	CPUFreqMin     string // Gauge: minimum frequency in hertz
	CPUFreqMax     string // Gauge: maximum frequency in hertz
	MemoryTotal    string // Gauge: physical memory bytes
	MemoryFree     string // Gauge: available memory bytes
	DiskSizeBytes  string // Gauge: filesystem size
	DiskFreeBytes  string // Gauge: filesystem free bytes
	DiskAvailBytes string // Gauge: filesystem bytes available to unprivileged users
	DiskError      string // Gauge: 1 when the exporter could not stat the filesystem
	VolumeLabel    string // Label name for the mount point or volume
	DeviceLabel    string // Label name for the backing device
	FstypeLabel    string // Label name for the filesystem type
	AddressInfo    string // Info: per-interface address, netmask and scope
}

// GetMetricNames returns metric names for the exporter expected on this platform
func GetMetricNames() MetricNames {
	if runtime.GOOS == "windows" {
		return windowsExporterNames()
	}
	// node_exporter on Linux, FreeBSD and others
	return nodeExporterNames()
}

func windowsExporterNames() MetricNames {
	return MetricNames{
		CPUTime:        "windows_cpu_time_total",
		CPUIdleLabel:   "idle",
		CPULabel:       "core",
		MemoryTotal:    "windows_cs_physical_memory_bytes",
		MemoryFree:     "windows_memory_available_bytes",
		DiskSizeBytes:  "windows_logical_disk_size_bytes",
		DiskFreeBytes:  "windows_logical_disk_free_bytes",
		DiskAvailBytes: "windows_logical_disk_free_bytes",
		VolumeLabel:    "volume", // "C:", "D:", etc.
	}
}

func nodeExporterNames() MetricNames {
	return MetricNames{
		CPUTime:        "node_cpu_seconds_total",
		CPUIdleLabel:   "idle",
		CPULabel:       "cpu",
		CPUInfo:        "node_cpu_info",
		CPUFreq:        "node_cpu_scaling_frequency_hertz",
		CPUFreqMin:     "node_cpu_scaling_frequency_min_hertz",
		CPUFreqMax:     "node_cpu_scaling_frequency_max_hertz",
		MemoryTotal:    "node_memory_MemTotal_bytes",
		MemoryFree:     "node_memory_MemAvailable_bytes",
		DiskSizeBytes:  "node_filesystem_size_bytes",
		DiskFreeBytes:  "node_filesystem_free_bytes",
		DiskAvailBytes: "node_filesystem_avail_bytes",
		DiskError:      "node_filesystem_device_error",
		VolumeLabel:    "mountpoint",
		DeviceLabel:    "device",
		FstypeLabel:    "fstype",
		AddressInfo:    "node_network_address_info",
	}
}

// GetExporterName returns the expected exporter name for this platform
func GetExporterName() string {
	if runtime.GOOS == "windows" {
		return "windows_exporter"
	}
	return "node_exporter"
}
