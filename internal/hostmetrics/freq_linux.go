//go:build linux

package hostmetrics

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

// sysCPUPath is the sysfs root for CPU frequency scaling
var sysCPUPath = "/sys/devices/system/cpu"

// readFrequency averages cpufreq values across CPUs, falling back to
// /proc/cpuinfo (current frequency only) when cpufreq is not exposed
func readFrequency(ctx context.Context) (Frequency, error) {
	dirs, _ := filepath.Glob(filepath.Join(sysCPUPath, "cpufreq", "policy[0-9]*"))
	if len(dirs) == 0 {
		dirs, _ = filepath.Glob(filepath.Join(sysCPUPath, "cpu[0-9]*", "cpufreq"))
	}

	var cur, minF, maxF []float64
	for _, dir := range dirs {
		if v, ok := readKHz(dir, "scaling_cur_freq", "cpuinfo_cur_freq"); ok {
			cur = append(cur, v)
		}
		if v, ok := readKHz(dir, "cpuinfo_min_freq"); ok {
			minF = append(minF, v)
		}
		if v, ok := readKHz(dir, "cpuinfo_max_freq"); ok {
			maxF = append(maxF, v)
		}
	}

	if len(cur) > 0 {
		return Frequency{
			Current: mean(cur),
			Min:     mean(minF),
			Max:     mean(maxF),
		}, nil
	}

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return Frequency{}, err
	}
	var mhz []float64
	for _, info := range infos {
		if info.Mhz > 0 {
			mhz = append(mhz, info.Mhz)
		}
	}
	return Frequency{Current: mean(mhz)}, nil
}

// readKHz reads the first available file in dir and converts kHz to MHz
func readKHz(dir string, names ...string) (float64, bool) {
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			continue
		}
		return v / 1000, true
	}
	return 0, false
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}
