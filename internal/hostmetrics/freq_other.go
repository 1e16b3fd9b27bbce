//go:build !linux

package hostmetrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
)

// readFrequency reports the nominal clock speed as both current and max.
// Minimum frequency is not exposed on these platforms.
func readFrequency(ctx context.Context) (Frequency, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return Frequency{}, err
	}
	if len(infos) == 0 || infos[0].Mhz <= 0 {
		return Frequency{}, nil
	}

	mhz := infos[0].Mhz
	maxMHz := mhz
	return Frequency{Current: &mhz, Max: &maxMHz}, nil
}
