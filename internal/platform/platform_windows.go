//go:build windows

package platform

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/windows"
)

// firstWindows11Build is the first build number that ships as Windows 11
const firstWindows11Build = 22000

// Identify reads the kernel version via RtlGetVersion and the processor
// description Windows publishes in the process environment
func Identify() Info {
	info := fallback()

	v := windows.RtlGetVersion()
	info.Release = strconv.FormatUint(uint64(v.MajorVersion), 10)
	if v.MajorVersion == 10 && v.BuildNumber >= firstWindows11Build {
		info.Release = "11"
	}
	info.Version = fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)

	if arch := os.Getenv("PROCESSOR_ARCHITECTURE"); arch != "" {
		info.Machine = arch
	}
	if id := os.Getenv("PROCESSOR_IDENTIFIER"); id != "" {
		info.Processor = id
	}
	return info
}
