// Package platform identifies the running operating system.
package platform

import "runtime"

// Info holds operating system identification strings
type Info struct {
	System    string
	Release   string
	Version   string
	Machine   string
	Processor string
}

// systemNames maps GOOS values to the names the kernel reports for itself
var systemNames = map[string]string{
	"aix":       "AIX",
	"darwin":    "Darwin",
	"dragonfly": "DragonFly",
	"freebsd":   "FreeBSD",
	"illumos":   "SunOS",
	"linux":     "Linux",
	"netbsd":    "NetBSD",
	"openbsd":   "OpenBSD",
	"plan9":     "Plan9",
	"solaris":   "SunOS",
	"windows":   "Windows",
}

// fallback derives what it can from the Go runtime
func fallback() Info {
	system, ok := systemNames[runtime.GOOS]
	if !ok {
		system = runtime.GOOS
	}
	return Info{
		System:    system,
		Machine:   runtime.GOARCH,
		Processor: runtime.GOARCH,
	}
}
