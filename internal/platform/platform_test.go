package platform

import (
	"runtime"
	"testing"
)

// TestIdentify tests that identification always yields a system and machine
func TestIdentify(t *testing.T) {
	info := Identify()

	if info.System == "" {
		t.Error("System is empty")
	}
	if info.Machine == "" {
		t.Error("Machine is empty")
	}
	if info.Processor == "" {
		t.Error("Processor is empty")
	}

	if runtime.GOOS == "linux" {
		if info.System != "Linux" {
			t.Errorf("System = %q, want Linux", info.System)
		}
		if info.Release == "" {
			t.Error("Release is empty on linux")
		}
	}
}

// TestFallback tests runtime-derived identification
func TestFallback(t *testing.T) {
	info := fallback()

	want, ok := systemNames[runtime.GOOS]
	if !ok {
		want = runtime.GOOS
	}
	if info.System != want {
		t.Errorf("System = %q, want %q", info.System, want)
	}
	if info.Machine != runtime.GOARCH {
		t.Errorf("Machine = %q, want %q", info.Machine, runtime.GOARCH)
	}
}
