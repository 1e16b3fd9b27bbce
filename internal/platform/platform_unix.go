//go:build unix

package platform

import (
	"golang.org/x/sys/unix"
)

// Identify reads uname(2). It never fails; fields uname cannot
// provide fall back to runtime values.
func Identify() Info {
	info := fallback()

	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return info
	}

	if s := unix.ByteSliceToString(uts.Sysname[:]); s != "" {
		info.System = s
	}
	info.Release = unix.ByteSliceToString(uts.Release[:])
	info.Version = unix.ByteSliceToString(uts.Version[:])
	if m := unix.ByteSliceToString(uts.Machine[:]); m != "" {
		info.Machine = m
		info.Processor = m
	}
	return info
}
