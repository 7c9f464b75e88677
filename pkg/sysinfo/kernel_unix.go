//go:build unix

package sysinfo

import (
	"golang.org/x/sys/unix"
)

func kernel() (string, string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", "", err
	}
	return unix.ByteSliceToString(uts.Sysname[:]), unix.ByteSliceToString(uts.Release[:]), nil
}
