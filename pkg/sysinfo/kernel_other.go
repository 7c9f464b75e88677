//go:build !unix

package sysinfo

import (
	"runtime"
)

func kernel() (string, string, error) {
	return runtime.GOOS, "", nil
}
