// Package sysinfo identifies the host operating system for diagnostics.
package sysinfo

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
)

// Unknown is reported when the OS cannot be identified.
const Unknown = "Unknown OS"

// DefaultOSReleasePath is where Linux distributions describe themselves.
const DefaultOSReleasePath = "/etc/os-release"

// OS describes the host system.
type OS struct {
	System  string
	Version string
}

// String renders the OS for logs; an empty OS renders as Unknown.
func (o OS) String() string {
	if o.System == "" {
		return Unknown
	}
	if o.Version == "" {
		return fmt.Sprintf("System: %s", o.System)
	}
	return fmt.Sprintf("System: %s, Version: %s", o.System, o.Version)
}

// Detector resolves OS information. The fields exist so tests can point it at
// fixtures.
type Detector struct {
	GOOS          string
	OSReleasePath string
	// Kernel returns the platform name and release (uname on unix)
	Kernel func() (string, string, error)
}

// NewDetector returns a detector for the running host.
func NewDetector() *Detector {
	return &Detector{
		GOOS:          runtime.GOOS,
		OSReleasePath: DefaultOSReleasePath,
		Kernel:        kernel,
	}
}

// OSInfo detects the running host, degrading to Unknown on failure.
func OSInfo() OS {
	info, err := NewDetector().Detect()
	if err != nil {
		return OS{}
	}
	return info
}

// Detect resolves distribution name and version on Linux and platform name
// and version elsewhere.
func (d *Detector) Detect() (OS, error) {
	if d.GOOS == "linux" {
		if info, err := d.distribution(); err == nil {
			return info, nil
		}
	}

	system, release, err := d.Kernel()
	if err != nil {
		return OS{}, fmt.Errorf("failed to get OS information: %w", err)
	}
	return OS{System: system, Version: release}, nil
}

func (d *Detector) distribution() (OS, error) {
	values, err := godotenv.Read(d.OSReleasePath)
	if err != nil {
		return OS{}, fmt.Errorf("failed to read %s: %w", d.OSReleasePath, err)
	}

	name := firstNonEmpty(values["PRETTY_NAME"], values["NAME"])
	if name == "" {
		return OS{}, fmt.Errorf("%s has no distribution name", d.OSReleasePath)
	}
	version := firstNonEmpty(values["VERSION"], values["VERSION_ID"], values["BUILD_ID"])
	return OS{System: name, Version: version}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
