// Package serialport resolves logical device roles to serial port paths and
// opens ports with the framing parameters each role requires.
package serialport

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultByIDDir is where the kernel keeps identifier-stable symlinks to
// serial devices.
const DefaultByIDDir = "/dev/serial/by-id"

// Resolver maps one device role to a concrete port path. A resolver with an
// empty Match always returns Fallback.
type Resolver struct {
	// Match is a substring compared against by-id symlink names.
	Match string
	// Fallback is used when no by-id entry matches, e.g. early in boot
	// before udev has populated the directory.
	Fallback string
	// ByIDDir overrides DefaultByIDDir, mainly for tests.
	ByIDDir string
}

// Resolve returns the port path for this role. It never fails: when the
// stable lookup finds nothing, the fallback is returned even if that path
// does not currently exist. Callers must resolve fresh before every open so
// a replugged device is picked up.
func (r Resolver) Resolve() string {
	if r.Match == "" {
		return r.Fallback
	}

	dir := r.ByIDDir
	if dir == "" {
		dir = DefaultByIDDir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return r.Fallback
	}

	for _, entry := range entries {
		if strings.Contains(entry.Name(), r.Match) {
			return filepath.Join(dir, entry.Name())
		}
	}

	return r.Fallback
}
