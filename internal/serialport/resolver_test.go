package serialport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveMatchesByID(t *testing.T) {
	dir := t.TempDir()
	name := "usb-FTDI_USB_Serial_Converter_A106-if00-port0"
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "usb-Some_Other_Device-if00"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	r := Resolver{
		Match:    "FTDI_USB_Serial_Converter",
		Fallback: "/dev/ttyUSB1",
		ByIDDir:  dir,
	}

	if got := r.Resolve(); got != filepath.Join(dir, name) {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolveFallsBack(t *testing.T) {
	r := Resolver{
		Match:    "FTDI_USB_Serial_Converter",
		Fallback: "/dev/ttyUSB1",
		ByIDDir:  t.TempDir(), // empty, no matches
	}

	if got := r.Resolve(); got != "/dev/ttyUSB1" {
		t.Errorf("Resolve() = %q, want fallback", got)
	}
}

func TestResolveMissingByIDDir(t *testing.T) {
	// Early in boot /dev/serial/by-id may not exist yet; the fallback
	// must come back without an error.
	r := Resolver{
		Match:    "anything",
		Fallback: "/dev/ttyUSB0",
		ByIDDir:  "/nonexistent/by-id",
	}

	if got := r.Resolve(); got != "/dev/ttyUSB0" {
		t.Errorf("Resolve() = %q, want fallback", got)
	}
}

func TestResolveEmptyMatchSkipsLookup(t *testing.T) {
	r := Resolver{Fallback: "/dev/ttyACM0"}

	if got := r.Resolve(); got != "/dev/ttyACM0" {
		t.Errorf("Resolve() = %q, want fallback", got)
	}
}
