// Package config loads the bridge configuration from a TOML file,
// overlaying any values present in the file on top of compiled-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Printer encoding variants.
const (
	EncodingCP437 = "cp437"
	EncodingUTF8  = "utf8"
)

// Printer cut variants.
const (
	CutNone    = "none"
	CutFeed    = "feed"    // ESC d n, print and feed n lines
	CutPartial = "partial" // GS V 1
	CutFull    = "full"    // GS V 0
)

// Config is the root configuration for the bridge process.
type Config struct {
	Server  Server  `toml:"server"`
	Scanner Scanner `toml:"scanner"`
	Printer Printer `toml:"printer"`
	Catalog Catalog `toml:"catalog"`
	Debug   bool    `toml:"debug"`
}

// Server configures the HTTP listener and static file root.
type Server struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	StaticDir string `toml:"static_dir"`
}

// Scanner configures the barcode scanner serial link.
type Scanner struct {
	// ByIDMatch is a substring matched against /dev/serial/by-id entries.
	// Empty disables the stable lookup and uses Fallback directly.
	ByIDMatch string `toml:"by_id_match"`
	Fallback  string `toml:"fallback"`
	BaudRate  int    `toml:"baud_rate"`
	// ReadTimeoutMS bounds each serial read, in milliseconds; a timed-out
	// read returns zero bytes and is retried.
	ReadTimeoutMS int `toml:"read_timeout_ms"`
	// BackoffMS is the delay before a reconnect attempt after any failure.
	BackoffMS int `toml:"backoff_ms"`
}

// ReadTimeout returns the serial read timeout as a duration.
func (s Scanner) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// Backoff returns the reconnect delay as a duration.
func (s Scanner) Backoff() time.Duration {
	return time.Duration(s.BackoffMS) * time.Millisecond
}

// Printer configures the receipt printer serial link and wire format.
type Printer struct {
	ByIDMatch string `toml:"by_id_match"`
	Fallback  string `toml:"fallback"`
	BaudRate  int    `toml:"baud_rate"`
	TimeoutMS int    `toml:"timeout_ms"`

	// Encoding selects the byte encoding of receipt text: "cp437" for the
	// classic ESC/POS code page, "utf8" for printers with native UTF-8.
	Encoding string `toml:"encoding"`
	// Cut selects the trailing command: "none", "feed" (ESC d), "partial"
	// or "full" (GS V).
	Cut string `toml:"cut"`
	// FeedLines is the number of blank lines appended after the text so
	// the paper clears the tear bar.
	FeedLines int `toml:"feed_lines"`
	// FeedCutLines is the n in ESC d n when Cut is "feed".
	FeedCutLines int `toml:"feed_cut_lines"`

	// AllowEmpty accepts print requests with an empty text field and
	// produces a blank receipt instead of rejecting the request.
	AllowEmpty bool `toml:"allow_empty"`
}

// Timeout returns the serial read/write timeout as a duration.
func (p Printer) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// Catalog configures the product catalog store.
type Catalog struct {
	Path string `toml:"path"`
}

// Defaults returns the configuration used when no file is present. The
// serial parameters match the FTDI scanner and CP2102-attached printer the
// bridge was built for.
func Defaults() Config {
	return Config{
		Server: Server{
			Host:      "0.0.0.0",
			Port:      8080,
			StaticDir: ".",
		},
		Scanner: Scanner{
			ByIDMatch:     "FTDI_USB_Serial_Converter",
			Fallback:      "/dev/ttyUSB1",
			BaudRate:      9600,
			ReadTimeoutMS: 1000,
			BackoffMS:     1000,
		},
		Printer: Printer{
			ByIDMatch:    "Silicon_Labs_CP2102",
			Fallback:     "/dev/ttyUSB0",
			BaudRate:     19200,
			TimeoutMS:    2000,
			Encoding:     EncodingCP437,
			Cut:          CutFeed,
			FeedLines:    8,
			FeedCutLines: 6,
		},
		Catalog: Catalog{
			Path: "products.json",
		},
	}
}

// Load reads the TOML file at path on top of Defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate rejects values the bridge cannot act on.
func (c *Config) Validate() error {
	switch c.Printer.Encoding {
	case EncodingCP437, EncodingUTF8:
	default:
		return fmt.Errorf("unknown printer encoding: %q", c.Printer.Encoding)
	}

	switch c.Printer.Cut {
	case CutNone, CutFeed, CutPartial, CutFull:
	default:
		return fmt.Errorf("unknown printer cut mode: %q", c.Printer.Cut)
	}

	if c.Scanner.BaudRate <= 0 {
		return fmt.Errorf("invalid scanner baud rate: %d", c.Scanner.BaudRate)
	}

	if c.Printer.BaudRate <= 0 {
		return fmt.Errorf("invalid printer baud rate: %d", c.Printer.BaudRate)
	}

	if c.Printer.FeedLines < 0 {
		return fmt.Errorf("invalid feed lines: %d", c.Printer.FeedLines)
	}

	return nil
}
