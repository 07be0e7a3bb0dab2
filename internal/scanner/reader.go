// Package scanner reads framed barcode bursts from the scanner serial port
// and publishes each decoded digit code to the broadcaster.
package scanner

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/tillworks/pos-bridge/internal/broadcast"
	"github.com/tillworks/pos-bridge/internal/config"
	"github.com/tillworks/pos-bridge/internal/serialport"
)

// readChunkSize is the size of each serial read. One barcode burst is a few
// dozen bytes, so a single chunk usually carries a whole frame.
const readChunkSize = 64

// openFunc is swapped out in tests.
type openFunc func(path string, s serialport.Settings) (io.ReadCloser, error)

// Reader owns the scanner serial link. It reconnects forever: the device
// may be absent at boot, unplugged at runtime, or enumerate on a different
// path after replug.
type Reader struct {
	cfg      config.Scanner
	resolver serialport.Resolver
	bus      *broadcast.Broadcaster
	open     openFunc
}

// NewReader creates a Reader publishing to bus.
func NewReader(cfg config.Scanner, bus *broadcast.Broadcaster) *Reader {
	return &Reader{
		cfg: cfg,
		resolver: serialport.Resolver{
			Match:    cfg.ByIDMatch,
			Fallback: cfg.Fallback,
		},
		bus: bus,
		open: func(path string, s serialport.Settings) (io.ReadCloser, error) {
			return serialport.Open(path, s)
		},
	}
}

// Run drives the connect/stream/reconnect loop until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		// Resolve fresh on every attempt; the path can change after a
		// replug.
		path := r.resolver.Resolve()

		port, err := r.open(path, serialport.Settings{
			BaudRate:    r.cfg.BaudRate,
			ReadTimeout: r.cfg.ReadTimeout(),
		})
		if err != nil {
			log.Error().Err(err).Str("port", path).Msg("scanner open failed")
			if !sleepCtx(ctx, r.cfg.Backoff()) {
				return
			}
			continue
		}

		log.Info().Str("port", path).Int("baud", r.cfg.BaudRate).Msg("scanner connected")

		err = r.stream(ctx, port)
		port.Close()

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			log.Error().Err(err).Str("port", path).Msg("scanner read failed")
		}

		if !sleepCtx(ctx, r.cfg.Backoff()) {
			return
		}
	}
}

// stream reads until a transport error or cancellation. The accumulation
// buffer is discarded on error; a code that was mid-frame when the device
// dropped is lost, which is acceptable for a physical scan (the operator
// scans again).
func (r *Reader) stream(ctx context.Context, port io.Reader) error {
	chunk := make([]byte, readChunkSize)
	var buf string

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := port.Read(chunk)
		if err != nil {
			return err
		}
		if n == 0 {
			// Read timeout, nothing scanned. Keep polling.
			continue
		}

		buf += decodePermissive(chunk[:n])

		var frames []string
		frames, buf = splitFrames(buf)
		for _, frame := range frames {
			code := Digits(frame)
			if code == "" {
				continue
			}
			log.Info().Str("code", code).Msg("scan")
			r.bus.Publish(code)
		}
	}
}

// decodePermissive converts raw scanner bytes to a string, dropping invalid
// UTF-8 sequences instead of failing. Garbled bursts must never kill the
// read loop.
func decodePermissive(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	for len(b) > 0 {
		ch, size := utf8.DecodeRune(b)
		if ch != utf8.RuneError || size > 1 {
			sb.WriteRune(ch)
		}
		b = b[size:]
	}
	return sb.String()
}

// sleepCtx sleeps for d or until ctx is cancelled; it reports whether the
// full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
