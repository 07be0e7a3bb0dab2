package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Settings holds the framing parameters for one serial link. Both ends of
// the link must agree on them; the bridge always uses 8 data bits, no
// parity, one stop bit.
type Settings struct {
	BaudRate    int
	ReadTimeout time.Duration

	// DTRDSRHandshake asserts DTR and deasserts RTS after open. The
	// receipt printer requires this; the scanner needs no handshake and
	// the lines are left at their driver defaults.
	DTRDSRHandshake bool
}

// Open opens path with the given settings. The returned port performs
// blocking reads bounded by ReadTimeout; a timed-out read returns zero
// bytes and a nil error.
func Open(path string, s Settings) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if s.ReadTimeout > 0 {
		if err := port.SetReadTimeout(s.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
		}
	}

	if s.DTRDSRHandshake {
		if err := port.SetDTR(true); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set DTR on %s: %w", path, err)
		}
		if err := port.SetRTS(false); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set RTS on %s: %w", path, err)
		}
	}

	return port, nil
}
