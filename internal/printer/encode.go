package printer

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/tillworks/pos-bridge/internal/config"
)

// ESC/POS command bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
)

// Encoder turns receipt text into the printer's wire format. Deployed
// printers differ: the classic variant wants CP437 with an ESC d feed
// trailer, newer ones take UTF-8 with a GS V cut. Both are expressed as
// configuration rather than baked in.
type Encoder struct {
	cfg config.Printer
}

// NewEncoder creates an Encoder for the configured printer variant.
func NewEncoder(cfg config.Printer) *Encoder {
	return &Encoder{cfg: cfg}
}

// Encode serializes text for the wire: line endings normalized to CRLF,
// configured blank feed lines appended, bytes encoded per the configured
// code page, and the optional cut or feed command added last.
func (e *Encoder) Encode(text string) ([]byte, error) {
	text = normalizeCRLF(text)
	// Terminate the last printed line, then feed the configured number of
	// blank lines past it.
	if text != "" && !strings.HasSuffix(text, "\r\n") {
		text += "\r\n"
	}
	text += strings.Repeat("\r\n", e.cfg.FeedLines)

	payload, err := e.encodeText(text)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(payload)

	switch e.cfg.Cut {
	case config.CutFeed:
		// ESC d n: print and feed n lines. Clears the tear bar on
		// printers without a cutter.
		buf.Write([]byte{ESC, 'd', byte(e.cfg.FeedCutLines)})
		buf.WriteString("\r\n\r\n")
	case config.CutPartial:
		buf.Write([]byte{GS, 'V', 1})
	case config.CutFull:
		buf.Write([]byte{GS, 'V', 0})
	}

	return buf.Bytes(), nil
}

func (e *Encoder) encodeText(text string) ([]byte, error) {
	switch e.cfg.Encoding {
	case config.EncodingUTF8:
		return []byte(text), nil
	case config.EncodingCP437:
		enc := encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder())
		out, _, err := transform.Bytes(enc, []byte(text))
		if err != nil {
			return nil, fmt.Errorf("failed to encode text as cp437: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown printer encoding: %q", e.cfg.Encoding)
	}
}

// normalizeCRLF rewrites any mix of \r\n, \r and \n line endings to the
// CRLF pairs the printer expects.
func normalizeCRLF(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\n", "\r\n")
}
