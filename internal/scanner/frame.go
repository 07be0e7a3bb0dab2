package scanner

import "strings"

// splitFrames splits buf on any mix of CR and LF terminators. It returns
// the completed frames in order and the trailing incomplete fragment, which
// the caller keeps for the next read. Scanners terminate each burst with
// \r, \n or \r\n depending on model; all three produce the same frames
// (the \r\n case yields one empty frame, which digit extraction discards).
func splitFrames(buf string) (frames []string, rest string) {
	for {
		idx := strings.IndexAny(buf, "\r\n")
		if idx < 0 {
			return frames, buf
		}
		frames = append(frames, buf[:idx])
		buf = buf[idx+1:]
	}
}

// Digits strips every non-digit byte from a frame. Scanners padded with
// symbology prefixes or stray control bytes still yield the bare code.
func Digits(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteByte(byte(ch))
		}
	}
	return b.String()
}
