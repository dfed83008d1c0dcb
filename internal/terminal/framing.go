package terminal

import (
	"bytes"
	"strconv"
)

// frameKind discriminates scanner results.
type frameKind int

const (
	frameOutput frameKind = iota
	frameComplete
)

// frame is one scanner result: either raw output bytes or a completed
// sentinel carrying the previous command's exit code.
type frame struct {
	kind frameKind
	data []byte
	code int
}

// maxCodeLen bounds the digits between the sentinel markers. Anything longer
// is not an exit code and the opening marker is treated as literal output.
const maxCodeLen = 20

// framer scans the raw PTY byte stream for sentinel lines. It tolerates a
// sentinel split across any chunk boundary by holding back a tail that could
// still complete one.
type framer struct {
	held    []byte
	skipEOL bool
}

var sentinel = []byte(Sentinel)

// feed consumes one PTY chunk and returns the frames it completes.
func (f *framer) feed(p []byte) []frame {
	data := p
	if len(f.held) > 0 {
		data = append(f.held, p...)
		f.held = nil
	}

	var frames []frame
	emit := func(out []byte) {
		if len(out) > 0 {
			frames = append(frames, frame{kind: frameOutput, data: out})
		}
	}

	for len(data) > 0 {
		if f.skipEOL {
			// Swallow the line ending that terminates the sentinel line.
			if data[0] == '\r' {
				data = data[1:]
				continue
			}
			if data[0] == '\n' {
				data = data[1:]
			}
			f.skipEOL = false
			continue
		}

		i := bytes.Index(data, sentinel)
		if i < 0 {
			// No opening marker; hold back a tail that could begin one.
			keep := partialSentinelLen(data)
			emit(data[:len(data)-keep])
			f.held = append(f.held, data[len(data)-keep:]...)
			return frames
		}

		emit(data[:i])
		rest := data[i+len(sentinel):]

		j := bytes.Index(rest, sentinel)
		if j < 0 {
			if awaitingClose(rest) {
				// The closing marker may still arrive; hold from the
				// opening marker onward.
				f.held = append(f.held, data[i:]...)
				return frames
			}
			// Not a sentinel after all; the marker bytes are literal output.
			emit(data[i : i+len(sentinel)])
			data = rest
			continue
		}

		code, err := strconv.Atoi(string(rest[:j]))
		if err != nil || j > maxCodeLen {
			emit(data[i : i+len(sentinel)])
			data = rest
			continue
		}

		frames = append(frames, frame{kind: frameComplete, code: code})
		f.skipEOL = true
		data = rest[j+len(sentinel):]
	}
	return frames
}

// flush returns any held bytes; called at stream EOF.
func (f *framer) flush() []byte {
	out := f.held
	f.held = nil
	return out
}

// partialSentinelLen returns the length of the longest suffix of data that is
// a proper prefix of the sentinel.
func partialSentinelLen(data []byte) int {
	max := len(sentinel) - 1
	if len(data) < max {
		max = len(data)
	}
	for k := max; k > 0; k-- {
		if bytes.Equal(data[len(data)-k:], sentinel[:k]) {
			return k
		}
	}
	return 0
}

// awaitingClose reports whether rest (the bytes after an opening marker)
// could still grow into "<code><sentinel>".
func awaitingClose(rest []byte) bool {
	i := 0
	if i < len(rest) && rest[i] == '-' {
		i++
	}
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > maxCodeLen {
		return false
	}
	tail := rest[i:]
	if len(tail) >= len(sentinel) {
		return false
	}
	return bytes.HasPrefix(sentinel, tail)
}
