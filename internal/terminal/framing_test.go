package terminal

import (
	"bytes"
	"testing"
)

func collect(frames []frame) (out []byte, codes []int) {
	for _, fr := range frames {
		switch fr.kind {
		case frameOutput:
			out = append(out, fr.data...)
		case frameComplete:
			codes = append(codes, fr.code)
		}
	}
	return out, codes
}

func TestFramerSimple(t *testing.T) {
	f := &framer{}
	out, codes := collect(f.feed([]byte("hi\n\x1eWARP\x1e0\x1eWARP\x1e\n")))

	if string(out) != "hi\n" {
		t.Errorf("output = %q", out)
	}
	if len(codes) != 1 || codes[0] != 0 {
		t.Errorf("codes = %v", codes)
	}
}

func TestFramerSplitMidSentinel(t *testing.T) {
	// The sentinel split across two reads at a mid-sentinel byte must still
	// fire exactly once.
	full := []byte("hi\n\x1eWARP\x1e0\x1eWARP\x1e\n")
	for split := 1; split < len(full); split++ {
		f := &framer{}
		frames := f.feed(full[:split])
		frames = append(frames, f.feed(full[split:])...)
		out, codes := collect(frames)

		if string(out) != "hi\n" {
			t.Errorf("split %d: output = %q", split, out)
		}
		if len(codes) != 1 || codes[0] != 0 {
			t.Errorf("split %d: codes = %v", split, codes)
		}
	}
}

func TestFramerByteAtATime(t *testing.T) {
	f := &framer{}
	var frames []frame
	for _, b := range []byte("abc\x1eWARP\x1e7\x1eWARP\x1e\ndef") {
		frames = append(frames, f.feed([]byte{b})...)
	}
	out, codes := collect(frames)

	if string(out) != "abcdef" {
		t.Errorf("output = %q", out)
	}
	if len(codes) != 1 || codes[0] != 7 {
		t.Errorf("codes = %v", codes)
	}
}

func TestFramerMultipleSentinels(t *testing.T) {
	f := &framer{}
	out, codes := collect(f.feed([]byte(
		"one\n\x1eWARP\x1e0\x1eWARP\x1e\ntwo\n\x1eWARP\x1e1\x1eWARP\x1e\n")))

	if string(out) != "one\ntwo\n" {
		t.Errorf("output = %q", out)
	}
	if len(codes) != 2 || codes[0] != 0 || codes[1] != 1 {
		t.Errorf("codes = %v", codes)
	}
}

func TestFramerCRLFAfterSentinel(t *testing.T) {
	f := &framer{}
	out, codes := collect(f.feed([]byte("x\r\n\x1eWARP\x1e0\x1eWARP\x1e\r\nnext")))

	if string(out) != "x\r\nnext" {
		t.Errorf("output = %q", out)
	}
	if len(codes) != 1 {
		t.Errorf("codes = %v", codes)
	}
}

func TestFramerMultiDigitAndNegativeCodes(t *testing.T) {
	f := &framer{}
	_, codes := collect(f.feed([]byte("\x1eWARP\x1e130\x1eWARP\x1e\n\x1eWARP\x1e-1\x1eWARP\x1e\n")))
	if len(codes) != 2 || codes[0] != 130 || codes[1] != -1 {
		t.Errorf("codes = %v", codes)
	}
}

func TestFramerLiteralMarkerWithoutCode(t *testing.T) {
	// A marker followed by non-code bytes is literal output, not a sentinel.
	f := &framer{}
	in := []byte("\x1eWARP\x1enot-a-code rest")
	frames := f.feed(in)
	frames = append(frames, frame{kind: frameOutput, data: f.flush()})
	out, codes := collect(frames)

	if len(codes) != 0 {
		t.Errorf("codes = %v, want none", codes)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("output = %q, want %q", out, in)
	}
}

func TestFramerHoldsPartialMarkerAcrossFlush(t *testing.T) {
	f := &framer{}
	frames := f.feed([]byte("data\x1eWA"))
	out, _ := collect(frames)
	if string(out) != "data" {
		t.Errorf("output = %q, partial marker must be held back", out)
	}
	if string(f.flush()) != "\x1eWA" {
		t.Error("flush must return the held partial marker")
	}
}
