// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
)

func encodeAll[O any](t *testing.T, enc Encoder[O], msgs ...O) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	for _, m := range msgs {
		if err := enc.Encode(w, m); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	return buf.Bytes()
}

func TestLines(t *testing.T) {
	t.Parallel()

	t.Run("decodes lf and crlf terminated lines", func(t *testing.T) {
		t.Parallel()

		r := bufio.NewReader(strings.NewReader("hello\r\nworld\nlast"))
		c := Lines(0)

		for _, want := range []string{"hello", "world", "last"} {
			got, err := c.Decode(r)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != want {
				t.Errorf("Decode() = %q, want %q", got, want)
			}
		}
		if _, err := c.Decode(r); !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF after last line, got %v", err)
		}
	})

	t.Run("rejects lines over the limit", func(t *testing.T) {
		t.Parallel()

		r := bufio.NewReaderSize(strings.NewReader(strings.Repeat("x", 100)+"\n"), 16)
		_, err := Lines(10).Decode(r)
		if !errors.Is(err, ErrLineTooLong) {
			t.Errorf("expected ErrLineTooLong, got %v", err)
		}
	})

	t.Run("line exactly at the limit is accepted", func(t *testing.T) {
		t.Parallel()

		r := bufio.NewReader(strings.NewReader("0123456789\r\n"))
		got, err := Lines(10).Decode(r)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got != "0123456789" {
			t.Errorf("Decode() = %q", got)
		}
	})

	t.Run("encode appends newline", func(t *testing.T) {
		t.Parallel()

		got := encodeAll[string](t, Lines(0), "a", "b")
		if string(got) != "a\nb\n" {
			t.Errorf("encoded %q", got)
		}
	})

	t.Run("encode rejects embedded newline", func(t *testing.T) {
		t.Parallel()

		w := bufio.NewWriter(io.Discard)
		if err := Lines(0).Encode(w, "a\nb"); err == nil {
			t.Error("expected error for embedded newline")
		}
	})
}

func TestRaw(t *testing.T) {
	t.Parallel()

	r := bufio.NewReader(strings.NewReader("abc"))
	got, err := Raw().Decode(r)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("Decode() = %q, want %q", got, "abc")
	}
	if _, err := Raw().Decode(r); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}

	if enc := encodeAll[[]byte](t, Raw(), []byte("x"), []byte("yz")); string(enc) != "xyz" {
		t.Errorf("encoded %q", enc)
	}
}

func TestFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   []byte
		threshold int
		headLen   int
	}{
		{"empty short", nil, -1, 2},
		{"small uncompressed", []byte("ping"), -1, 2},
		{"largest short header", bytes.Repeat([]byte{7}, shortHeaderMaxLen), -1, 2},
		{"long header uncompressed", bytes.Repeat([]byte{7}, shortHeaderMaxLen+1), -1, 4},
		{"compressed", bytes.Repeat([]byte("abcd"), 2048), 16, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Frames(WithCompressThreshold(tt.threshold))
			wire := encodeAll[Frame](t, c, Frame{API: 42, Payload: tt.payload})

			compressed := binary16(wire)&flagCompressed != 0
			if compressed != (tt.threshold >= 0) {
				t.Errorf("compressed flag = %v", compressed)
			}
			if long := binary16(wire)&flagLong != 0; long != (tt.headLen == 4) {
				t.Errorf("long header flag = %v, want header of %d bytes", long, tt.headLen)
			}
			if !compressed {
				if want := tt.headLen + 2 + len(tt.payload); len(wire) != want {
					t.Errorf("wire length = %d, want %d", len(wire), want)
				}
			}

			got, err := c.Decode(bufio.NewReader(bytes.NewReader(wire)))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.API != 42 {
				t.Errorf("API = %d, want 42", got.API)
			}
			if !bytes.Equal(got.Payload, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(got.Payload), len(tt.payload))
			}
		})
	}
}

func TestFrames_HeaderLengthBits(t *testing.T) {
	t.Parallel()

	if shortHeaderMaxLen != 8191 {
		t.Errorf("short header max length = %d, want 13 bits (8191)", shortHeaderMaxLen)
	}
	if longHeaderMaxLen != 1<<29-1 {
		t.Errorf("long header max length = %d, want 29 bits", longHeaderMaxLen)
	}
	if flagLong != 1<<13 || shortHeaderMaxLen&flagLong != 0 {
		t.Errorf("long flag %#x overlaps the short length bits", flagLong)
	}
}

func TestFrames_Limits(t *testing.T) {
	t.Parallel()

	t.Run("encode rejects oversized payload", func(t *testing.T) {
		t.Parallel()

		w := bufio.NewWriter(io.Discard)
		err := Frames(WithMaxFrameSize(8)).Encode(w, Frame{Payload: make([]byte, 9)})
		var tooLarge *FrameTooLargeError
		if !errors.As(err, &tooLarge) || !errors.Is(err, ErrFrameTooLarge) {
			t.Fatalf("expected FrameTooLargeError, got %v", err)
		}
		if tooLarge.Limit != 8 {
			t.Errorf("Limit = %d, want 8", tooLarge.Limit)
		}
	})

	t.Run("decode rejects oversized header", func(t *testing.T) {
		t.Parallel()

		wire := encodeAll[Frame](t, Frames(WithCompressThreshold(-1)), Frame{Payload: make([]byte, 100)})
		_, err := Frames(WithMaxFrameSize(10)).Decode(bufio.NewReader(bytes.NewReader(wire)))
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("expected ErrFrameTooLarge, got %v", err)
		}
	})

	t.Run("decode rejects compressed frame expanding past the limit", func(t *testing.T) {
		t.Parallel()

		wire := encodeAll[Frame](t, Frames(WithMaxFrameSize(8<<20)), Frame{API: 3, Payload: make([]byte, 8<<20)})
		if len(wire) > 64<<10 {
			t.Fatalf("compressed wire is %d bytes, expected it to fit under the decode limit", len(wire))
		}

		_, err := Frames(WithMaxFrameSize(64<<10)).Decode(bufio.NewReader(bytes.NewReader(wire)))
		var tooLarge *FrameTooLargeError
		if !errors.As(err, &tooLarge) || !errors.Is(err, ErrFrameTooLarge) {
			t.Fatalf("expected FrameTooLargeError, got %v", err)
		}
		if tooLarge.Limit != 64<<10 {
			t.Errorf("Limit = %d, want %d", tooLarge.Limit, 64<<10)
		}
	})

	t.Run("compressed frame at the limit is accepted", func(t *testing.T) {
		t.Parallel()

		payload := bytes.Repeat([]byte("tcpcore "), 8<<10)
		codec := Frames(WithMaxFrameSize(len(payload)), WithCompressThreshold(1))
		got, err := codec.Decode(bufio.NewReader(bytes.NewReader(encodeAll[Frame](t, codec, Frame{Payload: payload}))))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(got.Payload, payload) {
			t.Error("payload changed in transit")
		}
	})

	t.Run("decode rejects reserved bit", func(t *testing.T) {
		t.Parallel()

		wire := []byte{0x40, 0x00, 0x00, 0x01}
		_, err := Frames().Decode(bufio.NewReader(bytes.NewReader(wire)))
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("expected ErrMalformedFrame, got %v", err)
		}
	})

	t.Run("truncated frame is unexpected EOF", func(t *testing.T) {
		t.Parallel()

		wire := encodeAll[Frame](t, Frames(WithCompressThreshold(-1)), Frame{API: 1, Payload: []byte("hello")})
		_, err := Frames().Decode(bufio.NewReader(bytes.NewReader(wire[:len(wire)-2])))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
		}
	})

	t.Run("clean EOF between frames", func(t *testing.T) {
		t.Parallel()

		_, err := Frames().Decode(bufio.NewReader(bytes.NewReader(nil)))
		if !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF, got %v", err)
		}
	})
}

func binary16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// Not parallel: it measures process-wide allocation.
func TestFrames_DecompressionAllocationIsBounded(t *testing.T) {
	const (
		limit   = 64 << 10
		expands = 32 << 20
	)
	wire := encodeAll[Frame](t, Frames(WithMaxFrameSize(expands)), Frame{Payload: make([]byte, expands)})
	decoder := Frames(WithMaxFrameSize(limit))

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := decoder.Decode(bufio.NewReader(bytes.NewReader(wire)))
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated >= expands/2 {
		t.Errorf("decoding allocated %d bytes, want well under the %d byte expansion", allocated, expands)
	}
}
