// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Frame header layout, big endian.
//
// Short header (2 bytes):
//
//	bit15: compressed
//	bit14: reserved, must be 0
//	bit13: long=0
//	bit12..0: body length (0..8191)
//
// Long header (4 bytes):
//
//	bit31: compressed
//	bit30: reserved, must be 0
//	bit29: long=1
//	bit28..0: body length (0..2^29-1)
//
// The header is followed by a 2-byte API identifier and the body.
const (
	shortHeaderMaxLen = (1 << 13) - 1
	longHeaderMaxLen  = (1 << 29) - 1

	flagCompressed = 1 << 15
	flagReserved   = 1 << 14
	flagLong       = 1 << 13

	// DefaultMaxFrameSize bounds the decoded payload of a frame when no limit is given.
	DefaultMaxFrameSize = 4 << 20
	// DefaultCompressThreshold is the payload size from which frames are compressed.
	DefaultCompressThreshold = 1024
)

var (
	// ErrFrameTooLarge is the sentinel error wrapped by FrameTooLargeError.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrMalformedFrame is returned when a frame header carries reserved bits.
	ErrMalformedFrame = errors.New("malformed frame")
)

type (
	// Frame is one length-prefixed message tagged with an API identifier.
	Frame struct {
		API     uint16
		Payload []byte
	}

	// FramesCodec reads and writes length-prefixed frames. Payloads at or above
	// the compression threshold are zstd compressed on the wire.
	FramesCodec struct {
		maxSize           int
		compressThreshold int
	}

	// FrameOption configures a FramesCodec.
	FrameOption func(*FramesCodec)

	// FrameTooLargeError is returned when a frame exceeds the configured limit.
	// For a compressed frame rejected while decompressing, Size is Limit+1.
	FrameTooLargeError struct {
		Size  int
		Limit int
	}
)

// WithMaxFrameSize bounds the payload size accepted or produced.
func WithMaxFrameSize(n int) FrameOption {
	return func(c *FramesCodec) {
		if n > 0 {
			c.maxSize = min(n, longHeaderMaxLen)
		}
	}
}

// WithCompressThreshold sets the payload size from which frames are compressed.
// A negative value disables compression.
func WithCompressThreshold(n int) FrameOption {
	return func(c *FramesCodec) {
		c.compressThreshold = n
	}
}

// Frames returns a frame codec.
func Frames(opts ...FrameOption) FramesCodec {
	c := FramesCodec{
		maxSize:           DefaultMaxFrameSize,
		compressThreshold: DefaultCompressThreshold,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Decode reads one frame, decompressing its payload when flagged.
func (c FramesCodec) Decode(r *bufio.Reader) (Frame, error) {
	head, err := r.Peek(2)
	if err != nil {
		return Frame{}, err
	}
	v16 := binary.BigEndian.Uint16(head)
	if v16&flagReserved != 0 {
		return Frame{}, fmt.Errorf("%w: reserved header bit set", ErrMalformedFrame)
	}

	var (
		length     int
		compressed = v16&flagCompressed != 0
		headLen    = 2
	)
	if v16&flagLong == 0 {
		length = int(v16 & shortHeaderMaxLen)
	} else {
		headLen = 4
		head, err = r.Peek(4)
		if err != nil {
			return Frame{}, unexpected(err)
		}
		length = int(binary.BigEndian.Uint32(head) & longHeaderMaxLen)
	}
	if length > c.maxSize {
		return Frame{}, &FrameTooLargeError{Size: length, Limit: c.maxSize}
	}
	if _, err := r.Discard(headLen); err != nil {
		return Frame{}, unexpected(err)
	}

	var api [2]byte
	if _, err := io.ReadFull(r, api[:]); err != nil {
		return Frame{}, unexpected(err)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, unexpected(err)
	}

	if compressed {
		dec := getDecoder(c.maxSize)
		body, err = dec.DecodeAll(body, nil)
		putDecoder(c.maxSize, dec)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return Frame{}, &FrameTooLargeError{Size: c.maxSize + 1, Limit: c.maxSize}
		}
		if err != nil {
			return Frame{}, fmt.Errorf("decompress frame: %w", err)
		}
		if len(body) > c.maxSize {
			return Frame{}, &FrameTooLargeError{Size: len(body), Limit: c.maxSize}
		}
	}

	return Frame{API: binary.BigEndian.Uint16(api[:]), Payload: body}, nil
}

// Encode writes f with a short or long header as its body length requires.
func (c FramesCodec) Encode(w *bufio.Writer, f Frame) error {
	if len(f.Payload) > c.maxSize {
		return &FrameTooLargeError{Size: len(f.Payload), Limit: c.maxSize}
	}

	body := f.Payload
	compressed := c.compressThreshold >= 0 && len(body) >= c.compressThreshold
	if compressed {
		enc := getEncoder()
		body = enc.EncodeAll(body, nil)
		putEncoder(enc)
	}

	hdr, err := appendHeader(nil, len(body), compressed)
	if err != nil {
		return err
	}
	hdr = binary.BigEndian.AppendUint16(hdr, f.API)
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func appendHeader(dst []byte, length int, compressed bool) ([]byte, error) {
	if length < 0 || length > longHeaderMaxLen {
		return nil, &FrameTooLargeError{Size: length, Limit: longHeaderMaxLen}
	}
	if length <= shortHeaderMaxLen {
		v := uint16(length)
		if compressed {
			v |= flagCompressed
		}
		return binary.BigEndian.AppendUint16(dst, v), nil
	}
	v := uint32(length) | uint32(flagLong)<<16
	if compressed {
		v |= uint32(flagCompressed) << 16
	}
	return binary.BigEndian.AppendUint32(dst, v), nil
}

// unexpected converts an EOF in the middle of a frame into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Error implements the error interface for FrameTooLargeError.
func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// Unwrap returns ErrFrameTooLarge for errors.Is() compatibility.
func (e *FrameTooLargeError) Unwrap() error { return ErrFrameTooLarge }
