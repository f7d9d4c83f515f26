// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"bufio"
	"io"
)

// RawCodec passes bytes through unchanged. Each decoded message holds whatever
// the last socket read delivered, so message boundaries are not preserved.
type RawCodec struct{}

// Raw returns a byte pass-through codec.
func Raw() RawCodec { return RawCodec{} }

// Decode blocks until at least one byte is available and returns every buffered byte.
func (RawCodec) Decode(r *bufio.Reader) ([]byte, error) {
	if _, err := r.Peek(1); err != nil {
		return nil, err
	}
	buf := make([]byte, r.Buffered())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Encode writes msg as-is.
func (RawCodec) Encode(w *bufio.Writer, msg []byte) error {
	_, err := w.Write(msg)
	return err
}
