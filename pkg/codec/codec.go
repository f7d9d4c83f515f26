// SPDX-License-Identifier: MPL-2.0

// Package codec converts between the byte stream of a connection and the
// messages a connection handler works with.
//
// A codec is installed into a connection pipeline by a configurator. Codecs in
// this package are stateless and safe to share between connections.
package codec

import "bufio"

type (
	// Decoder reads one inbound message from a buffered byte stream.
	// It returns io.EOF when the stream ends cleanly between messages.
	Decoder[I any] interface {
		Decode(r *bufio.Reader) (I, error)
	}

	// Encoder writes one outbound message. The caller flushes w.
	Encoder[O any] interface {
		Encode(w *bufio.Writer, msg O) error
	}

	// Codec pairs a Decoder for inbound messages with an Encoder for outbound ones.
	Codec[I, O any] interface {
		Decoder[I]
		Encoder[O]
	}
)
