// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		return enc
	}}

	// decoderPools holds one *sync.Pool per decoded size limit.
	decoderPools sync.Map
)

func getEncoder() *zstd.Encoder  { return encoderPool.Get().(*zstd.Encoder) }
func putEncoder(e *zstd.Encoder) { encoderPool.Put(e) }

// getDecoder returns a decoder that refuses to produce more than limit bytes.
func getDecoder(limit int) *zstd.Decoder { return decoderPoolFor(limit).Get().(*zstd.Decoder) }

func putDecoder(limit int, d *zstd.Decoder) { decoderPoolFor(limit).Put(d) }

func decoderPoolFor(limit int) *sync.Pool {
	if p, ok := decoderPools.Load(limit); ok {
		return p.(*sync.Pool)
	}
	p, _ := decoderPools.LoadOrStore(limit, &sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(limit)),
		)
		return dec
	}})
	return p.(*sync.Pool)
}
