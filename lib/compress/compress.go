// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress is the decompression guard for metadata payloads.
//
// A metadata payload may carry an optional compression envelope,
// signaled by an enc=<algorithm> marker alongside the encoded payload
// (a data-URI media-type parameter, or a Content-Type parameter on a
// fetched response). The algorithm must be one of a fixed whitelist;
// unknown markers pass through untouched for forward compatibility.
//
// Decompression is bounded by MaxDecompressedSize and the bound is
// enforced during streaming: output is written through a guard that
// fails the instant cumulative output would exceed the ceiling,
// regardless of any size the input declares. A zip bomb therefore
// fails fast with ErrSizeCeiling instead of expanding in memory until
// a final size check could run.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// MaxDecompressedSize is the hard ceiling on decompressed output:
// 100 KB. Agent-metadata documents are small JSON objects; the limit is
// generous for legitimate content and tight enough that a bomb is
// rejected before it costs meaningful memory.
const MaxDecompressedSize = 100 * 1024

// ErrSizeCeiling is returned when decompressed output would exceed
// MaxDecompressedSize. Maps to diagnostic EA004.
var ErrSizeCeiling = errors.New("decompressed output exceeds size ceiling")

// Algorithm names a whitelisted compression envelope algorithm. Values
// are the exact marker strings that appear in enc= parameters.
type Algorithm string

const (
	Zstd   Algorithm = "zstd"
	Gzip   Algorithm = "gzip"
	Brotli Algorithm = "br"
	LZ4    Algorithm = "lz4"
)

// ParseAlgorithm maps an enc= marker value to a whitelisted algorithm.
// Unknown markers report ok=false; the caller treats the payload as
// uncompressed pass-through.
func ParseAlgorithm(name string) (Algorithm, bool) {
	switch Algorithm(name) {
	case Zstd, Gzip, Brotli, LZ4:
		return Algorithm(name), true
	default:
		return "", false
	}
}

// Envelope describes a detected compression envelope on a payload.
type Envelope struct {
	// Algorithm is the whitelisted algorithm from the enc= marker.
	Algorithm Algorithm

	// DeclaredSize is the uncompressed size the input claims, or -1
	// when the input declares none. Advisory only: the streaming
	// guard is the enforcement mechanism, never this value.
	DeclaredSize int64
}

// boundedWriter accumulates decompressed output and fails the write
// that would push cumulative output past the ceiling. The failing
// write is not applied, so the buffer never holds more than the
// ceiling.
type boundedWriter struct {
	buf     bytes.Buffer
	written int64
	limit   int64
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.written+int64(len(p)) > w.limit {
		return 0, ErrSizeCeiling
	}
	w.written += int64(len(p))
	return w.buf.Write(p)
}

// Decompress reverses a whitelisted compression envelope, streaming
// output through the size guard. A ceiling violation returns
// ErrSizeCeiling (check with errors.Is); any other failure means the
// declared envelope did not decompress.
func Decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	reader, err := newReader(bytes.NewReader(data), algorithm)
	if err != nil {
		return nil, fmt.Errorf("opening %s stream: %w", algorithm, err)
	}
	defer reader.Close()

	guard := &boundedWriter{limit: MaxDecompressedSize}
	if _, err := io.Copy(guard, reader); err != nil {
		if errors.Is(err, ErrSizeCeiling) {
			return nil, ErrSizeCeiling
		}
		return nil, fmt.Errorf("decompressing %s stream: %w", algorithm, err)
	}
	return guard.buf.Bytes(), nil
}

// newReader opens a streaming decoder for the algorithm. The zstd
// decoder additionally gets a window-memory cap (32 MiB, far above any
// legitimate encoder's window for a 100 KB document) so a hostile
// frame header cannot coerce large allocations before the output guard
// sees a single byte.
func newReader(r io.Reader, algorithm Algorithm) (io.ReadCloser, error) {
	switch algorithm {
	case Zstd:
		dec, err := zstd.NewReader(r,
			zstd.WithDecoderMaxMemory(32<<20),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case Gzip:
		return gzip.NewReader(r)
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("algorithm %q is not whitelisted", algorithm)
	}
}
