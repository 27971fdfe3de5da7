// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"errors"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressWith produces a valid stream for each whitelisted algorithm.
func compressWith(t *testing.T, algorithm Algorithm, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer

	switch algorithm {
	case Zstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zstd write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("zstd close: %v", err)
		}
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
	case Brotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("brotli write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("brotli close: %v", err)
		}
	case LZ4:
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("lz4 write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("lz4 close: %v", err)
		}
	default:
		t.Fatalf("no writer for %q", algorithm)
	}
	return buf.Bytes()
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"zstd", "gzip", "br", "lz4"} {
		t.Run(name, func(t *testing.T) {
			algorithm, ok := ParseAlgorithm(name)
			if !ok {
				t.Fatalf("ParseAlgorithm(%q) rejected a whitelisted name", name)
			}
			if string(algorithm) != name {
				t.Errorf("ParseAlgorithm(%q) = %q", name, algorithm)
			}
		})
	}

	for _, name := range []string{"", "deflate", "snappy", "ZSTD", "gz"} {
		if _, ok := ParseAlgorithm(name); ok {
			t.Errorf("ParseAlgorithm(%q) accepted a non-whitelisted name", name)
		}
	}
}

func TestDecompressRoundTrip(t *testing.T) {
	original := []byte(`{"name":"agent","description":"a perfectly ordinary metadata document"}`)

	for _, algorithm := range []Algorithm{Zstd, Gzip, Brotli, LZ4} {
		t.Run(string(algorithm), func(t *testing.T) {
			compressed := compressWith(t, algorithm, original)
			got, err := Decompress(compressed, algorithm)
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(got, original) {
				t.Errorf("round trip mismatch: got %q", got)
			}
		})
	}
}

func TestDecompressCeiling(t *testing.T) {
	// A bomb: highly compressible input several times the ceiling.
	// The guard must fail with ErrSizeCeiling, never produce the
	// output or hang.
	bomb := bytes.Repeat([]byte{0}, 8*MaxDecompressedSize)

	for _, algorithm := range []Algorithm{Zstd, Gzip, Brotli, LZ4} {
		t.Run(string(algorithm), func(t *testing.T) {
			compressed := compressWith(t, algorithm, bomb)
			if len(compressed) >= len(bomb) {
				t.Fatalf("fixture did not compress (%d bytes)", len(compressed))
			}
			_, err := Decompress(compressed, algorithm)
			if !errors.Is(err, ErrSizeCeiling) {
				t.Fatalf("Decompress error = %v, want ErrSizeCeiling", err)
			}
		})
	}
}

func TestDecompressExactCeiling(t *testing.T) {
	// Output exactly at the ceiling is allowed; one byte past is not.
	atLimit := bytes.Repeat([]byte{'x'}, MaxDecompressedSize)
	got, err := Decompress(compressWith(t, Gzip, atLimit), Gzip)
	if err != nil {
		t.Fatalf("output at the ceiling should succeed: %v", err)
	}
	if len(got) != MaxDecompressedSize {
		t.Fatalf("got %d bytes, want %d", len(got), MaxDecompressedSize)
	}

	pastLimit := bytes.Repeat([]byte{'x'}, MaxDecompressedSize+1)
	if _, err := Decompress(compressWith(t, Gzip, pastLimit), Gzip); !errors.Is(err, ErrSizeCeiling) {
		t.Fatalf("one byte past the ceiling: error = %v, want ErrSizeCeiling", err)
	}
}

func TestDecompressCorruptStream(t *testing.T) {
	corrupt := []byte("definitely not a compressed stream")
	for _, algorithm := range []Algorithm{Zstd, Gzip, Brotli, LZ4} {
		t.Run(string(algorithm), func(t *testing.T) {
			_, err := Decompress(corrupt, algorithm)
			if err == nil {
				t.Fatal("corrupt stream decompressed without error")
			}
			if errors.Is(err, ErrSizeCeiling) {
				t.Fatal("corrupt stream misreported as a size-ceiling violation")
			}
		})
	}
}
