package storage

import (
	"bytes"
	"testing"
)

func compressiblePage() []byte {
	data := make([]byte, PageSize)
	for i := range data {
		data[i] = byte(i % 8) // Highly repetitive, compresses well
	}
	return data
}

// TestCompressRoundTrip tests compress and decompress for each algorithm
func TestCompressRoundTrip(t *testing.T) {
	data := compressiblePage()

	for _, algo := range []CompressionType{CompressionLZ4, CompressionSnappy} {
		cp, err := CompressPage(data, algo)
		if err != nil {
			t.Fatalf("CompressPage(%d) failed: %v", algo, err)
		}
		if cp.CompressionType != algo {
			t.Errorf("Expected compression type %d, got %d", algo, cp.CompressionType)
		}
		if int(cp.CompressedSize) >= PageSize {
			t.Errorf("Repetitive page should compress, got %d bytes", cp.CompressedSize)
		}

		decompressed, err := DecompressPage(cp)
		if err != nil {
			t.Fatalf("DecompressPage(%d) failed: %v", algo, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Errorf("Round trip mismatch for algorithm %d", algo)
		}
	}
}

// TestCompressIncompressible tests the fallback to uncompressed storage
func TestCompressIncompressible(t *testing.T) {
	// Pseudo-random bytes do not compress
	data := make([]byte, PageSize)
	state := uint32(12345)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state >> 24)
	}

	cp, err := CompressPage(data, CompressionSnappy)
	if err != nil {
		t.Fatalf("CompressPage failed: %v", err)
	}
	if cp.CompressionType != CompressionNone {
		t.Errorf("Expected fallback to CompressionNone, got %d", cp.CompressionType)
	}

	decompressed, err := DecompressPage(cp)
	if err != nil {
		t.Fatalf("DecompressPage failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("Round trip mismatch for uncompressed fallback")
	}
}

// TestCompressChecksumDetectsCorruption tests the CRC verification
func TestCompressChecksumDetectsCorruption(t *testing.T) {
	cp, err := CompressPage(compressiblePage(), CompressionSnappy)
	if err != nil {
		t.Fatalf("CompressPage failed: %v", err)
	}

	cp.OriginalChecksum ^= 0xDEADBEEF
	if _, err := DecompressPage(cp); err == nil {
		t.Error("Expected checksum error on corrupted page")
	}
}

// TestCompressedPageSerialization tests the on-disk header format
func TestCompressedPageSerialization(t *testing.T) {
	data := compressiblePage()

	cp, err := CompressPage(data, CompressionLZ4)
	if err != nil {
		t.Fatalf("CompressPage failed: %v", err)
	}

	serialized, err := SerializeCompressedPage(cp)
	if err != nil {
		t.Fatalf("SerializeCompressedPage failed: %v", err)
	}
	if len(serialized) != PageSize {
		t.Errorf("Serialized page must be %d bytes, got %d", PageSize, len(serialized))
	}
	if !IsCompressedPage(serialized) {
		t.Error("Serialized page should carry the compressed magic")
	}

	parsed, err := DeserializeCompressedPage(serialized)
	if err != nil {
		t.Fatalf("DeserializeCompressedPage failed: %v", err)
	}
	decompressed, err := DecompressPage(parsed)
	if err != nil {
		t.Fatalf("DecompressPage failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("Serialize/deserialize round trip mismatch")
	}
}

// TestDecompressTransparent tests the pass-through for plain pages
func TestDecompressTransparent(t *testing.T) {
	plain := make([]byte, PageSize)
	copy(plain, []byte("not compressed"))

	out, err := DecompressPageTransparent(plain)
	if err != nil {
		t.Fatalf("DecompressPageTransparent failed: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Error("Plain page should pass through unchanged")
	}

	stored, err := CompressPageTransparent(compressiblePage(), CompressionSnappy)
	if err != nil {
		t.Fatalf("CompressPageTransparent failed: %v", err)
	}
	out, err = DecompressPageTransparent(stored)
	if err != nil {
		t.Fatalf("DecompressPageTransparent failed: %v", err)
	}
	if !bytes.Equal(out, compressiblePage()) {
		t.Error("Transparent round trip mismatch")
	}
}

// TestCompressionStats tests stat accumulation
func TestCompressionStats(t *testing.T) {
	var stats PageCompressionStats

	cp, err := CompressPage(compressiblePage(), CompressionSnappy)
	if err != nil {
		t.Fatalf("CompressPage failed: %v", err)
	}
	stats.AddCompression(cp)

	if stats.TotalPages != 1 || stats.CompressedPages != 1 || stats.SnappyCount != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.GetCompressionRatio() <= 1.0 {
		t.Errorf("Expected ratio > 1, got %f", stats.GetCompressionRatio())
	}
	if stats.GetSpaceSavings() == 0 {
		t.Error("Expected nonzero space savings")
	}
}
