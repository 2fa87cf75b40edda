package storage

import (
	"bytes"
	"os"
	"testing"
)

// TestIntegrityDiskManagerRoundTrip tests digest recording and clean
// verification
func TestIntegrityDiskManagerRoundTrip(t *testing.T) {
	fileName := "test_integrity_roundtrip.db"
	defer os.Remove(fileName)

	inner, err := NewFileDiskManager(fileName)
	if err != nil {
		t.Fatalf("Failed to create disk manager: %v", err)
	}
	dm := NewIntegrityDiskManager(inner, nil)
	defer dm.Close()

	data := make([]byte, PageSize)
	copy(data, []byte("verified page"))
	if err := dm.WritePage(4, data); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}
	if dm.TrackedPages() != 1 {
		t.Errorf("Expected 1 tracked page, got %d", dm.TrackedPages())
	}

	buf := make([]byte, PageSize)
	if err := dm.ReadPage(4, buf); err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Error("Read data does not match written data")
	}
}

// TestIntegrityDiskManagerDetectsCorruption tests that a write beneath
// the wrapper is caught on read
func TestIntegrityDiskManagerDetectsCorruption(t *testing.T) {
	fileName := "test_integrity_corrupt.db"
	defer os.Remove(fileName)

	inner, err := NewFileDiskManager(fileName)
	if err != nil {
		t.Fatalf("Failed to create disk manager: %v", err)
	}
	dm := NewIntegrityDiskManager(inner, nil)
	defer dm.Close()

	data := make([]byte, PageSize)
	copy(data, []byte("original"))
	if err := dm.WritePage(9, data); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}

	// Corrupt the page behind the wrapper's back
	corrupted := make([]byte, PageSize)
	copy(corrupted, []byte("tampered"))
	if err := inner.WritePage(9, corrupted); err != nil {
		t.Fatalf("Inner WritePage failed: %v", err)
	}

	buf := make([]byte, PageSize)
	err = dm.ReadPage(9, buf)
	if !IsErrorCode(err, ErrCodeChecksumMismatch) {
		t.Errorf("Expected ErrCodeChecksumMismatch, got %v", err)
	}
}

// TestIntegrityDiskManagerUntracked tests that unknown pages read through
// unchecked
func TestIntegrityDiskManagerUntracked(t *testing.T) {
	fileName := "test_integrity_untracked.db"
	defer os.Remove(fileName)

	inner, err := NewFileDiskManager(fileName)
	if err != nil {
		t.Fatalf("Failed to create disk manager: %v", err)
	}

	// Written before the wrapper existed
	pre := make([]byte, PageSize)
	copy(pre, []byte("pre-existing"))
	if err := inner.WritePage(2, pre); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}

	dm := NewIntegrityDiskManager(inner, nil)
	defer dm.Close()

	buf := make([]byte, PageSize)
	if err := dm.ReadPage(2, buf); err != nil {
		t.Fatalf("ReadPage of untracked page failed: %v", err)
	}
	if !bytes.Equal(buf, pre) {
		t.Error("Untracked page contents mismatch")
	}
}

// TestIntegrityDiskManagerDeallocate tests that deallocation drops the
// digest
func TestIntegrityDiskManagerDeallocate(t *testing.T) {
	fileName := "test_integrity_dealloc.db"
	defer os.Remove(fileName)

	inner, err := NewFileDiskManager(fileName)
	if err != nil {
		t.Fatalf("Failed to create disk manager: %v", err)
	}
	dm := NewIntegrityDiskManager(inner, nil)
	defer dm.Close()

	if err := dm.WritePage(1, make([]byte, PageSize)); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}
	if err := dm.DeallocatePage(1); err != nil {
		t.Fatalf("DeallocatePage failed: %v", err)
	}
	if dm.TrackedPages() != 0 {
		t.Errorf("Expected 0 tracked pages, got %d", dm.TrackedPages())
	}
}
