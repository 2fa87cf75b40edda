package storage

import (
	"log/slog"
	"sync"

	"github.com/zeebo/blake3"
)

// IntegrityDiskManager wraps another disk manager with checksum
// verification. Every write records a BLAKE3 digest of the page; every
// read of a page with a recorded digest is verified against it, which
// catches torn and misdirected writes beneath the pool.
//
// Digests live in process memory only, so verification covers the current
// process lifetime. A page written before the manager was created has no
// digest and reads through unchecked.
type IntegrityDiskManager struct {
	inner  DiskManager
	sums   map[PageID][32]byte
	mutex  sync.RWMutex
	logger *slog.Logger
}

// NewIntegrityDiskManager wraps a disk manager with checksum verification
func NewIntegrityDiskManager(inner DiskManager, logger *slog.Logger) *IntegrityDiskManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityDiskManager{
		inner:  inner,
		sums:   make(map[PageID][32]byte),
		logger: logger,
	}
}

// ReadPage reads a page and verifies it against the recorded digest
func (dm *IntegrityDiskManager) ReadPage(pageId PageID, buf []byte) error {
	if err := dm.inner.ReadPage(pageId, buf); err != nil {
		return err
	}

	dm.mutex.RLock()
	expected, known := dm.sums[pageId]
	dm.mutex.RUnlock()

	if known && blake3.Sum256(buf) != expected {
		dm.logger.Error("page checksum mismatch",
			slog.Int("page_id", int(pageId)))
		return ErrChecksumMismatch("IntegrityDiskManager.ReadPage", pageId)
	}

	return nil
}

// WritePage records the page digest and forwards the write
func (dm *IntegrityDiskManager) WritePage(pageId PageID, data []byte) error {
	if err := dm.inner.WritePage(pageId, data); err != nil {
		return err
	}

	dm.mutex.Lock()
	dm.sums[pageId] = blake3.Sum256(data)
	dm.mutex.Unlock()

	return nil
}

// WritePagesV records digests for the batch and forwards it
func (dm *IntegrityDiskManager) WritePagesV(writes []PageWrite) error {
	if err := dm.inner.WritePagesV(writes); err != nil {
		return err
	}

	dm.mutex.Lock()
	for _, pw := range writes {
		dm.sums[pw.PageID] = blake3.Sum256(pw.Data)
	}
	dm.mutex.Unlock()

	return nil
}

// DeallocatePage drops the page digest and forwards the call
func (dm *IntegrityDiskManager) DeallocatePage(pageId PageID) error {
	dm.mutex.Lock()
	delete(dm.sums, pageId)
	dm.mutex.Unlock()

	return dm.inner.DeallocatePage(pageId)
}

// Close closes the inner manager
func (dm *IntegrityDiskManager) Close() error {
	return dm.inner.Close()
}

// TrackedPages returns the number of pages with recorded digests
func (dm *IntegrityDiskManager) TrackedPages() int {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	return len(dm.sums)
}
