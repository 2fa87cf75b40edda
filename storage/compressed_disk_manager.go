package storage

import (
	"sync"
)

// CompressedDiskManager wraps another disk manager with transparent page
// compression. Pages are compressed before they reach the inner manager
// and decompressed when they come back; the buffer pool above sees plain
// PageSize buffers either way.
type CompressedDiskManager struct {
	inner DiskManager
	algo  CompressionType

	stats      PageCompressionStats
	statsMutex sync.Mutex
}

// NewCompressedDiskManager wraps a disk manager with the given algorithm
func NewCompressedDiskManager(inner DiskManager, algo CompressionType) *CompressedDiskManager {
	return &CompressedDiskManager{
		inner: inner,
		algo:  algo,
	}
}

// ReadPage reads a page from the inner manager and decompresses it if the
// stored form carries the compressed-page magic
func (dm *CompressedDiskManager) ReadPage(pageId PageID, buf []byte) error {
	stored := make([]byte, PageSize)
	if err := dm.inner.ReadPage(pageId, stored); err != nil {
		return err
	}

	plain, err := DecompressPageTransparent(stored)
	if err != nil {
		return ErrDiskRead("CompressedDiskManager.ReadPage", pageId, err)
	}

	copy(buf, plain)
	return nil
}

// WritePage compresses a page and writes the serialized form to the inner
// manager. A page that does not compress well is stored uncompressed.
func (dm *CompressedDiskManager) WritePage(pageId PageID, data []byte) error {
	stored, err := dm.compress(data)
	if err != nil {
		return ErrDiskWrite("CompressedDiskManager.WritePage", pageId, err)
	}
	return dm.inner.WritePage(pageId, stored)
}

// WritePagesV compresses each page and forwards the batch
func (dm *CompressedDiskManager) WritePagesV(writes []PageWrite) error {
	compressed := make([]PageWrite, 0, len(writes))
	for _, pw := range writes {
		stored, err := dm.compress(pw.Data)
		if err != nil {
			return ErrDiskWrite("CompressedDiskManager.WritePagesV", pw.PageID, err)
		}
		compressed = append(compressed, PageWrite{PageID: pw.PageID, Data: stored})
	}
	return dm.inner.WritePagesV(compressed)
}

// DeallocatePage forwards to the inner manager
func (dm *CompressedDiskManager) DeallocatePage(pageId PageID) error {
	return dm.inner.DeallocatePage(pageId)
}

// Close closes the inner manager
func (dm *CompressedDiskManager) Close() error {
	return dm.inner.Close()
}

// GetStats returns a snapshot of the compression statistics
func (dm *CompressedDiskManager) GetStats() PageCompressionStats {
	dm.statsMutex.Lock()
	defer dm.statsMutex.Unlock()
	return dm.stats
}

func (dm *CompressedDiskManager) compress(data []byte) ([]byte, error) {
	cp, err := CompressPage(data, dm.algo)
	if err != nil {
		return nil, err
	}

	dm.statsMutex.Lock()
	dm.stats.AddCompression(cp)
	dm.statsMutex.Unlock()

	// The uncompressed form does not fit beside the header in one page, so
	// it is stored as the plain page
	if cp.CompressionType == CompressionNone {
		return data, nil
	}

	return SerializeCompressedPage(cp)
}
