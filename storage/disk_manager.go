package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DiskManager is the contract the buffer pool requires from the on-disk
// page store. ReadPage fills the caller's buffer; WritePage persists it.
// DeallocatePage is a hook invoked when a page is deleted and may be a
// no-op.
type DiskManager interface {
	ReadPage(pageId PageID, buf []byte) error
	WritePage(pageId PageID, data []byte) error
	WritePagesV(writes []PageWrite) error
	DeallocatePage(pageId PageID) error
	Close() error
}

// PageWrite represents a single page write operation
type PageWrite struct {
	PageID PageID
	Data   []byte
}

// FileDiskManager stores pages in a single file at fixed offsets
type FileDiskManager struct {
	file  *os.File
	mutex sync.Mutex
}

// NewFileDiskManager creates a disk manager that manages pages in a file
func NewFileDiskManager(fileName string) (*FileDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open/create file %s: %w", fileName, err)
	}

	return &FileDiskManager{file: file}, nil
}

// ReadPage reads a page from disk into buf. Reading a page that has never
// been written yields zero bytes, matching the contents of a freshly
// allocated page.
func (dm *FileDiskManager) ReadPage(pageId PageID, buf []byte) error {
	if pageId < 0 {
		return ErrInvalidPageID("FileDiskManager.ReadPage", pageId)
	}
	if len(buf) != PageSize {
		return fmt.Errorf("page buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageId) * PageSize
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Page lies partly or wholly past the end of the file
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			return nil
		}
		return ErrDiskRead("FileDiskManager.ReadPage", pageId, err)
	}

	return nil
}

// WritePage writes a page to disk at the specified page ID
func (dm *FileDiskManager) WritePage(pageId PageID, data []byte) error {
	if pageId < 0 {
		return ErrInvalidPageID("FileDiskManager.WritePage", pageId)
	}
	if len(data) != PageSize {
		return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageId) * PageSize
	if _, err := dm.file.WriteAt(data, offset); err != nil {
		return ErrDiskWrite("FileDiskManager.WritePage", pageId, err)
	}

	return dm.file.Sync()
}

// WritePagesV writes multiple pages in a single batch operation with one
// fsync. More efficient than writing pages one-at-a-time.
func (dm *FileDiskManager) WritePagesV(writes []PageWrite) error {
	if len(writes) == 0 {
		return nil
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for _, pw := range writes {
		if pw.PageID < 0 {
			return ErrInvalidPageID("FileDiskManager.WritePagesV", pw.PageID)
		}
		if len(pw.Data) != PageSize {
			return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(pw.Data))
		}

		offset := int64(pw.PageID) * PageSize
		if _, err := dm.file.WriteAt(pw.Data, offset); err != nil {
			return ErrDiskWrite("FileDiskManager.WritePagesV", pw.PageID, err)
		}
	}

	return dm.file.Sync()
}

// DeallocatePage releases the on-disk space of a page. The file layout
// keeps fixed offsets, so there is nothing to reclaim here; the slot is
// overwritten when its id is reused.
func (dm *FileDiskManager) DeallocatePage(pageId PageID) error {
	if pageId < 0 {
		return ErrInvalidPageID("FileDiskManager.DeallocatePage", pageId)
	}
	return nil
}

// Close closes the disk manager and its underlying file
func (dm *FileDiskManager) Close() error {
	if dm.file != nil {
		return dm.file.Close()
	}
	return nil
}

// NewDiskManagerFromConfig builds the disk manager stack described by the
// configuration: a file or mmap base layer, optionally wrapped with
// transparent page compression and checksum verification.
func NewDiskManagerFromConfig(config *Config) (DiskManager, error) {
	if err := os.MkdirAll(config.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fileName := filepath.Join(config.DataDirectory, "pages.db")

	var dm DiskManager
	var err error
	switch config.DiskMode {
	case DiskModeMmap:
		dm, err = NewMmapDiskManager(fileName)
	default:
		dm, err = NewFileDiskManager(fileName)
	}
	if err != nil {
		return nil, err
	}

	switch config.Compression {
	case "snappy":
		dm = NewCompressedDiskManager(dm, CompressionSnappy)
	case "lz4":
		dm = NewCompressedDiskManager(dm, CompressionLZ4)
	}

	if config.Checksums {
		dm = NewIntegrityDiskManager(dm, NewLogger(config.LogLevel))
	}

	return dm, nil
}
