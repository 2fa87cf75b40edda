package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapDiskManager provides page access through a memory-mapped file.
// Reads and writes are plain memory copies; Msync pushes dirty mapped
// pages to the backing file.
type MmapDiskManager struct {
	file     *os.File
	mmapData []byte
	fileSize int64
	mutex    sync.RWMutex
}

const (
	// Initial file size: 16MB (4K pages * 4KB). The file is sparse, so
	// the mapping costs address space, not disk.
	initialMmapFileSize = 16 * 1024 * 1024
	// Grow by 16MB when a write lands past the end of the mapping
	mmapFileGrowSize = 16 * 1024 * 1024
)

// NewMmapDiskManager creates a new memory-mapped disk manager
func NewMmapDiskManager(fileName string) (*MmapDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open/create file %s: %w", fileName, err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	fileSize := fileInfo.Size()
	if fileSize < initialMmapFileSize {
		if err := file.Truncate(initialMmapFileSize); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to grow file: %w", err)
		}
		fileSize = initialMmapFileSize
	}

	dm := &MmapDiskManager{
		file:     file,
		fileSize: fileSize,
	}

	if err := dm.createMapping(); err != nil {
		file.Close()
		return nil, err
	}

	return dm, nil
}

// createMapping maps the whole file read-write and shared
func (dm *MmapDiskManager) createMapping() error {
	data, err := unix.Mmap(int(dm.file.Fd()), 0, int(dm.fileSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("failed to mmap file: %w", err)
	}
	dm.mmapData = data
	return nil
}

// growFile expands the file and recreates the mapping. Caller must hold
// the write lock.
func (dm *MmapDiskManager) growFile(requiredSize int64) error {
	newSize := dm.fileSize
	for newSize < requiredSize {
		newSize += mmapFileGrowSize
	}

	if dm.mmapData != nil {
		if err := unix.Munmap(dm.mmapData); err != nil {
			return fmt.Errorf("failed to unmap file: %w", err)
		}
		dm.mmapData = nil
	}

	if err := dm.file.Truncate(newSize); err != nil {
		// Recreate the old mapping so the manager stays usable
		dm.createMapping()
		return fmt.Errorf("failed to grow file: %w", err)
	}

	dm.fileSize = newSize
	return dm.createMapping()
}

// ReadPage copies a page out of the mapped region into buf. A page past
// the end of the mapping has never been written and reads as zeros.
func (dm *MmapDiskManager) ReadPage(pageId PageID, buf []byte) error {
	if pageId < 0 {
		return ErrInvalidPageID("MmapDiskManager.ReadPage", pageId)
	}
	if len(buf) != PageSize {
		return fmt.Errorf("page buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}

	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	offset := int64(pageId) * PageSize
	if offset+PageSize > dm.fileSize {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	copy(buf, dm.mmapData[offset:offset+PageSize])
	return nil
}

// WritePage copies a page into the mapped region, growing the file if the
// page lies past the current end
func (dm *MmapDiskManager) WritePage(pageId PageID, data []byte) error {
	if pageId < 0 {
		return ErrInvalidPageID("MmapDiskManager.WritePage", pageId)
	}
	if len(data) != PageSize {
		return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(data))
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageId) * PageSize
	if offset+PageSize > dm.fileSize {
		if err := dm.growFile(offset + PageSize); err != nil {
			return ErrDiskWrite("MmapDiskManager.WritePage", pageId, err)
		}
	}

	copy(dm.mmapData[offset:offset+PageSize], data)
	return nil
}

// WritePagesV writes multiple pages in a single batch operation
func (dm *MmapDiskManager) WritePagesV(writes []PageWrite) error {
	if len(writes) == 0 {
		return nil
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for _, pw := range writes {
		if pw.PageID < 0 {
			return ErrInvalidPageID("MmapDiskManager.WritePagesV", pw.PageID)
		}
		if len(pw.Data) != PageSize {
			return fmt.Errorf("page data must be exactly %d bytes, got %d", PageSize, len(pw.Data))
		}

		offset := int64(pw.PageID) * PageSize
		if offset+PageSize > dm.fileSize {
			if err := dm.growFile(offset + PageSize); err != nil {
				return ErrDiskWrite("MmapDiskManager.WritePagesV", pw.PageID, err)
			}
		}

		copy(dm.mmapData[offset:offset+PageSize], pw.Data)
	}

	return nil
}

// DeallocatePage releases the on-disk space of a page. Fixed offsets, so
// nothing to reclaim; the slot is overwritten when its id is reused.
func (dm *MmapDiskManager) DeallocatePage(pageId PageID) error {
	if pageId < 0 {
		return ErrInvalidPageID("MmapDiskManager.DeallocatePage", pageId)
	}
	return nil
}

// Flush pushes all dirty mapped pages to the backing file
func (dm *MmapDiskManager) Flush() error {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if dm.mmapData == nil {
		return nil
	}

	if err := unix.Msync(dm.mmapData, unix.MS_SYNC); err != nil {
		return fmt.Errorf("failed to msync mapping: %w", err)
	}

	return dm.file.Sync()
}

// GetFileSize returns the current file size
func (dm *MmapDiskManager) GetFileSize() int64 {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	return dm.fileSize
}

// Close flushes the mapping, unmaps it and closes the file
func (dm *MmapDiskManager) Close() error {
	dm.Flush()

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if dm.mmapData != nil {
		if err := unix.Munmap(dm.mmapData); err != nil {
			return fmt.Errorf("failed to unmap file: %w", err)
		}
		dm.mmapData = nil
	}

	if dm.file != nil {
		return dm.file.Close()
	}

	return nil
}
