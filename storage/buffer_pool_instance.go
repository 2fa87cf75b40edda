package storage

import (
	"fmt"
	"sync"
	"time"
)

// BufferPoolInstance is a single-shard buffer pool. It owns a fixed array
// of frames, a page table mapping resident page ids to frame indices, a
// free list, and an LRU replacer over the unpinned frames.
//
// One mutex serializes every public operation, including the disk I/O a
// miss or write-back performs. The replacer has its own mutex and is only
// called downward while the instance latch is held; it never calls back.
type BufferPoolInstance struct {
	poolSize      uint32
	numInstances  uint32
	instanceIndex uint32
	nextPageId    PageID

	frames    []*Page
	pageTable map[PageID]FrameID
	freeList  []FrameID
	replacer  Replacer

	diskManager DiskManager
	logManager  LogManager // reserved for WAL integration, not yet invoked
	metrics     *Metrics

	latch sync.Mutex
}

// NewBufferPoolInstance creates a standalone single-shard pool
func NewBufferPoolInstance(poolSize uint32, diskManager DiskManager, logManager LogManager) (*BufferPoolInstance, error) {
	return NewBufferPoolShard(poolSize, 1, 0, diskManager, logManager)
}

// NewBufferPoolShard creates shard instanceIndex of a pool with
// numInstances shards. The shard allocates only page ids congruent to its
// index modulo the shard count.
func NewBufferPoolShard(poolSize, numInstances, instanceIndex uint32, diskManager DiskManager, logManager LogManager) (*BufferPoolInstance, error) {
	if poolSize == 0 {
		return nil, ErrInvalidConfig("NewBufferPoolShard", "pool size must be greater than 0")
	}
	if numInstances == 0 {
		return nil, ErrInvalidConfig("NewBufferPoolShard", "number of instances must be greater than 0")
	}
	if instanceIndex >= numInstances {
		return nil, ErrInvalidConfig("NewBufferPoolShard",
			fmt.Sprintf("instance index %d out of range for %d instances", instanceIndex, numInstances))
	}

	bpi := &BufferPoolInstance{
		poolSize:      poolSize,
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
		nextPageId:    PageID(instanceIndex),
		frames:        make([]*Page, poolSize),
		pageTable:     make(map[PageID]FrameID, poolSize),
		freeList:      make([]FrameID, 0, poolSize),
		replacer:      NewReplacer("lru", poolSize),
		diskManager:   diskManager,
		logManager:    logManager,
		metrics:       NewMetrics(),
	}

	// Initially every frame is free
	for i := uint32(0); i < poolSize; i++ {
		bpi.frames[i] = newPage()
		bpi.freeList = append(bpi.freeList, FrameID(i))
	}

	return bpi, nil
}

// GetPoolSize returns the number of frames in this instance
func (bpi *BufferPoolInstance) GetPoolSize() uint32 {
	return bpi.poolSize
}

// GetInstanceIndex returns this shard's index
func (bpi *BufferPoolInstance) GetInstanceIndex() uint32 {
	return bpi.instanceIndex
}

// GetMetrics returns the instance metrics
func (bpi *BufferPoolInstance) GetMetrics() *Metrics {
	return bpi.metrics
}

// victimFrame returns a frame slot to repurpose, preferring the free list
// over replacer eviction. An evicted dirty page is written back before its
// binding is erased. Caller must hold the latch.
func (bpi *BufferPoolInstance) victimFrame(op string) (FrameID, *Page, error) {
	if len(bpi.freeList) > 0 {
		frameId := bpi.freeList[0]
		bpi.freeList = bpi.freeList[1:]
		return frameId, bpi.frames[frameId], nil
	}

	frameId, ok := bpi.replacer.Victim()
	if !ok {
		return 0, nil, ErrNoFreeFrames(op)
	}

	page := bpi.frames[frameId]
	if page.IsDirty() {
		if err := bpi.diskManager.WritePage(page.GetPageId(), page.GetData()); err != nil {
			// Put the frame back so the pool stays consistent
			bpi.replacer.Unpin(frameId)
			return 0, nil, err
		}
		bpi.metrics.RecordDirtyPageFlush()
		page.SetDirty(false)
	}

	delete(bpi.pageTable, page.GetPageId())
	bpi.metrics.RecordPageEviction()

	return frameId, page, nil
}

// NewPage allocates a fresh page id on this shard, binds it to a frame and
// returns the pinned frame with zeroed contents
func (bpi *BufferPoolInstance) NewPage() (*Page, error) {
	bpi.latch.Lock()
	defer bpi.latch.Unlock()

	frameId, page, err := bpi.victimFrame("NewPage")
	if err != nil {
		return nil, err
	}

	pageId := bpi.allocatePageId()
	page.rebind(pageId)
	page.ResetMemory()
	bpi.pageTable[pageId] = frameId
	bpi.metrics.RecordPageAllocation()

	// No replacer.Pin here: the frame came from the free list or straight
	// out of the replacer, so it is already absent from its order.

	return page, nil
}

// FetchPage pins the requested page, reading it from disk on a miss
func (bpi *BufferPoolInstance) FetchPage(pageId PageID) (*Page, error) {
	start := time.Now()
	defer func() {
		bpi.metrics.RecordPageFetchLatency(time.Since(start))
	}()

	bpi.latch.Lock()
	defer bpi.latch.Unlock()

	if frameId, ok := bpi.pageTable[pageId]; ok {
		page := bpi.frames[frameId]
		page.Pin()
		// The frame may still sit in the replacer if its pin count was
		// zero a moment ago
		bpi.replacer.Pin(frameId)
		bpi.metrics.RecordCacheHit()
		return page, nil
	}

	bpi.metrics.RecordCacheMiss()

	frameId, page, err := bpi.victimFrame("FetchPage")
	if err != nil {
		return nil, err
	}

	page.rebind(pageId)
	if err := bpi.diskManager.ReadPage(pageId, page.GetData()); err != nil {
		// Return the frame to the free list unbound
		page.clear()
		bpi.freeList = append(bpi.freeList, frameId)
		return nil, err
	}

	bpi.pageTable[pageId] = frameId
	bpi.replacer.Pin(frameId)

	return page, nil
}

// UnpinPage releases one reference to the page. The dirty hint is a
// monotone OR; only a flush or eviction clears the bit. Returns false if
// the page is not resident or its pin count is already zero.
func (bpi *BufferPoolInstance) UnpinPage(pageId PageID, isDirty bool) bool {
	bpi.latch.Lock()
	defer bpi.latch.Unlock()

	frameId, ok := bpi.pageTable[pageId]
	if !ok {
		return false
	}

	page := bpi.frames[frameId]
	if page.GetPinCount() <= 0 {
		return false
	}

	if isDirty {
		page.SetDirty(true)
	}
	page.Unpin()

	if page.GetPinCount() == 0 {
		bpi.replacer.Unpin(frameId)
	}

	return true
}

// FlushPage writes the page to disk and clears its dirty bit. Pin state is
// irrelevant; a pinned page may be flushed. Returns false if the page is
// not resident (InvalidPageID is never resident).
func (bpi *BufferPoolInstance) FlushPage(pageId PageID) bool {
	start := time.Now()
	defer func() {
		bpi.metrics.RecordPageFlushLatency(time.Since(start))
	}()

	bpi.latch.Lock()
	defer bpi.latch.Unlock()

	frameId, ok := bpi.pageTable[pageId]
	if !ok {
		return false
	}

	page := bpi.frames[frameId]
	if err := bpi.diskManager.WritePage(pageId, page.GetData()); err != nil {
		return false
	}
	if page.IsDirty() {
		bpi.metrics.RecordDirtyPageFlush()
	}
	page.SetDirty(false)

	return true
}

// FlushAllPages writes every resident page to disk in one batch and clears
// all dirty bits
func (bpi *BufferPoolInstance) FlushAllPages() {
	bpi.latch.Lock()
	defer bpi.latch.Unlock()

	if len(bpi.pageTable) == 0 {
		return
	}

	writes := make([]PageWrite, 0, len(bpi.pageTable))
	for pageId, frameId := range bpi.pageTable {
		writes = append(writes, PageWrite{PageID: pageId, Data: bpi.frames[frameId].GetData()})
	}

	if err := bpi.diskManager.WritePagesV(writes); err != nil {
		return
	}

	for _, frameId := range bpi.pageTable {
		page := bpi.frames[frameId]
		if page.IsDirty() {
			bpi.metrics.RecordDirtyPageFlush()
		}
		page.SetDirty(false)
	}
}

// DeletePage removes an unpinned page from the pool, returning its frame
// to the free list. The page id is deallocated whether or not the page is
// resident. Returns false only when the page is still pinned.
func (bpi *BufferPoolInstance) DeletePage(pageId PageID) bool {
	bpi.latch.Lock()
	defer bpi.latch.Unlock()

	bpi.diskManager.DeallocatePage(pageId)

	frameId, ok := bpi.pageTable[pageId]
	if !ok {
		return true
	}

	page := bpi.frames[frameId]
	if page.GetPinCount() != 0 {
		return false
	}

	if page.IsDirty() {
		if err := bpi.diskManager.WritePage(pageId, page.GetData()); err == nil {
			bpi.metrics.RecordDirtyPageFlush()
		}
	}

	// The frame must not be victimized once it is free
	bpi.replacer.Pin(frameId)
	delete(bpi.pageTable, pageId)
	page.clear()
	bpi.freeList = append(bpi.freeList, frameId)
	bpi.metrics.RecordPageDeletion()

	return true
}

// allocatePageId hands out this shard's next page id. Caller must hold
// the latch.
func (bpi *BufferPoolInstance) allocatePageId() PageID {
	pageId := bpi.nextPageId
	bpi.nextPageId += PageID(bpi.numInstances)

	if pageId < 0 || uint32(pageId)%bpi.numInstances != bpi.instanceIndex {
		panic(fmt.Sprintf("allocated page id %d does not map to shard %d of %d",
			pageId, bpi.instanceIndex, bpi.numInstances))
	}

	return pageId
}
