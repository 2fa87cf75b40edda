package storage

import (
	"sync"
)

// ParallelBufferPool unions several buffer pool instances into one logical
// pool. Every page-id-bearing operation routes to the instance at
// pageId mod numInstances; new-page allocation walks the instances
// round-robin from a rotating start cursor so allocation load spreads
// evenly.
//
// The pool's own mutex guards only the start cursor. Each instance
// serializes its operations with its own latch, so different shards
// perform disk I/O concurrently.
type ParallelBufferPool struct {
	instances  []*BufferPoolInstance
	startIndex uint32
	latch      sync.Mutex
}

// NewParallelBufferPool creates numInstances shards of poolSize frames
// each, sharing one disk manager and one log manager
func NewParallelBufferPool(numInstances, poolSize uint32, diskManager DiskManager, logManager LogManager) (*ParallelBufferPool, error) {
	if numInstances == 0 {
		return nil, ErrInvalidConfig("NewParallelBufferPool", "number of instances must be greater than 0")
	}

	instances := make([]*BufferPoolInstance, 0, numInstances)
	for i := uint32(0); i < numInstances; i++ {
		instance, err := NewBufferPoolShard(poolSize, numInstances, i, diskManager, logManager)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}

	return &ParallelBufferPool{instances: instances}, nil
}

// NewParallelBufferPoolFromConfig builds the pool and its disk manager
// stack from a configuration
func NewParallelBufferPoolFromConfig(config *Config, logManager LogManager) (*ParallelBufferPool, DiskManager, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	diskManager, err := NewDiskManagerFromConfig(config)
	if err != nil {
		return nil, nil, err
	}

	pool, err := NewParallelBufferPool(config.NumInstances, config.PoolSizePerInstance, diskManager, logManager)
	if err != nil {
		diskManager.Close()
		return nil, nil, err
	}

	return pool, diskManager, nil
}

// instanceFor returns the instance responsible for the given page id
func (pbp *ParallelBufferPool) instanceFor(pageId PageID) *BufferPoolInstance {
	index := int(pageId) % len(pbp.instances)
	if index < 0 {
		index += len(pbp.instances)
	}
	return pbp.instances[index]
}

// FetchPage fetches the page from its responsible instance
func (pbp *ParallelBufferPool) FetchPage(pageId PageID) (*Page, error) {
	return pbp.instanceFor(pageId).FetchPage(pageId)
}

// UnpinPage unpins the page on its responsible instance
func (pbp *ParallelBufferPool) UnpinPage(pageId PageID, isDirty bool) bool {
	return pbp.instanceFor(pageId).UnpinPage(pageId, isDirty)
}

// FlushPage flushes the page on its responsible instance
func (pbp *ParallelBufferPool) FlushPage(pageId PageID) bool {
	return pbp.instanceFor(pageId).FlushPage(pageId)
}

// DeletePage deletes the page on its responsible instance
func (pbp *ParallelBufferPool) DeletePage(pageId PageID) bool {
	return pbp.instanceFor(pageId).DeletePage(pageId)
}

// NewPage allocates a page from the first instance with a frame to spare,
// scanning round-robin from the start cursor. The cursor advances by one
// whether or not the allocation succeeds; the rotation is for fairness
// across instances, not a retry heuristic.
func (pbp *ParallelBufferPool) NewPage() (*Page, error) {
	pbp.latch.Lock()
	defer pbp.latch.Unlock()

	numInstances := uint32(len(pbp.instances))
	for offset := uint32(0); offset < numInstances; offset++ {
		index := (pbp.startIndex + offset) % numInstances
		page, err := pbp.instances[index].NewPage()
		if err == nil {
			pbp.startIndex = (pbp.startIndex + 1) % numInstances
			return page, nil
		}
	}

	pbp.startIndex = (pbp.startIndex + 1) % numInstances
	return nil, ErrNoFreeFrames("ParallelBufferPool.NewPage")
}

// FlushAllPages flushes every instance in index order
func (pbp *ParallelBufferPool) FlushAllPages() {
	for _, instance := range pbp.instances {
		instance.FlushAllPages()
	}
}

// GetPoolSize returns the total number of frames across all instances
func (pbp *ParallelBufferPool) GetPoolSize() uint32 {
	return uint32(len(pbp.instances)) * pbp.instances[0].GetPoolSize()
}

// GetNumInstances returns the shard count
func (pbp *ParallelBufferPool) GetNumInstances() uint32 {
	return uint32(len(pbp.instances))
}

// PoolMetricsSnapshot aggregates counters across all instances
type PoolMetricsSnapshot struct {
	CacheHits        uint64
	CacheMisses      uint64
	PageEvictions    uint64
	DirtyPageFlushes uint64
	PagesAllocated   uint64
	PagesDeleted     uint64
}

// CacheHitRate returns the aggregate hit rate
func (s PoolMetricsSnapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0.0
	}
	return float64(s.CacheHits) / float64(total)
}

// MetricsSnapshot sums the per-instance metrics
func (pbp *ParallelBufferPool) MetricsSnapshot() PoolMetricsSnapshot {
	var snapshot PoolMetricsSnapshot
	for _, instance := range pbp.instances {
		m := instance.GetMetrics()
		snapshot.CacheHits += m.GetCacheHits()
		snapshot.CacheMisses += m.GetCacheMisses()
		snapshot.PageEvictions += m.GetPageEvictions()
		snapshot.DirtyPageFlushes += m.GetDirtyPageFlushes()
		snapshot.PagesAllocated += m.GetPagesAllocated()
		snapshot.PagesDeleted += m.GetPagesDeleted()
	}
	return snapshot
}
