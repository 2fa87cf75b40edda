package storage

import (
	"container/list"
	"sync"
)

// LRUReplacer tracks the frames that are currently evictable, ordered by
// the time they became evictable. The front of the list is the least
// recently unpinned frame; Victim consumes from the front.
//
// The position map makes Pin O(1) instead of a linear scan of the list.
type LRUReplacer struct {
	capacity uint32
	lruList  *list.List
	lruMap   map[FrameID]*list.Element
	mutex    sync.Mutex
}

// NewLRUReplacer creates a new LRU replacer
func NewLRUReplacer(capacity uint32) *LRUReplacer {
	return &LRUReplacer{
		capacity: capacity,
		lruList:  list.New(),
		lruMap:   make(map[FrameID]*list.Element),
	}
}

// Victim selects the least recently unpinned frame and removes it.
// Returns the frame ID and true if a victim was found, or 0 and false if
// no frame is evictable.
func (lru *LRUReplacer) Victim() (FrameID, bool) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	oldest := lru.lruList.Front()
	if oldest == nil {
		return 0, false
	}

	frameId := oldest.Value.(FrameID)
	lru.lruList.Remove(oldest)
	delete(lru.lruMap, frameId)

	return frameId, true
}

// Pin removes a frame from the replacer. Called when a page is pinned and
// is no longer evictable. No-op if the frame is not tracked.
func (lru *LRUReplacer) Pin(frameId FrameID) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	if elem, exists := lru.lruMap[frameId]; exists {
		lru.lruList.Remove(elem)
		delete(lru.lruMap, frameId)
	}
}

// Unpin adds a frame to the replacer. Called when a page's pin count drops
// to zero and the frame becomes evictable. No-op if the frame is already
// tracked, so redundant calls do not disturb the eviction order.
func (lru *LRUReplacer) Unpin(frameId FrameID) {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	if _, exists := lru.lruMap[frameId]; exists {
		return
	}

	elem := lru.lruList.PushBack(frameId)
	lru.lruMap[frameId] = elem
}

// Size returns the number of evictable frames
func (lru *LRUReplacer) Size() uint32 {
	lru.mutex.Lock()
	defer lru.mutex.Unlock()

	return uint32(lru.lruList.Len())
}
