package storage

// BufferPool is the public surface shared by a single instance and the
// parallel pool. FetchPage and NewPage return ErrNoFreeFrames when every
// frame is pinned; the bool-returning operations report whether the
// request applied.
type BufferPool interface {
	// FetchPage pins the page with the given id, reading it from disk if
	// it is not resident
	FetchPage(pageId PageID) (*Page, error)

	// NewPage allocates a fresh page id, binds it to a frame and pins it
	NewPage() (*Page, error)

	// UnpinPage releases one reference to the page, optionally marking
	// it dirty. The dirty hint accumulates; it never clears the bit.
	UnpinPage(pageId PageID, isDirty bool) bool

	// FlushPage writes the page to disk and clears its dirty bit,
	// regardless of pin state
	FlushPage(pageId PageID) bool

	// FlushAllPages writes every resident page to disk
	FlushAllPages()

	// DeletePage removes an unpinned page from the pool and deallocates
	// its id
	DeletePage(pageId PageID) bool

	// GetPoolSize returns the total number of frames
	GetPoolSize() uint32
}

var (
	_ BufferPool = (*BufferPoolInstance)(nil)
	_ BufferPool = (*ParallelBufferPool)(nil)
)
