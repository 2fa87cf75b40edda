package storage

import (
	"testing"
)

// TestPageInitialState tests a freshly constructed frame
func TestPageInitialState(t *testing.T) {
	page := newPage()

	if page.GetPageId() != InvalidPageID {
		t.Errorf("Expected InvalidPageID, got %d", page.GetPageId())
	}
	if page.GetPinCount() != 0 {
		t.Errorf("Expected pin count 0, got %d", page.GetPinCount())
	}
	if page.IsDirty() {
		t.Error("New frame should be clean")
	}
	if len(page.GetData()) != PageSize {
		t.Errorf("Expected %d data bytes, got %d", PageSize, len(page.GetData()))
	}
}

// TestPagePinUnpin tests reference counting on the frame
func TestPagePinUnpin(t *testing.T) {
	page := newPage()

	page.Pin()
	page.Pin()
	if page.GetPinCount() != 2 {
		t.Errorf("Expected pin count 2, got %d", page.GetPinCount())
	}

	page.Unpin()
	page.Unpin()
	page.Unpin() // Must not go negative
	if page.GetPinCount() != 0 {
		t.Errorf("Expected pin count 0, got %d", page.GetPinCount())
	}
}

// TestPageRebindAndClear tests the frame lifecycle transitions
func TestPageRebindAndClear(t *testing.T) {
	page := newPage()

	page.rebind(12)
	if page.GetPageId() != 12 {
		t.Errorf("Expected page id 12, got %d", page.GetPageId())
	}
	if page.GetPinCount() != 1 {
		t.Errorf("Expected pin count 1 after rebind, got %d", page.GetPinCount())
	}
	if page.IsDirty() {
		t.Error("Rebound frame should start clean")
	}

	page.GetData()[0] = 0x7F
	page.SetDirty(true)
	page.Unpin()

	page.clear()
	if page.GetPageId() != InvalidPageID {
		t.Errorf("Expected InvalidPageID after clear, got %d", page.GetPageId())
	}
	if page.IsDirty() {
		t.Error("Cleared frame should be clean")
	}
	if page.GetData()[0] != 0 {
		t.Error("Cleared frame should have zeroed data")
	}
}
