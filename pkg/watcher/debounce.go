package watcher

import (
	"sync"
	"time"
)

// DebounceQueue coalesces file events per batch folder to detect when a
// batch has finished being copied in.
type DebounceQueue struct {
	entries  map[string]*DebounceEntry
	duration time.Duration
	mu       sync.Mutex
}

// DebounceEntry tracks a single batch's debounce state.
type DebounceEntry struct {
	Folder    string
	LastWrite time.Time
	Timer     *time.Timer
}

// NewDebounceQueue creates a DebounceQueue with the specified window.
func NewDebounceQueue(duration time.Duration) *DebounceQueue {
	return &DebounceQueue{
		entries:  make(map[string]*DebounceEntry),
		duration: duration,
	}
}

// Add records activity for a batch folder, resetting its timer if one is
// already running. The callback fires once the window passes with no new
// activity.
func (d *DebounceQueue) Add(folder string, callback func(string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, exists := d.entries[folder]; exists {
		entry.Timer.Stop()
		delete(d.entries, folder)
	}

	timer := time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.entries, folder)
		d.mu.Unlock()

		callback(folder)
	})

	d.entries[folder] = &DebounceEntry{
		Folder:    folder,
		LastWrite: time.Now(),
		Timer:     timer,
	}
}

// Stop cancels all pending timers and clears the queue.
func (d *DebounceQueue) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.entries {
		entry.Timer.Stop()
	}
	d.entries = make(map[string]*DebounceEntry)
}

// Pending returns the number of batches currently in the queue.
func (d *DebounceQueue) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
