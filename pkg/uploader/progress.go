package uploader

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks server-reported upload progress for rendering.
// The counts come from polling; the tracker never guesses ahead of them.
type ProgressTracker struct {
	uploaded  int
	total     int
	state     State
	startTime time.Time
	mu        sync.RWMutex
}

// NewProgressTracker creates a tracker for a batch of totalFiles files.
func NewProgressTracker(totalFiles int) *ProgressTracker {
	return &ProgressTracker{
		total:     totalFiles,
		startTime: time.Now(),
	}
}

// Update records the latest polled counts and session state.
func (p *ProgressTracker) Update(uploaded, total int, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploaded = uploaded
	if total > 0 {
		p.total = total
	}
	p.state = state
}

// Render returns a single-line progress string.
func (p *ProgressTracker) Render() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var percent float64
	if p.total > 0 {
		percent = float64(p.uploaded) / float64(p.total) * 100
	}

	barWidth := 30
	filled := int(percent * float64(barWidth) / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := ""
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}

	status := fmt.Sprintf("[%d/%d] [%s] %.1f%%", p.uploaded, p.total, bar, percent)
	if p.state == StateHaveFailed || p.state == StateRetryingFailed {
		status += fmt.Sprintf(" | %s", p.state)
	}
	return status
}

// Summary returns a closing summary line for the run.
func (p *ProgressTracker) Summary() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.startTime).Round(time.Second)
	return fmt.Sprintf("Uploaded %d of %d file(s) in %s", p.uploaded, p.total, elapsed)
}
