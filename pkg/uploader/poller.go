package uploader

import (
	"context"
	"fmt"
	"time"
)

// stallLevel classifies how long the uploaded count has sat unchanged.
type stallLevel int

const (
	stallProgressing stallLevel = iota // count advanced since last observation
	stallNone                          // unchanged, under the warn threshold
	stallWarn                          // unchanged for at least the warn threshold
	stallRetry                         // unchanged for at least the retry threshold
)

// stallTracker watches the server-reported uploaded count and reports
// stall escalation levels. It is purely observational; state transitions
// are the poll loop's job.
type stallTracker struct {
	warnAfter  time.Duration
	retryAfter time.Duration

	seeded       bool
	lastUploaded int
	lastProgress time.Time
}

func newStallTracker(warnAfter, retryAfter time.Duration) *stallTracker {
	return &stallTracker{warnAfter: warnAfter, retryAfter: retryAfter}
}

func (t *stallTracker) observe(uploaded int, now time.Time) stallLevel {
	if !t.seeded || uploaded != t.lastUploaded {
		t.seeded = true
		t.lastUploaded = uploaded
		t.lastProgress = now
		return stallProgressing
	}
	stalled := now.Sub(t.lastProgress)
	switch {
	case stalled >= t.retryAfter:
		return stallRetry
	case stalled >= t.warnAfter:
		return stallWarn
	default:
		return stallNone
	}
}

// pollLoop polls the server's progress counts until the upload converges
// or a terminal condition is reached. The aggregate counter is the sole
// source of truth: no chunk is considered delivered until it shows here.
// streamCtx scopes any retry streams dispatched from here to the Run
// that owns them.
func (c *Controller) pollLoop(ctx, streamCtx context.Context) error {
	tracker := newStallTracker(c.cfg.StallWarnAfter, c.cfg.StallRetryAfter)
	attempt := 0
	retryDispatched := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		counts, err := c.client.GetUploadCounts(ctx, c.UploadID())
		if err != nil {
			attempt++
			if attempt > c.cfg.PollAttempts {
				c.setState(StateError)
				return fmt.Errorf("progress polling failed after %d attempts: %w", c.cfg.PollAttempts, err)
			}
			c.notify.Warnf("progress poll failed (attempt %d of %d): %v", attempt, c.cfg.PollAttempts, err)
			if sleepErr := c.sleep(ctx, c.cfg.PollRetryDelay*time.Duration(attempt)); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		attempt = 0
		c.setCounts(counts)
		if c.cfg.OnProgress != nil {
			c.cfg.OnProgress(counts.Uploaded, counts.Total, c.State())
		}

		if counts.Total > 0 && counts.Uploaded >= counts.Total {
			if err := c.client.CompleteUpload(ctx, c.UploadID()); err != nil {
				c.notify.Errorf("upload finished but could not be marked completed: %v", err)
				return fmt.Errorf("failed to mark the upload completed: %w", err)
			}
			c.setState(StateNone)
			return nil
		}

		switch tracker.observe(counts.Uploaded, c.now()) {
		case stallProgressing:
			retryDispatched = false
			// A retry pass in flight keeps its state until it converges.
			if c.State() != StateRetryingFailed {
				c.setState(StateUploading)
			}

		case stallWarn:
			// Display-only escalation; polling continues as before.
			c.setStateIf(StateUploading, StateHaveFailed)

		case stallRetry:
			if !retryDispatched {
				retryDispatched = true
				if err := c.retryFailed(ctx, streamCtx); err != nil {
					if c.State() == StateUploadFailure {
						return err
					}
					// Transport trouble on the retry pass: fall back to
					// the polling retry budget and allow a later pass.
					retryDispatched = false
					attempt++
					if attempt > c.cfg.PollAttempts {
						c.setState(StateError)
						return err
					}
					c.notify.Warnf("retry pass failed (attempt %d of %d): %v", attempt, c.cfg.PollAttempts, err)
				}
			}
		}

		if sleepErr := c.sleep(ctx, c.cfg.PollInterval); sleepErr != nil {
			return sleepErr
		}
	}
}
