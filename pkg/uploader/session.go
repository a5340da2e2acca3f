package uploader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sparcd-io/cli/internal/api"
)

// Config tunes one upload session.
type Config struct {
	Streams         int
	BaseSplit       int
	ChunkAttempts   int
	ChunkRetryDelay time.Duration
	PollInterval    time.Duration
	PollAttempts    int
	PollRetryDelay  time.Duration
	StallWarnAfter  time.Duration
	StallRetryAfter time.Duration
	Timezone        string

	// OnProgress, when set, is called after every successful poll.
	OnProgress func(uploaded, total int, state State)
}

// DefaultConfig returns the standard session tuning.
func DefaultConfig(timezone string) Config {
	return Config{
		Streams:         MaxStreams,
		BaseSplit:       BaseSplit,
		ChunkAttempts:   ChunkAttempts,
		ChunkRetryDelay: ChunkRetryDelay,
		PollInterval:    PollInterval,
		PollAttempts:    PollAttempts,
		PollRetryDelay:  PollRetryDelay,
		StallWarnAfter:  StallWarnAfter,
		StallRetryAfter: StallRetryAfter,
		Timezone:        timezone,
	}
}

// Controller owns all session-scoped mutable state for one upload: the
// authoritative state value, the working file list, the upload id, and
// the accumulated-failure flag. Chunk streams and the poller only read
// the id and report transitions through the controller's setters.
type Controller struct {
	client   *api.Client
	notify   Notifier
	cfg      Config
	tzOffset string

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	running atomic.Bool

	mu          sync.Mutex
	state       State
	uploadID    string
	working     []File
	hadFailures bool
	uploaded    int
	total       int
}

// NewController creates a Controller for one session.
func NewController(client *api.Client, notify Notifier, cfg Config) *Controller {
	if cfg.Streams <= 0 {
		cfg.Streams = MaxStreams
	}
	if cfg.BaseSplit <= 0 {
		cfg.BaseSplit = BaseSplit
	}
	return &Controller{
		client:   client,
		notify:   notify,
		cfg:      cfg,
		tzOffset: TimezoneOffset(cfg.Timezone, time.Now()),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// setStateIf transitions to next only when the current state is cur.
func (c *Controller) setStateIf(cur, next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != cur {
		return false
	}
	c.state = next
	return true
}

// UploadID returns the server-issued id of the active session.
func (c *Controller) UploadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploadID
}

// Counts returns the last server-reported progress.
func (c *Controller) Counts() (uploaded, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploaded, c.total
}

func (c *Controller) setCounts(counts *api.UploadCounts) {
	c.mu.Lock()
	c.uploaded = counts.Uploaded
	c.total = counts.Total
	c.mu.Unlock()
}

// markFailedUploads records that a chunk exhausted its retry budget.
// Non-fatal: the files stay on the server's not-uploaded list and are
// picked up by the stall-triggered retry pass.
func (c *Controller) markFailedUploads(files []File, err error) {
	c.mu.Lock()
	c.hadFailures = true
	c.mu.Unlock()
	c.notify.Warnf("%d file(s) failed to upload and are queued for retry: %v", len(files), err)
}

// Run drives one session from dispatch to a terminal outcome. It returns
// when the server reports full completion, or when the session reaches
// uploadFailure or error. A second Run on a live controller is rejected.
func (c *Controller) Run(ctx context.Context, uploadID string, files []File) (*Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("an upload is already in progress")
	}
	defer c.running.Store(false)

	c.mu.Lock()
	c.uploadID = uploadID
	c.working = files
	c.hadFailures = false
	c.state = StateUploading
	c.mu.Unlock()

	start := c.now()

	// Chunk streams run independently; the poll loop below is the sole
	// judge of overall progress.
	streamCtx, cancelStreams := context.WithCancel(ctx)
	defer cancelStreams()
	if len(files) > 0 {
		go c.dispatchStreams(streamCtx, files)
	}

	err := c.pollLoop(ctx, streamCtx)

	c.mu.Lock()
	summary := &Summary{
		UploadID:    uploadID,
		TotalFiles:  c.total,
		Uploaded:    c.uploaded,
		Completed:   err == nil,
		HadFailures: c.hadFailures,
		FinalState:  c.state,
		Elapsed:     c.now().Sub(start),
	}
	c.mu.Unlock()
	return summary, err
}

// dispatchStreams splits files across at most cfg.Streams chunk streams
// and waits for all of them to drain.
func (c *Controller) dispatchStreams(ctx context.Context, files []File) {
	shares := partitionStreams(files, c.cfg.Streams)
	var wg sync.WaitGroup
	for _, share := range shares {
		wg.Add(1)
		go func(share []File) {
			defer wg.Done()
			c.runStream(ctx, share)
		}(share)
	}
	wg.Wait()
}

// partitionStreams slices files into contiguous per-stream shares of
// ceil(len/maxStreams) files each.
func partitionStreams(files []File, maxStreams int) [][]File {
	if len(files) == 0 {
		return nil
	}
	share := (len(files) + maxStreams - 1) / maxStreams
	var shares [][]File
	for len(files) > 0 {
		n := share
		if n > len(files) {
			n = len(files)
		}
		shares = append(shares, files[:n])
		files = files[n:]
	}
	return shares
}

// retryFailed fetches the server's list of not-uploaded files, maps them
// back onto the working list and resubmits only those. The resubmission
// runs on streamCtx so it is cancelled together with the original
// streams when Run returns. A name the client cannot reconcile means the
// batch can no longer converge.
func (c *Controller) retryFailed(ctx, streamCtx context.Context) error {
	c.setState(StateRetryingFailed)
	c.notify.Warnf("upload stalled; fetching failed files for retry")

	names, err := c.client.GetUnloadedFiles(ctx, c.UploadID())
	if err != nil {
		return fmt.Errorf("failed to fetch the failed-file list: %w", err)
	}

	c.mu.Lock()
	byPath := make(map[string]File, len(c.working))
	for _, f := range c.working {
		byPath[f.RelPath] = f
	}
	c.mu.Unlock()

	retry := make([]File, 0, len(names))
	for _, name := range names {
		f, ok := byPath[name]
		if !ok {
			c.setState(StateUploadFailure)
			return fmt.Errorf("server reported unknown failed file %q", name)
		}
		retry = append(retry, f)
	}

	if len(retry) == 0 {
		return nil
	}
	c.notify.Infof("retrying %d failed file(s)", len(retry))
	go c.dispatchStreams(streamCtx, retry)
	return nil
}

// Decision is the user's choice after a terminal upload failure.
type Decision int

const (
	// DecisionRetryNow re-enters uploading with the last working list.
	DecisionRetryNow Decision = iota

	// DecisionRetryLater closes the session client-side without a fresh
	// retry attempt.
	DecisionRetryLater

	// DecisionMarkCompleted forces server-side completion regardless of
	// outstanding failures.
	DecisionMarkCompleted
)

// Resolve applies a terminal decision to a failed session.
func (c *Controller) Resolve(ctx context.Context, decision Decision) (*Summary, error) {
	switch decision {
	case DecisionRetryNow:
		c.mu.Lock()
		uploadID, files := c.uploadID, c.working
		c.mu.Unlock()
		return c.Run(ctx, uploadID, files)

	case DecisionRetryLater, DecisionMarkCompleted:
		// The session is closed client-side either way; a failed
		// completion call is surfaced but does not reopen it.
		if err := c.client.CompleteUpload(ctx, c.UploadID()); err != nil {
			c.notify.Errorf("failed to mark the upload completed: %v", err)
		}
		c.setState(StateNone)
		c.mu.Lock()
		defer c.mu.Unlock()
		return &Summary{
			UploadID:    c.uploadID,
			TotalFiles:  c.total,
			Uploaded:    c.uploaded,
			Completed:   decision == DecisionMarkCompleted,
			HadFailures: c.hadFailures,
			FinalState:  StateNone,
		}, nil

	default:
		return nil, fmt.Errorf("unknown decision %d", decision)
	}
}
