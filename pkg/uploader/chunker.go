package uploader

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/sparcd-io/cli/internal/api"
)

// runStream uploads one stream's share of the batch, chunk by chunk. The
// next chunk is dispatched only after the previous one's outcome is
// known; the chunk size adapts to the observed per-file transfer time.
func (c *Controller) runStream(ctx context.Context, files []File) {
	count := c.cfg.BaseSplit
	for len(files) > 0 && ctx.Err() == nil {
		n := count
		if n > len(files) {
			n = len(files)
		}
		chunk := files[:n]
		files = files[n:]

		start := c.now()
		if err := c.sendChunk(ctx, chunk); err != nil {
			// Exhausted retries on this chunk. Record it and move on so
			// one bad chunk does not block the rest of the stream.
			c.markFailedUploads(chunk, err)
			continue
		}

		secondsPerFile := c.now().Sub(start).Seconds() / float64(n)
		count = NextChunkCount(c.cfg.BaseSplit, secondsPerFile, lowMemory())
	}
}

// sendChunk performs one multipart upload with a bounded retry budget
// and linear backoff.
func (c *Controller) sendChunk(ctx context.Context, files []File) error {
	chunk := make([]api.ChunkFile, len(files))
	for i, f := range files {
		chunk[i] = api.ChunkFile{Name: f.RelPath, LocalPath: f.LocalPath}
	}

	attempts := c.cfg.ChunkAttempts
	consumed := 0
	for {
		err := c.client.UploadChunk(ctx, c.UploadID(), c.tzOffset, uuid.NewString(), chunk)
		if err == nil {
			return nil
		}
		consumed++
		attempts--
		if attempts <= 0 || ctx.Err() != nil {
			return err
		}
		c.notify.Warnf("chunk of %d file(s) failed, retrying: %v", len(files), err)
		if sleepErr := c.sleep(ctx, c.cfg.ChunkRetryDelay*time.Duration(consumed)); sleepErr != nil {
			return err
		}
	}
}

// NextChunkCount computes how many files the next chunk should carry.
// Slow transfers shrink the chunk toward 1; low memory forces it to 1 so
// multipart bodies stay small.
func NextChunkCount(baseSplit int, secondsPerFile float64, lowMemory bool) int {
	if lowMemory {
		return 1
	}
	next := baseSplit - int(math.Round(secondsPerFile/3.0))
	if next < 1 {
		return 1
	}
	return next
}

// lowMemoryThreshold is the fraction of the runtime memory limit at
// which chunks are forced down to a single file.
const lowMemoryThreshold = 0.8

// lowMemory reports whether heap usage is above the threshold of the
// configured runtime memory limit. Without a limit (GOMEMLIMIT unset)
// there is nothing to measure against and it reports false.
func lowMemory() bool {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) > lowMemoryThreshold*float64(limit)
}
