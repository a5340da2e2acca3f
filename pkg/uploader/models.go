package uploader

import "time"

// Kind selects which family of files an upload accepts.
type Kind string

const (
	KindImage Kind = "image"
	KindMovie Kind = "movie"
)

// File is one file belonging to a batch.
type File struct {
	LocalPath string // absolute path on disk
	RelPath   string // folder-relative path, forward slashes, sent to the server
	Size      int64
	MimeType  string
}

// State is the session-level upload state.
type State int32

const (
	StateNone State = iota
	StateUploading
	StateHaveFailed
	StateRetryingFailed
	StateUploadFailure
	StateError
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateUploading:
		return "uploading"
	case StateHaveFailed:
		return "haveFailed"
	case StateRetryingFailed:
		return "retryingFailed"
	case StateUploadFailure:
		return "uploadFailure"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Tuning constants for the upload pipeline.
const (
	// MaxStreams bounds the number of concurrent chunk streams.
	MaxStreams = 8

	// BaseSplit is the starting number of files per chunk; each stream
	// adapts downward from here based on observed throughput.
	BaseSplit = 5

	// ChunkAttempts is the per-chunk retry budget.
	ChunkAttempts = 3

	// ChunkRetryDelay scales linearly with the attempts already consumed.
	ChunkRetryDelay = 5 * time.Second

	// PollInterval is the cadence of progress polling.
	PollInterval = 2 * time.Second

	// PollAttempts is the transport retry budget while polling.
	PollAttempts = 6

	// PollRetryDelay scales linearly with the attempt number.
	PollRetryDelay = 7 * time.Second

	// StallWarnAfter is how long the uploaded count may sit unchanged
	// before the session is flagged as having failures.
	StallWarnAfter = 60 * time.Second

	// StallRetryAfter is how long a stall may persist before the failed
	// files are actively re-fetched and resubmitted.
	StallRetryAfter = 180 * time.Second

	// MaxFileSize is the default per-file size cap.
	MaxFileSize = 4 << 30

	// MinCommentLength is the shortest acceptable upload comment.
	MinCommentLength = 3
)

// Notifier is the channel user-facing messages are routed through.
type Notifier interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Summary describes the outcome of one upload run.
type Summary struct {
	UploadID   string
	TotalFiles int
	Uploaded   int
	Completed  bool

	// HadFailures reports that at least one chunk exhausted its retry
	// budget along the way, even if the batch converged afterwards.
	HadFailures bool

	FinalState State
	Elapsed    time.Duration
}
