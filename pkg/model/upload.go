package model

// SessionResolution records how a recovered upload session was resolved.
type SessionResolution string

const (
	ResolutionNew      SessionResolution = "new"
	ResolutionContinue SessionResolution = "continue"
	ResolutionRestart  SessionResolution = "restart"
	ResolutionReplace  SessionResolution = "replace"
	ResolutionAbandon  SessionResolution = "abandon"
)

// SessionRecord is the locally persisted bookkeeping for one upload
// session, keyed by the batch's relative folder path. The server remains
// the source of truth for progress; this record only lets the CLI warn
// about local changes and show history.
type SessionRecord struct {
	Path        string            `json:"path"`
	UploadID    string            `json:"uploadID"`
	Fingerprint string            `json:"fingerprint"`
	FileCount   int               `json:"fileCount"`
	Resolution  SessionResolution `json:"resolution"`
	StartedAt   int64             `json:"startedAt"` // Unix timestamp (seconds)
	UpdatedAt   int64             `json:"updatedAt"`
	Completed   bool              `json:"completed"`
}

// UploadConfig contains configuration for an upload run.
type UploadConfig struct {
	Collection string
	Location   string
	Comment    string
	Timezone   string // IANA name, e.g. "America/Phoenix"
	Streams    int    // Maximum concurrent chunk streams
	AssumeYes  bool   // Skip confirmation prompts
}
