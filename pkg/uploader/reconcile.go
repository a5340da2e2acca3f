package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/sparcd-io/cli/internal/api"
)

// Reconciliation is the outcome of checking the server for an existing
// upload session under the batch's folder path.
type Reconciliation struct {
	IsNew bool

	// Set when an existing session was found.
	UploadID     string
	PendingFiles []File
	Elapsed      time.Duration
}

// Reconcile asks the server whether an upload already exists at path and
// computes the files still pending. The call is not retried; a failure is
// surfaced once and the caller must re-initiate.
func Reconcile(ctx context.Context, client *api.Client, path string, files []File) (*Reconciliation, error) {
	prev, err := client.CheckPreviousUpload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to check for a previous upload: %w", err)
	}

	if !prev.Exists {
		return &Reconciliation{IsNew: true, PendingFiles: files}, nil
	}

	return &Reconciliation{
		UploadID:     prev.ID.String(),
		PendingFiles: PendingFiles(files, prev.UploadedFiles),
		Elapsed:      time.Duration(prev.ElapsedSec * float64(time.Second)),
	}, nil
}

// PendingFiles returns files whose relative path is not in uploaded.
// Matching is exact and case-sensitive.
func PendingFiles(files []File, uploaded []string) []File {
	done := make(map[string]struct{}, len(uploaded))
	for _, name := range uploaded {
		done[name] = struct{}{}
	}

	pending := make([]File, 0, len(files))
	for _, f := range files {
		if _, ok := done[f.RelPath]; !ok {
			pending = append(pending, f)
		}
	}
	return pending
}

// Resolution is the user's choice for a recovered session.
type Resolution int

const (
	// ResolutionContinue uploads only the pending files against the
	// existing upload id. No confirmation required.
	ResolutionContinue Resolution = iota

	// ResolutionRestart resets the server-side progress and re-uploads
	// the full file list under the same session.
	ResolutionRestart

	// ResolutionCreateNew completes the old session and registers a
	// brand-new one for the full file list.
	ResolutionCreateNew

	// ResolutionAbandon completes the old session without uploading.
	// Physical cleanup of staged files is not guaranteed and needs
	// administrator follow-up.
	ResolutionAbandon
)

func (r Resolution) String() string {
	switch r {
	case ResolutionContinue:
		return "continue"
	case ResolutionRestart:
		return "restart"
	case ResolutionCreateNew:
		return "create-new"
	case ResolutionAbandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// Destructive reports whether the resolution takes an irreversible
// server-side step and therefore requires explicit confirmation.
func (r Resolution) Destructive() bool {
	return r != ResolutionContinue
}

// RelPaths extracts the relative paths of a file list, preserving order.
func RelPaths(files []File) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.RelPath
	}
	return paths
}
