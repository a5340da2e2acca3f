package pkg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sparcd-io/cli/internal/api"
	"github.com/sparcd-io/cli/pkg/model"
	"github.com/sparcd-io/cli/pkg/uploader"
)

// ResolutionChooser picks how a recovered session is resolved. The
// second return value is false when the user cancels. Implementations
// are responsible for the confirm step on destructive resolutions.
type ResolutionChooser func(r *uploader.Reconciliation) (uploader.Resolution, bool)

// DecisionChooser picks what to do after a terminal upload failure.
type DecisionChooser func(s uploader.State) (uploader.Decision, bool)

// UploadOptions bundles everything one upload run needs beyond the
// folder itself.
type UploadOptions struct {
	Config  model.UploadConfig
	Kind    uploader.Kind
	Session uploader.Config

	ChooseResolution ResolutionChooser
	ChooseDecision   DecisionChooser
}

// Upload runs the full pipeline for one folder: discovery, filtering,
// reconciliation against the server, session registration or recovery,
// chunked transfer, and completion.
func (c *Ctrl) Upload(ctx context.Context, account model.Account, folder string, opts UploadOptions) (*uploader.Summary, error) {
	// One submission at a time; rapid re-invocation during validation
	// must not start a second pipeline.
	if !c.uploadInFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("an upload is already being prepared")
	}
	defer c.uploadInFlight.Store(false)

	if err := validateConfig(opts.Config); err != nil {
		return nil, err
	}

	files, err := uploader.DiscoverFolder(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		c.Notify.Infof("no files found under %s", folder)
		return nil, nil
	}

	policy := uploader.DefaultPolicy(opts.Kind)
	accepted, rejected := uploader.Filter(files, policy)
	if rejected.UnknownType > 0 {
		c.Notify.Infof("%d file(s) skipped: not a known %s type", rejected.UnknownType, opts.Kind)
	}
	if rejected.TooLarge > 0 {
		c.Notify.Infof("%d file(s) skipped: too large", rejected.TooLarge)
	}
	if len(accepted) == 0 {
		c.Notify.Infof("no acceptable %s files found under %s", opts.Kind, folder)
		return nil, nil
	}

	path, err := uploader.CommonRelPath(accepted)
	if err != nil {
		return nil, fmt.Errorf("cannot derive the batch folder path: %w", err)
	}

	accountKey := account.AccountKey()
	fingerprint := uploader.BatchFingerprint(accepted)

	recon, err := uploader.Reconcile(ctx, c.Client, path, accepted)
	if err != nil {
		c.Notify.Errorf("could not check for a previous upload: %v", err)
		return nil, err
	}

	var uploadID string
	working := accepted
	resolution := model.ResolutionNew

	if recon.IsNew {
		uploadID, err = c.registerUpload(ctx, path, accepted, opts.Config)
		if err != nil {
			return nil, err
		}
	} else {
		c.Notify.Infof("found an interrupted upload for %s, started %s ago: %d of %d file(s) remaining",
			path, recon.Elapsed.Round(time.Second), len(recon.PendingFiles), len(accepted))
		if record, recErr := c.GetSessionRecord(accountKey, path); recErr == nil && record != nil &&
			record.Fingerprint != "" && record.Fingerprint != fingerprint {
			c.Notify.Warnf("the folder's contents changed since the interrupted upload")
		}

		choice, ok := opts.ChooseResolution(recon)
		if !ok {
			c.Notify.Infof("upload cancelled")
			return nil, nil
		}

		switch choice {
		case uploader.ResolutionContinue:
			uploadID = recon.UploadID
			working = recon.PendingFiles
			resolution = model.ResolutionContinue

		case uploader.ResolutionRestart:
			uploadID, err = c.Client.ResetUpload(ctx, recon.UploadID, uploader.RelPaths(accepted))
			if err != nil {
				return nil, fmt.Errorf("failed to restart the upload: %w", err)
			}
			resolution = model.ResolutionRestart

		case uploader.ResolutionCreateNew:
			if err := c.Client.CompleteUpload(ctx, recon.UploadID); err != nil {
				return nil, fmt.Errorf("failed to close the previous upload: %w", err)
			}
			uploadID, err = c.registerUpload(ctx, path, accepted, opts.Config)
			if err != nil {
				return nil, err
			}
			resolution = model.ResolutionReplace

		case uploader.ResolutionAbandon:
			if err := c.Client.AbandonUpload(ctx, recon.UploadID); err != nil {
				return nil, fmt.Errorf("failed to abandon the upload: %w", err)
			}
			c.Notify.Warnf("upload abandoned; already-staged files are not cleaned up automatically and need administrator follow-up")
			c.saveRecord(accountKey, path, recon.UploadID, fingerprint, len(accepted), model.ResolutionAbandon, true)
			return nil, nil
		}
	}

	c.saveRecord(accountKey, path, uploadID, fingerprint, len(accepted), resolution, false)

	controller := uploader.NewController(c.Client, c.Notify, opts.Session)
	summary, err := controller.Run(ctx, uploadID, working)

	for err != nil && summary != nil &&
		(summary.FinalState == uploader.StateUploadFailure || summary.FinalState == uploader.StateError) {
		if opts.ChooseDecision == nil {
			return summary, err
		}
		decision, ok := opts.ChooseDecision(summary.FinalState)
		if !ok {
			return summary, err
		}
		summary, err = controller.Resolve(ctx, decision)
	}
	if err != nil {
		return summary, err
	}

	if summary.Completed {
		c.saveRecord(accountKey, path, uploadID, fingerprint, len(accepted), resolution, true)
	}
	return summary, nil
}

// registerUpload registers a new session for the batch.
func (c *Ctrl) registerUpload(ctx context.Context, path string, files []uploader.File, cfg model.UploadConfig) (string, error) {
	ts := uploader.EarliestCaptureTime(files, time.Now())
	uploadID, err := c.Client.RegisterUpload(ctx, uploadRequest(path, files, cfg, ts))
	if err != nil {
		return "", fmt.Errorf("failed to register the upload: %w", err)
	}
	c.Notify.Infof("registered upload %s for %d file(s)", uploadID, len(files))
	return uploadID, nil
}

func (c *Ctrl) saveRecord(accountKey, path, uploadID, fingerprint string, fileCount int, resolution model.SessionResolution, completed bool) {
	record := &model.SessionRecord{
		Path:        path,
		UploadID:    uploadID,
		Fingerprint: fingerprint,
		FileCount:   fileCount,
		Resolution:  resolution,
		StartedAt:   time.Now().Unix(),
		Completed:   completed,
	}
	if err := c.SaveSessionRecord(accountKey, record); err != nil {
		c.Notify.Warnf("failed to save the local session record: %v", err)
	}
}

func validateConfig(cfg model.UploadConfig) error {
	if cfg.Collection == "" {
		return fmt.Errorf("a collection must be specified")
	}
	if cfg.Location == "" {
		return fmt.Errorf("a location must be specified")
	}
	if len(strings.TrimSpace(cfg.Comment)) < uploader.MinCommentLength {
		return fmt.Errorf("the comment must be at least %d characters", uploader.MinCommentLength)
	}
	return nil
}

func uploadRequest(path string, files []uploader.File, cfg model.UploadConfig, ts time.Time) api.RegisterUploadRequest {
	return api.RegisterUploadRequest{
		Collection: cfg.Collection,
		Location:   cfg.Location,
		Path:       path,
		Comment:    cfg.Comment,
		Files:      uploader.RelPaths(files),
		Timestamp:  ts.Format(time.RFC3339),
		Timezone:   cfg.Timezone,
	}
}
