package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparcd-io/cli/pkg"
	"github.com/sparcd-io/cli/pkg/model"
	"github.com/sparcd-io/cli/pkg/uploader"
	"github.com/sparcd-io/cli/pkg/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <staging-folder>",
	Short: "Watch a staging folder and upload batches as they arrive",
	Long: `Watch a staging folder for new camera-trap batches. Every first-level
subfolder is treated as one batch; once a batch stops changing for the
debounce window it is uploaded through the normal pipeline. Interrupted
uploads of a batch are continued automatically.

Examples:
  sparcd watch ~/staging --collection=desert-cams --location=LOC12 --comment="auto import"
  sparcd watch ~/staging --collection=desert-cams --location=LOC12 --comment="auto import" --debounce=10000`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("collection", "c", "", "Collection to upload into (required)")
	watchCmd.Flags().StringP("location", "l", "", "Location identifier for the batches (required)")
	watchCmd.Flags().StringP("comment", "m", "", "Comment applied to every batch (required)")
	watchCmd.Flags().StringP("kind", "k", string(uploader.KindImage), "Upload kind: image or movie")
	watchCmd.Flags().String("timezone", "", "IANA timezone of the capture site (default: local)")
	watchCmd.Flags().Int("debounce", 5000, "Batch quiesce window in milliseconds")
}

func runWatch(cmd *cobra.Command, args []string) error {
	collection, _ := cmd.Flags().GetString("collection")
	location, _ := cmd.Flags().GetString("location")
	comment, _ := cmd.Flags().GetString("comment")
	kind, _ := cmd.Flags().GetString("kind")
	timezone, _ := cmd.Flags().GetString("timezone")
	debounceMs, _ := cmd.Flags().GetInt("debounce")

	ctrl, err := newCtrl()
	if err != nil {
		return err
	}
	defer ctrl.DB.Close()

	account, err := attachClient(ctrl)
	if err != nil {
		return err
	}

	opts := pkg.UploadOptions{
		Config: model.UploadConfig{
			Collection: collection,
			Location:   location,
			Comment:    comment,
			Timezone:   timezone,
			AssumeYes:  true,
		},
		Kind:    uploader.Kind(kind),
		Session: uploader.DefaultConfig(timezone),
		// Unattended: interrupted batches are continued, terminal
		// failures are left for a later run.
		ChooseResolution: func(*uploader.Reconciliation) (uploader.Resolution, bool) {
			return uploader.ResolutionContinue, true
		},
		ChooseDecision: func(uploader.State) (uploader.Decision, bool) {
			return uploader.DecisionRetryLater, true
		},
	}

	onBatch := func(folder string) {
		ctrl.Notify.Infof("batch %s is quiet, starting upload", folder)
		summary, err := ctrl.Upload(context.Background(), *account, folder, opts)
		if err != nil {
			ctrl.Notify.Errorf("upload of %s failed: %v", folder, err)
			return
		}
		if summary != nil && summary.Completed {
			ctrl.Notify.Infof("batch %s uploaded (%d file(s))", folder, summary.Uploaded)
		}
	}

	w, err := watcher.New(args[0], time.Duration(debounceMs)*time.Millisecond, ctrl.Notify, onBatch)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	fmt.Printf("Watching %s (debounce %dms). Press Ctrl+C to stop.\n", args[0], debounceMs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down watcher...")
	return nil
}
