package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparcd-io/cli/pkg"
	"github.com/sparcd-io/cli/pkg/model"
	"github.com/sparcd-io/cli/pkg/uploader"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <folder>",
	Short: "Upload a folder of camera-trap files",
	Long: `Upload a folder of camera-trap images or movies into the server's
sandbox staging area.

If an earlier upload of the same folder was interrupted, you are offered
to continue it, restart it, replace it with a new upload, or abandon it.

Examples:
  sparcd upload SiteA/2024 --collection=desert-cams --location=LOC12 --comment="March pull"
  sparcd upload clips/ --kind=movie --collection=desert-cams --location=LOC12 --comment="March clips"`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringP("collection", "c", "", "Collection to upload into (required)")
	uploadCmd.Flags().StringP("location", "l", "", "Location identifier for the batch (required)")
	uploadCmd.Flags().StringP("comment", "m", "", "Comment describing the batch (required)")
	uploadCmd.Flags().StringP("kind", "k", string(uploader.KindImage), "Upload kind: image or movie")
	uploadCmd.Flags().String("timezone", "", "IANA timezone of the capture site (default: local)")
	uploadCmd.Flags().Int("streams", uploader.MaxStreams, "Maximum concurrent chunk streams")
	uploadCmd.Flags().BoolP("yes", "y", false, "Continue interrupted uploads without prompting")
}

func runUpload(cmd *cobra.Command, args []string) error {
	collection, _ := cmd.Flags().GetString("collection")
	location, _ := cmd.Flags().GetString("location")
	comment, _ := cmd.Flags().GetString("comment")
	kind, _ := cmd.Flags().GetString("kind")
	timezone, _ := cmd.Flags().GetString("timezone")
	streams, _ := cmd.Flags().GetInt("streams")
	assumeYes, _ := cmd.Flags().GetBool("yes")

	if kind != string(uploader.KindImage) && kind != string(uploader.KindMovie) {
		return fmt.Errorf("unknown kind %q (want image or movie)", kind)
	}

	ctrl, err := newCtrl()
	if err != nil {
		return err
	}
	defer ctrl.DB.Close()

	account, err := attachClient(ctrl)
	if err != nil {
		return err
	}

	sessionCfg := uploader.DefaultConfig(timezone)
	sessionCfg.Streams = streams

	progress := uploader.NewProgressTracker(0)
	sessionCfg.OnProgress = func(uploaded, total int, state uploader.State) {
		progress.Update(uploaded, total, state)
		fmt.Printf("\r%s", progress.Render())
	}

	opts := pkg.UploadOptions{
		Config: model.UploadConfig{
			Collection: collection,
			Location:   location,
			Comment:    comment,
			Timezone:   timezone,
			Streams:    streams,
			AssumeYes:  assumeYes,
		},
		Kind:             uploader.Kind(kind),
		Session:          sessionCfg,
		ChooseResolution: chooseResolution(assumeYes),
		ChooseDecision:   chooseDecision,
	}

	summary, err := ctrl.Upload(context.Background(), *account, args[0], opts)
	fmt.Println()
	if err != nil {
		return err
	}
	if summary != nil {
		printSummary(summary)
	}
	return nil
}

// chooseResolution builds the interactive resolution prompt for a
// recovered session. Destructive resolutions require confirmation;
// continue does not. With --yes the upload just continues.
func chooseResolution(assumeYes bool) pkg.ResolutionChooser {
	return func(r *uploader.Reconciliation) (uploader.Resolution, bool) {
		if assumeYes {
			return uploader.ResolutionContinue, true
		}

		answer := choose(
			fmt.Sprintf("An interrupted upload exists for this folder (%d file(s) remaining).", len(r.PendingFiles)),
			[]promptOption{
				{"c", "continue the interrupted upload"},
				{"r", "restart it from the beginning"},
				{"n", "replace it with a brand-new upload"},
				{"a", "abandon it without uploading"},
				{"q", "quit"},
			},
			"c",
		)

		var resolution uploader.Resolution
		switch answer {
		case "c":
			return uploader.ResolutionContinue, true
		case "r":
			resolution = uploader.ResolutionRestart
		case "n":
			resolution = uploader.ResolutionCreateNew
		case "a":
			resolution = uploader.ResolutionAbandon
		default:
			return 0, false
		}

		if resolution.Destructive() &&
			!confirm(fmt.Sprintf("'%s' cannot be undone on the server. Proceed?", resolution)) {
			return 0, false
		}
		return resolution, true
	}
}

// chooseDecision prompts for what to do after a terminal failure.
func chooseDecision(state uploader.State) (uploader.Decision, bool) {
	answer := choose(
		fmt.Sprintf("The upload could not be completed (state: %s).", state),
		[]promptOption{
			{"r", "retry now"},
			{"l", "retry later (close for now)"},
			{"m", "mark the upload completed anyway"},
			{"q", "quit"},
		},
		"r",
	)
	switch answer {
	case "r":
		return uploader.DecisionRetryNow, true
	case "l":
		return uploader.DecisionRetryLater, true
	case "m":
		return uploader.DecisionMarkCompleted, true
	default:
		return 0, false
	}
}

func printSummary(summary *uploader.Summary) {
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("Upload id: %s\n", summary.UploadID)
	fmt.Printf("Files uploaded: %d of %d\n", summary.Uploaded, summary.TotalFiles)
	fmt.Printf("Elapsed: %s\n", summary.Elapsed.Round(time.Second))
	if summary.Completed {
		if summary.HadFailures {
			fmt.Println("Status: completed (some files needed a retry pass)")
		} else {
			fmt.Println("Status: completed")
		}
	} else {
		fmt.Printf("Status: closed without full completion (state: %s)\n", summary.FinalState)
	}
}
