package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"subtitle-merger/internal/batch"
	"subtitle-merger/internal/config"
	"subtitle-merger/internal/domain"
)

var (
	languageFlag  string
	trackNameFlag string
	suffixFlag    string
	outputDirFlag string
	mkvmergeFlag  string
	verifyFlag    bool
	timeoutFlag   int
	quietFlag     bool
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "submerge [folder...]",
		Short: "Merge subtitle files into videos with mkvmerge",
		Long: `submerge scans each folder for exactly one video and one subtitle
file and muxes them into a new MKV next to the video (or into a
configured output directory). Folders with missing or ambiguous
files are skipped; one bad folder never aborts the batch.`,
		Args:          cobra.MinimumNArgs(1),
		RunE:          runRoot,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Subtitle language tag (default from settings, eng)")
	rootCmd.Flags().StringVar(&trackNameFlag, "track-name", "", "Display name for the subtitle track")
	rootCmd.Flags().StringVar(&suffixFlag, "suffix", "", "Output filename suffix (default _subbed)")
	rootCmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", "", "Write merged files here instead of next to each video")
	rootCmd.Flags().StringVar(&mkvmergeFlag, "mkvmerge", "", "Path to the mkvmerge binary")
	rootCmd.Flags().BoolVar(&verifyFlag, "verify", false, "Probe each video container before merging")
	rootCmd.Flags().IntVar(&timeoutFlag, "timeout", 0, "Per-job timeout in minutes")
	rootCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Only report the final summary")

	rootCmd.AddCommand(NewCheckCmd())
	rootCmd.AddCommand(NewProbeCmd())

	return rootCmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	settings, err := config.NewJSONStore(config.DefaultPath()).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings = applySettingsOverrides(settings, flagOverrides(cmd))

	b := batch.New()
	for _, folder := range args {
		if _, err := b.Add(folder); err != nil {
			logrus.
				WithField("folder", folder).
				WithError(err).
				Warn("Skipping folder")
		}
	}
	if b.Len() == 0 {
		return fmt.Errorf("no usable folders given")
	}

	events := batch.NewEventBus(1000)
	if !quietFlag {
		events.SetNotifier(logEvent)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := batch.NewOrchestrator(b, events, settings).Run(ctx)

	logrus.
		WithField("total", summary.Total).
		WithField("succeeded", summary.Succeeded).
		WithField("failed", summary.Failed).
		WithField("skipped", summary.Skipped).
		WithField("cancelled", summary.Cancelled).
		Infof("Processed %d/%d folders successfully", summary.Succeeded, summary.Total)

	if summary.Failed > 0 {
		return fmt.Errorf("%d folder(s) failed", summary.Failed)
	}
	if summary.Cancelled > 0 {
		return fmt.Errorf("batch cancelled")
	}
	return nil
}

// overrides holds flag values layered on top of persisted settings.
type overrides struct {
	language   string
	trackName  string
	suffix     string
	outputDir  string
	mkvmerge   string
	verify     bool
	verifySet  bool
	timeoutMin int
}

// flagOverrides captures the flags the user actually set.
func flagOverrides(cmd *cobra.Command) overrides {
	return overrides{
		language:   languageFlag,
		trackName:  trackNameFlag,
		suffix:     suffixFlag,
		outputDir:  outputDirFlag,
		mkvmerge:   mkvmergeFlag,
		verify:     verifyFlag,
		verifySet:  cmd.Flags().Changed("verify"),
		timeoutMin: timeoutFlag,
	}
}

// applySettingsOverrides layers non-empty flag values over settings.
func applySettingsOverrides(settings domain.Settings, o overrides) domain.Settings {
	if o.language != "" {
		settings.Language = o.language
	}
	if o.trackName != "" {
		settings.TrackName = o.trackName
	}
	if o.suffix != "" {
		settings.OutputSuffix = o.suffix
	}
	if o.outputDir != "" {
		settings.OutputDir = o.outputDir
	}
	if o.mkvmerge != "" {
		settings.MkvmergePath = o.mkvmerge
	}
	if o.verifySet {
		settings.VerifyInputs = o.verify
	}
	if o.timeoutMin > 0 {
		settings.JobTimeoutMinutes = o.timeoutMin
	}
	return settings
}

// logEvent renders one batch event as a structured log line.
func logEvent(event batch.Event) {
	entry := logrus.WithField("folder", event.FolderPath)

	switch event.Type {
	case batch.EventTypeStatus:
		entry = entry.WithField("status", string(event.Status))
		switch event.Status {
		case domain.JobStatusFailed:
			entry.Error(event.Message)
		case domain.JobStatusMissingFiles, domain.JobStatusCancelled:
			entry.Warn(event.Message)
		default:
			entry.Info(event.Message)
		}
	case batch.EventTypeLog:
		entry.Debug(event.Line)
	case batch.EventTypeSummary:
		// The summary is logged by the caller with full counters.
	}
}
