package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"subtitle-merger/internal/config"
	"subtitle-merger/internal/diagnostics"
	"subtitle-merger/internal/domain"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify mkvmerge and the configured output directory",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, err := config.NewJSONStore(config.DefaultPath()).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	report := diagnostics.NewChecker().Run(settings)
	for _, item := range report.Items {
		entry := logrus.WithField("check", item.ID)
		if item.Status == domain.DiagnosticStatusPass {
			entry.Info(item.Message)
			continue
		}
		if item.Hint != "" {
			entry = entry.WithField("hint", item.Hint)
		}
		entry.Error(item.Message)
	}

	if report.HasFailures {
		return fmt.Errorf("environment checks failed")
	}
	return nil
}
