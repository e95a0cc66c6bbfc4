package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"subtitle-merger/internal/config"
	"subtitle-merger/internal/probe"
)

// NewProbeCmd creates the probe subcommand.
func NewProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Identify a media container and list its tracks as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	settings, err := config.NewJSONStore(config.DefaultPath()).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	info, err := probe.NewProber(settings.MkvmergePath).Identify(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("probe %s: %w", args[0], err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode probe result: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
