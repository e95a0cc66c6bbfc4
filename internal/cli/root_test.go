package cli

import (
	"testing"

	"subtitle-merger/internal/domain"
)

// TestApplySettingsOverridesLayersFlags checks flag precedence.
func TestApplySettingsOverridesLayersFlags(t *testing.T) {
	base := domain.Settings{
		MkvmergePath:      "mkvmerge",
		Language:          "eng",
		OutputSuffix:      "_subbed",
		VerifyInputs:      true,
		JobTimeoutMinutes: 30,
	}

	got := applySettingsOverrides(base, overrides{
		language:   "spa",
		outputDir:  "/merged",
		verify:     false,
		verifySet:  true,
		timeoutMin: 5,
	})

	if got.Language != "spa" {
		t.Fatalf("language = %q, want spa", got.Language)
	}
	if got.OutputDir != "/merged" {
		t.Fatalf("output dir = %q, want /merged", got.OutputDir)
	}
	if got.VerifyInputs {
		t.Fatal("verify should be overridden to false")
	}
	if got.JobTimeoutMinutes != 5 {
		t.Fatalf("timeout = %d, want 5", got.JobTimeoutMinutes)
	}
	if got.OutputSuffix != "_subbed" {
		t.Fatalf("suffix = %q, want untouched default", got.OutputSuffix)
	}
	if got.MkvmergePath != "mkvmerge" {
		t.Fatalf("mkvmerge path = %q, want untouched default", got.MkvmergePath)
	}
}

// TestApplySettingsOverridesUnsetFlagsKeepSettings checks the no-op path.
func TestApplySettingsOverridesUnsetFlagsKeepSettings(t *testing.T) {
	base := domain.Settings{
		Language:          "fre",
		VerifyInputs:      true,
		JobTimeoutMinutes: 30,
	}

	got := applySettingsOverrides(base, overrides{})
	if got.Language != "fre" || !got.VerifyInputs || got.JobTimeoutMinutes != 30 {
		t.Fatalf("settings changed unexpectedly: %+v", got)
	}
}
