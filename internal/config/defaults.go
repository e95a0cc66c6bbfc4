package config

import "subtitle-merger/internal/domain"

// DefaultSettings returns baseline configuration for first launch.
// mkvmerge is resolved via PATH unless the user points at an install.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		MkvmergePath:       "mkvmerge",
		VideoExtensions:    []string{".mp4", ".mkv"},
		SubtitleExtensions: []string{".srt"},
		OutputSuffix:       "_subbed",
		Language:           "eng",
		JobTimeoutMinutes:  30,
	}
}
