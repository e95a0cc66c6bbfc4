package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// TrackProperties carries per-track fields from mkvmerge identification.
type TrackProperties struct {
	CodecID       string `json:"codec_id"`
	TrackName     string `json:"track_name"`
	Language      string `json:"language"`
	Number        int    `json:"number"`
	Default       bool   `json:"default_track"`
	Forced        bool   `json:"forced_track"`
	TextSubtitles bool   `json:"text_subtitles"`
}

// Track is one stream inside the identified container.
type Track struct {
	ID         int             `json:"id"`
	Type       string          `json:"type"`
	Codec      string          `json:"codec"`
	Properties TrackProperties `json:"properties"`
}

// Container describes the detected container format.
type Container struct {
	Type       string `json:"type"`
	Recognized bool   `json:"recognized"`
	Supported  bool   `json:"supported"`
}

// Info is the parsed output of `mkvmerge -J <file>`.
type Info struct {
	FileName  string    `json:"file_name"`
	Container Container `json:"container"`
	Tracks    []Track   `json:"tracks"`
}

// VideoTracks returns the video streams in the container.
func (i Info) VideoTracks() []Track {
	return i.tracksOfType("video")
}

// SubtitleTracks returns the subtitle streams already in the container.
func (i Info) SubtitleTracks() []Track {
	return i.tracksOfType("subtitles")
}

func (i Info) tracksOfType(kind string) []Track {
	var out []Track
	for _, track := range i.Tracks {
		if track.Type == kind {
			out = append(out, track)
		}
	}
	return out
}

// identifyResult is an internal process execution response.
type identifyResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (identifyResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (execRunner) Run(ctx context.Context, name string, args ...string) (identifyResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := identifyResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Prober identifies container contents through mkvmerge JSON mode.
type Prober struct {
	mkvmergePath string
	runner       commandRunner
}

// NewProber constructs the production prober.
func NewProber(mkvmergePath string) *Prober {
	if mkvmergePath == "" {
		mkvmergePath = "mkvmerge"
	}
	return &Prober{mkvmergePath: mkvmergePath, runner: execRunner{}}
}

// NewProberForTests constructs a prober with an injectable runner.
func NewProberForTests(mkvmergePath string, runner commandRunner) *Prober {
	p := NewProber(mkvmergePath)
	p.runner = runner
	return p
}

// Identify runs `mkvmerge -J` on the file and parses the report.
// mkvmerge exits 0 or 1 (warnings) for readable files; both carry a
// usable JSON document on stdout.
func (p *Prober) Identify(ctx context.Context, path string) (Info, error) {
	result, runErr := p.runner.Run(ctx, p.mkvmergePath, "-J", path)
	if runErr != nil && result.ExitCode != 1 {
		if result.Stderr != "" {
			return Info{}, fmt.Errorf("identify %s: %w: %s", path, runErr, result.Stderr)
		}
		return Info{}, fmt.Errorf("identify %s: %w", path, runErr)
	}

	var info Info
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return Info{}, fmt.Errorf("parse identification for %s: %w", path, err)
	}

	if !info.Container.Recognized {
		return info, fmt.Errorf("unrecognized container: %s", path)
	}
	return info, nil
}
