package merge

import (
	"path/filepath"
	"strings"
)

const fallbackSuffix = "_subbed"

// Command is an immutable mkvmerge invocation derived from one
// resolved folder job. It is recomputed, never edited.
type Command struct {
	Tool       string
	Args       []string
	OutputPath string
}

// Options control tool location, track tagging, and output naming.
type Options struct {
	MkvmergePath string
	OutputSuffix string
	OutputDir    string
	Language     string
	TrackName    string
}

// BuildCommand maps a video/subtitle pair to a merge command.
// Pure: no filesystem access, fully determined by its inputs.
func BuildCommand(videoPath, subtitlePath string, opts Options) Command {
	tool := opts.MkvmergePath
	if tool == "" {
		tool = "mkvmerge"
	}

	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = "eng"
	}

	outputPath := OutputPath(videoPath, opts)

	args := []string{"-o", outputPath, videoPath, "--language", "0:" + language}
	if name := strings.TrimSpace(opts.TrackName); name != "" {
		args = append(args, "--track-name", "0:"+name)
	}
	args = append(args, subtitlePath)

	return Command{
		Tool:       tool,
		Args:       args,
		OutputPath: outputPath,
	}
}

// OutputPath derives the merged file path from the video's base name.
// The result always differs from the input so the source is never
// overwritten, even for .mkv inputs with an empty suffix.
func OutputPath(videoPath string, opts Options) string {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(videoPath)
	}

	base := filepath.Base(videoPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	out := filepath.Join(dir, stem+opts.OutputSuffix+".mkv")
	if out == videoPath {
		out = filepath.Join(dir, stem+fallbackSuffix+".mkv")
	}
	return out
}
