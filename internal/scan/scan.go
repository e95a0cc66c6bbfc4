package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reason identifies why a folder failed video/subtitle resolution.
type Reason string

const (
	ReasonNoVideo           Reason = "no video found"
	ReasonNoSubtitle        Reason = "no subtitle found"
	ReasonMultipleVideos    Reason = "multiple videos found"
	ReasonMultipleSubtitles Reason = "multiple subtitles found"
	ReasonUnreadableFolder  Reason = "cannot read folder"
)

// Error reports a folder that cannot be resolved to a merge pair.
type Error struct {
	Folder string
	Reason Reason
	Err    error
}

// Error formats the resolution failure for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Folder, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Folder, e.Reason)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Pair is a resolved video/subtitle file pair inside one folder.
type Pair struct {
	VideoPath    string
	SubtitlePath string
}

// Scanner classifies a folder's direct children by extension.
// It never guesses: zero or multiple candidates in either category
// is a resolution failure, so the wrong pair is never merged.
type Scanner struct {
	videoExts    map[string]struct{}
	subtitleExts map[string]struct{}
	readDir      func(string) ([]os.DirEntry, error)
}

// NewScanner builds a scanner for the given extension sets.
// Extensions are matched case-insensitively and include the leading dot.
func NewScanner(videoExts, subtitleExts []string) *Scanner {
	return &Scanner{
		videoExts:    extensionSet(videoExts),
		subtitleExts: extensionSet(subtitleExts),
		readDir:      os.ReadDir,
	}
}

// NewScannerForTests builds a scanner with an injectable directory reader.
func NewScannerForTests(videoExts, subtitleExts []string, readDir func(string) ([]os.DirEntry, error)) *Scanner {
	s := NewScanner(videoExts, subtitleExts)
	s.readDir = readDir
	return s
}

// Scan inspects the folder's direct contents, non-recursively, and
// returns the single video/subtitle pair it contains.
func (s *Scanner) Scan(dir string) (Pair, error) {
	entries, err := s.readDir(dir)
	if err != nil {
		return Pair{}, &Error{Folder: dir, Reason: ReasonUnreadableFolder, Err: err}
	}

	var videos, subtitles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := s.videoExts[ext]; ok {
			videos = append(videos, filepath.Join(dir, entry.Name()))
			continue
		}
		if _, ok := s.subtitleExts[ext]; ok {
			subtitles = append(subtitles, filepath.Join(dir, entry.Name()))
		}
	}

	switch {
	case len(videos) == 0:
		return Pair{}, &Error{Folder: dir, Reason: ReasonNoVideo}
	case len(videos) > 1:
		return Pair{}, &Error{Folder: dir, Reason: ReasonMultipleVideos}
	case len(subtitles) == 0:
		return Pair{}, &Error{Folder: dir, Reason: ReasonNoSubtitle}
	case len(subtitles) > 1:
		return Pair{}, &Error{Folder: dir, Reason: ReasonMultipleSubtitles}
	}

	return Pair{VideoPath: videos[0], SubtitlePath: subtitles[0]}, nil
}

// extensionSet normalizes extensions into a lowercase lookup set.
func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
