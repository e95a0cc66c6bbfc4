package diagnostics

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"subtitle-merger/internal/domain"
)

// Checker validates the external merge tool and configured paths.
type Checker struct {
	lookPath   func(string) (string, error)
	version    func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		version:    mkvmergeVersion,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkMergeTool(settings.MkvmergePath),
		c.checkOutputDir(settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkMergeTool verifies mkvmerge is reachable and reports its version.
func (c *Checker) checkMergeTool(configuredPath string) domain.DiagnosticItem {
	tool := strings.TrimSpace(configuredPath)
	if tool == "" {
		tool = "mkvmerge"
	}

	item := domain.DiagnosticItem{
		ID:   "tool_mkvmerge",
		Name: "mkvmerge",
	}

	path, err := c.lookPath(tool)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Merge tool not found: %s", tool)
		item.Hint = "Install MKVToolNix and ensure mkvmerge is on PATH, or set its full path in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	if version, err := c.version(path); err == nil && version != "" {
		item.Message = fmt.Sprintf("Found %s at %s", version, path)
	} else {
		item.Message = fmt.Sprintf("Found at %s", path)
	}
	return item
}

// checkOutputDir validates the alternate output directory when set.
// An empty value means output lands next to each input video, which
// needs no upfront check.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Merged files are written next to each input video."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for merged files."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	version func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		version:    version,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// mkvmergeVersion returns the first line of `mkvmerge --version`.
func mkvmergeVersion(path string) (string, error) {
	cmd := exec.Command(path, "--version")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(stdout.String(), "\n")
	return strings.TrimSpace(line), nil
}

// IsNotExist reports whether an error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
