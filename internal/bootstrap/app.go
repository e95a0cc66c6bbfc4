package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"subtitle-merger/internal/batch"
	"subtitle-merger/internal/config"
	"subtitle-merger/internal/diagnostics"
	"subtitle-merger/internal/domain"
	"subtitle-merger/internal/probe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrBatchRunning is returned when an operation needs an idle batch.
var ErrBatchRunning = errors.New("a batch is already running")

// ErrNoRunningBatch is returned when cancellation finds nothing to stop.
var ErrNoRunningBatch = errors.New("no batch is running")

// batchRunner isolates batch execution behind an interface.
type batchRunner interface {
	Run(ctx context.Context) domain.BatchSummary
}

// App wires configuration, the job batch, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Batch       *batch.Batch
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	events      *batch.EventBus
	runtimeCtx  context.Context
	lastSummary *domain.BatchSummary

	newRunner func(*batch.Batch, *batch.EventBus, domain.Settings) batchRunner
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Batch:       batch.New(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      batch.NewEventBus(1000),
		newRunner: func(b *batch.Batch, events *batch.EventBus, settings domain.Settings) batchRunner {
			return batch.NewOrchestrator(b, events, settings)
		},
	}
	app.events.SetNotifier(app.emitEvent)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Subtitle Merger",
		Width:       1080,
		Height:      740,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop: true,
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context and registers the folder drop handler.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	wailsruntime.OnFileDrop(ctx, func(x, y int, paths []string) {
		added, err := a.AddFolders(paths)
		if err != nil || len(added) > 0 {
			a.emitQueueChanged()
		}
	})
}

// AddFolders queues dropped or picked paths as pending jobs. File paths
// are resolved to their containing folder. Duplicates are skipped, not
// treated as errors, so a sloppy multi-drop still queues the rest.
func (a *App) AddFolders(paths []string) ([]domain.FolderJob, error) {
	added := make([]domain.FolderJob, 0, len(paths))
	for _, path := range paths {
		folder := strings.TrimSpace(path)
		if folder == "" {
			continue
		}
		if info, err := os.Stat(folder); err == nil && !info.IsDir() {
			folder = filepath.Dir(folder)
		}

		job, err := a.Batch.Add(folder)
		if err != nil {
			if errors.Is(err, batch.ErrDuplicateFolder) {
				continue
			}
			return added, err
		}
		added = append(added, job)
	}
	return added, nil
}

// RemoveFolder drops one pending job from the queue.
func (a *App) RemoveFolder(folder string) error {
	if err := a.Batch.Remove(folder); err != nil {
		return err
	}
	a.emitQueueChanged()
	return nil
}

// ClearBatch empties the queue. Refused while a batch is running.
func (a *App) ClearBatch() error {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if running {
		return ErrBatchRunning
	}

	a.Batch.Clear()
	a.mu.Lock()
	a.lastSummary = nil
	a.mu.Unlock()
	a.emitQueueChanged()
	return nil
}

// ListJobs returns snapshots of every queued job in submission order.
func (a *App) ListJobs() []domain.FolderJob {
	return a.Batch.Jobs()
}

// StartBatch runs all pending jobs asynchronously. Only one batch may
// run at a time; jobs left pending by a cancelled run are picked up by
// the next call.
func (a *App) StartBatch() error {
	settings, err := a.Store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrBatchRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.running = true
	a.cancel = cancel
	a.Settings = settings
	a.mu.Unlock()

	runner := a.newRunner(a.Batch, a.events, settings)

	go func() {
		summary := runner.Run(ctx)
		cancel()

		a.mu.Lock()
		a.running = false
		a.cancel = nil
		a.lastSummary = &summary
		a.mu.Unlock()
	}()
	return nil
}

// CancelBatch stops the running batch. The in-flight merge is
// terminated; jobs that have not started stay pending.
func (a *App) CancelBatch() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel == nil {
		return ErrNoRunningBatch
	}
	cancel()
	return nil
}

// IsRunning reports whether a batch is currently executing.
func (a *App) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// GetSummary returns the result of the most recent completed batch.
func (a *App) GetSummary() *domain.BatchSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSummary
}

// BatchEvents returns all events with sequence greater than sinceSeq.
func (a *App) BatchEvents(sinceSeq int64) []batch.Event {
	return a.events.Since(sinceSeq)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickFolder opens a native directory picker for queueing a job folder.
func (a *App) PickFolder() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select folder with video and subtitles",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for merged output.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// ProbeVideo inspects a container with mkvmerge and returns its tracks.
func (a *App) ProbeVideo(path string) (probe.Info, error) {
	a.mu.Lock()
	tool := a.Settings.MkvmergePath
	a.mu.Unlock()

	return probe.NewProber(tool).Identify(context.Background(), path)
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// emitEvent pushes one batch event to the UI when the runtime is live.
func (a *App) emitEvent(event batch.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "batch:event", event)
	}
}

// emitQueueChanged signals the UI to re-read the job list.
func (a *App) emitQueueChanged() {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "batch:queue", a.Batch.Jobs())
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and restores required defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.MkvmergePath = strings.TrimSpace(settings.MkvmergePath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.OutputSuffix = strings.TrimSpace(settings.OutputSuffix)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.TrackName = strings.TrimSpace(settings.TrackName)

	if settings.MkvmergePath == "" {
		settings.MkvmergePath = defaults.MkvmergePath
	}
	if settings.OutputSuffix == "" {
		settings.OutputSuffix = defaults.OutputSuffix
	}
	if settings.Language == "" {
		settings.Language = defaults.Language
	}
	if len(settings.VideoExtensions) == 0 {
		settings.VideoExtensions = defaults.VideoExtensions
	}
	if len(settings.SubtitleExtensions) == 0 {
		settings.SubtitleExtensions = defaults.SubtitleExtensions
	}
	if settings.JobTimeoutMinutes <= 0 {
		settings.JobTimeoutMinutes = defaults.JobTimeoutMinutes
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
