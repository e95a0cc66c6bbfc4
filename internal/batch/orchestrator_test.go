package batch

import (
	"context"
	"errors"
	"testing"

	"subtitle-merger/internal/domain"
	"subtitle-merger/internal/merge"
	"subtitle-merger/internal/probe"
	"subtitle-merger/internal/scan"
)

// fakeScanner resolves folders from a preset map.
type fakeScanner struct {
	pairs map[string]scan.Pair
	errs  map[string]error
}

// Scan returns the configured pair or error for the folder.
func (f *fakeScanner) Scan(dir string) (scan.Pair, error) {
	if err, ok := f.errs[dir]; ok {
		return scan.Pair{}, err
	}
	if pair, ok := f.pairs[dir]; ok {
		return pair, nil
	}
	return scan.Pair{}, &scan.Error{Folder: dir, Reason: scan.ReasonNoVideo}
}

// fakeMergeRunner simulates merge execution per video path.
type fakeMergeRunner struct {
	run func(ctx context.Context, cmd merge.Command, onLine func(string)) error
}

// Run delegates to injected behavior.
func (f *fakeMergeRunner) Run(ctx context.Context, cmd merge.Command, onLine func(string)) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx, cmd, onLine)
}

// fakeProber simulates container identification.
type fakeProber struct {
	identify func(ctx context.Context, path string) (probe.Info, error)
}

// Identify delegates to injected behavior.
func (f *fakeProber) Identify(ctx context.Context, path string) (probe.Info, error) {
	if f.identify == nil {
		return probe.Info{}, nil
	}
	return f.identify(ctx, path)
}

var testOpts = merge.Options{
	MkvmergePath: "mkvmerge",
	OutputSuffix: "_subbed",
	Language:     "eng",
}

// TestOrchestratorEndToEndMixedBatch covers the three-folder scenario:
// a valid pair, a folder without subtitles, and a folder with two
// subtitles. Only the valid pair reaches the merge stage.
func TestOrchestratorEndToEndMixedBatch(t *testing.T) {
	b := New()
	for _, folder := range []string{"/jobs/folderA", "/jobs/folderB", "/jobs/folderC"} {
		if _, err := b.Add(folder); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	scanner := &fakeScanner{
		pairs: map[string]scan.Pair{
			"/jobs/folderA": {VideoPath: "/jobs/folderA/movie.mp4", SubtitlePath: "/jobs/folderA/movie.srt"},
		},
		errs: map[string]error{
			"/jobs/folderB": &scan.Error{Folder: "/jobs/folderB", Reason: scan.ReasonNoSubtitle},
			"/jobs/folderC": &scan.Error{Folder: "/jobs/folderC", Reason: scan.ReasonMultipleSubtitles},
		},
	}

	var merged []string
	runner := &fakeMergeRunner{
		run: func(ctx context.Context, cmd merge.Command, onLine func(string)) error {
			merged = append(merged, cmd.OutputPath)
			onLine("mkvmerge v80.0")
			onLine("Muxing took 0 seconds.")
			return nil
		},
	}

	events := NewEventBus(100)
	orch := NewOrchestratorForTests(b, events, scanner, runner, nil, testOpts)
	summary := orch.Run(context.Background())

	want := domain.BatchSummary{Total: 3, Attempted: 1, Succeeded: 1, Skipped: 2}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
	if len(merged) != 1 {
		t.Fatalf("merge calls = %d, want 1", len(merged))
	}

	jobs := b.Jobs()
	if jobs[0].Status != domain.JobStatusSucceeded {
		t.Fatalf("folderA status = %s, want succeeded", jobs[0].Status)
	}
	if len(jobs[0].LogLines) != 2 {
		t.Fatalf("folderA log lines = %d, want 2", len(jobs[0].LogLines))
	}
	if jobs[1].Status != domain.JobStatusMissingFiles || jobs[1].Reason != string(scan.ReasonNoSubtitle) {
		t.Fatalf("folderB = %s/%q", jobs[1].Status, jobs[1].Reason)
	}
	if jobs[2].Status != domain.JobStatusMissingFiles || jobs[2].Reason != string(scan.ReasonMultipleSubtitles) {
		t.Fatalf("folderC = %s/%q", jobs[2].Status, jobs[2].Reason)
	}

	all := events.Since(0)
	if all[len(all)-1].Type != EventTypeSummary {
		t.Fatalf("last event type = %s, want summary", all[len(all)-1].Type)
	}
	if all[len(all)-1].Summary == nil || *all[len(all)-1].Summary != want {
		t.Fatalf("summary event = %+v", all[len(all)-1].Summary)
	}
}

// TestOrchestratorRecordsFailuresAndContinues checks per-job recovery.
func TestOrchestratorRecordsFailuresAndContinues(t *testing.T) {
	b := New()
	for _, folder := range []string{"/jobs/a", "/jobs/b"} {
		if _, err := b.Add(folder); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	scanner := &fakeScanner{
		pairs: map[string]scan.Pair{
			"/jobs/a": {VideoPath: "/jobs/a/bad.mp4", SubtitlePath: "/jobs/a/bad.srt"},
			"/jobs/b": {VideoPath: "/jobs/b/good.mp4", SubtitlePath: "/jobs/b/good.srt"},
		},
	}
	runner := &fakeMergeRunner{
		run: func(ctx context.Context, cmd merge.Command, onLine func(string)) error {
			if cmd.Args[2] == "/jobs/a/bad.mp4" {
				return &merge.Error{Command: "mkvmerge", ExitCode: 2, Tail: []string{"corrupt header"}}
			}
			return nil
		},
	}

	orch := NewOrchestratorForTests(b, NewEventBus(100), scanner, runner, nil, testOpts)
	summary := orch.Run(context.Background())

	want := domain.BatchSummary{Total: 2, Attempted: 2, Succeeded: 1, Failed: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	jobs := b.Jobs()
	if jobs[0].Status != domain.JobStatusFailed {
		t.Fatalf("job a status = %s, want failed", jobs[0].Status)
	}
	if jobs[0].Reason == "" {
		t.Fatal("expected failure reason")
	}
	if jobs[1].Status != domain.JobStatusSucceeded {
		t.Fatalf("job b status = %s, want succeeded", jobs[1].Status)
	}
}

// TestOrchestratorCancellationMidBatch checks the cancel contract:
// finished jobs keep their status, the in-flight job is terminated
// and marked cancelled, pending jobs never start.
func TestOrchestratorCancellationMidBatch(t *testing.T) {
	b := New()
	for _, folder := range []string{"/jobs/done", "/jobs/inflight", "/jobs/waiting"} {
		if _, err := b.Add(folder); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	scanner := &fakeScanner{
		pairs: map[string]scan.Pair{
			"/jobs/done":     {VideoPath: "/jobs/done/a.mp4", SubtitlePath: "/jobs/done/a.srt"},
			"/jobs/inflight": {VideoPath: "/jobs/inflight/b.mp4", SubtitlePath: "/jobs/inflight/b.srt"},
			"/jobs/waiting":  {VideoPath: "/jobs/waiting/c.mp4", SubtitlePath: "/jobs/waiting/c.srt"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeMergeRunner{
		run: func(ctx context.Context, cmd merge.Command, onLine func(string)) error {
			if cmd.Args[2] == "/jobs/done/a.mp4" {
				return nil
			}
			cancel()
			<-ctx.Done()
			return context.Canceled
		},
	}

	orch := NewOrchestratorForTests(b, NewEventBus(100), scanner, runner, nil, testOpts)
	summary := orch.Run(ctx)

	want := domain.BatchSummary{Total: 3, Attempted: 2, Succeeded: 1, Cancelled: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	jobs := b.Jobs()
	if jobs[0].Status != domain.JobStatusSucceeded {
		t.Fatalf("finished job status = %s, want succeeded", jobs[0].Status)
	}
	if jobs[1].Status != domain.JobStatusCancelled {
		t.Fatalf("in-flight job status = %s, want cancelled", jobs[1].Status)
	}
	if jobs[2].Status != domain.JobStatusPending {
		t.Fatalf("pending job status = %s, want pending", jobs[2].Status)
	}
}

// TestOrchestratorVerifyInputsFailure checks the probing gate.
func TestOrchestratorVerifyInputsFailure(t *testing.T) {
	b := New()
	if _, err := b.Add("/jobs/a"); err != nil {
		t.Fatalf("add: %v", err)
	}

	scanner := &fakeScanner{
		pairs: map[string]scan.Pair{
			"/jobs/a": {VideoPath: "/jobs/a/fake.mp4", SubtitlePath: "/jobs/a/fake.srt"},
		},
	}
	prober := &fakeProber{
		identify: func(ctx context.Context, path string) (probe.Info, error) {
			return probe.Info{}, errors.New("unrecognized container: /jobs/a/fake.mp4")
		},
	}

	mergeCalled := false
	runner := &fakeMergeRunner{
		run: func(ctx context.Context, cmd merge.Command, onLine func(string)) error {
			mergeCalled = true
			return nil
		},
	}

	orch := NewOrchestratorForTests(b, NewEventBus(100), scanner, runner, prober, testOpts)
	summary := orch.Run(context.Background())

	if mergeCalled {
		t.Fatal("merge should not run for unverifiable input")
	}
	want := domain.BatchSummary{Total: 1, Failed: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
}

// TestOrchestratorToolNotFoundFailsJob checks the launch error path.
func TestOrchestratorToolNotFoundFailsJob(t *testing.T) {
	b := New()
	if _, err := b.Add("/jobs/a"); err != nil {
		t.Fatalf("add: %v", err)
	}

	scanner := &fakeScanner{
		pairs: map[string]scan.Pair{
			"/jobs/a": {VideoPath: "/jobs/a/movie.mp4", SubtitlePath: "/jobs/a/movie.srt"},
		},
	}
	runner := &fakeMergeRunner{
		run: func(ctx context.Context, cmd merge.Command, onLine func(string)) error {
			return &merge.Error{Command: "mkvmerge", ExitCode: -1, Err: merge.ErrToolNotFound}
		},
	}

	orch := NewOrchestratorForTests(b, NewEventBus(100), scanner, runner, nil, testOpts)
	summary := orch.Run(context.Background())

	want := domain.BatchSummary{Total: 1, Attempted: 1, Failed: 1}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	job, _ := b.Job(b.Jobs()[0].ID)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
}

// TestOrchestratorRerunProcessesOnlyPendingJobs checks resume-after-cancel.
func TestOrchestratorRerunProcessesOnlyPendingJobs(t *testing.T) {
	b := New()
	for _, folder := range []string{"/jobs/a", "/jobs/b"} {
		if _, err := b.Add(folder); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	scanner := &fakeScanner{
		pairs: map[string]scan.Pair{
			"/jobs/a": {VideoPath: "/jobs/a/a.mp4", SubtitlePath: "/jobs/a/a.srt"},
			"/jobs/b": {VideoPath: "/jobs/b/b.mp4", SubtitlePath: "/jobs/b/b.srt"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	runner := &fakeMergeRunner{
		run: func(runCtx context.Context, cmd merge.Command, onLine func(string)) error {
			runs++
			if runs == 1 {
				cancel()
				<-runCtx.Done()
				return context.Canceled
			}
			return nil
		},
	}

	orch := NewOrchestratorForTests(b, NewEventBus(100), scanner, runner, nil, testOpts)
	orch.Run(ctx)

	// Second run picks up only the job that never started.
	summary := orch.Run(context.Background())
	want := domain.BatchSummary{Total: 2, Attempted: 1, Succeeded: 1}
	if summary != want {
		t.Fatalf("rerun summary = %+v, want %+v", summary, want)
	}

	jobs := b.Jobs()
	if jobs[0].Status != domain.JobStatusCancelled {
		t.Fatalf("job a status = %s, want cancelled", jobs[0].Status)
	}
	if jobs[1].Status != domain.JobStatusSucceeded {
		t.Fatalf("job b status = %s, want succeeded", jobs[1].Status)
	}
}
