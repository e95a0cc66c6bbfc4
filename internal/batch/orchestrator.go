package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"subtitle-merger/internal/domain"
	"subtitle-merger/internal/merge"
	"subtitle-merger/internal/probe"
	"subtitle-merger/internal/scan"
)

// folderScanner resolves a folder into a video/subtitle pair.
type folderScanner interface {
	Scan(dir string) (scan.Pair, error)
}

// mergeRunner executes one merge command with streamed output.
type mergeRunner interface {
	Run(ctx context.Context, cmd merge.Command, onLine func(string)) error
}

// containerProber verifies input containers before merging.
type containerProber interface {
	Identify(ctx context.Context, path string) (probe.Info, error)
}

// Orchestrator drives scan, command build, and merge for each job in
// submission order. Errors are recovered at the job boundary; no
// single job aborts the batch.
type Orchestrator struct {
	batch   *Batch
	events  *EventBus
	scanner folderScanner
	runner  mergeRunner
	prober  containerProber
	opts    merge.Options
}

// NewOrchestrator wires production components from settings.
func NewOrchestrator(b *Batch, events *EventBus, settings domain.Settings) *Orchestrator {
	o := &Orchestrator{
		batch:   b,
		events:  events,
		scanner: scan.NewScanner(settings.VideoExtensions, settings.SubtitleExtensions),
		runner:  merge.NewRunner(time.Duration(settings.JobTimeoutMinutes) * time.Minute),
		opts: merge.Options{
			MkvmergePath: settings.MkvmergePath,
			OutputSuffix: settings.OutputSuffix,
			OutputDir:    settings.OutputDir,
			Language:     settings.Language,
			TrackName:    settings.TrackName,
		},
	}
	if settings.VerifyInputs {
		o.prober = probe.NewProber(settings.MkvmergePath)
	}
	return o
}

// NewOrchestratorForTests constructs an orchestrator with injectable
// components. A nil prober disables container verification.
func NewOrchestratorForTests(
	b *Batch,
	events *EventBus,
	scanner folderScanner,
	runner mergeRunner,
	prober containerProber,
	opts merge.Options,
) *Orchestrator {
	return &Orchestrator{
		batch:   b,
		events:  events,
		scanner: scanner,
		runner:  runner,
		prober:  prober,
		opts:    opts,
	}
}

// Run processes pending jobs sequentially and returns the summary.
// On cancellation the in-flight job is terminated and marked
// cancelled; pending jobs never leave pending; finished jobs keep
// their recorded status.
func (o *Orchestrator) Run(ctx context.Context) domain.BatchSummary {
	summary := domain.BatchSummary{Total: o.batch.Len()}

	for _, id := range o.batch.PendingIDs() {
		if ctx.Err() != nil {
			break
		}

		job, ok := o.batch.Job(id)
		if !ok {
			continue
		}

		o.setStatus(id, job.FolderPath, domain.JobStatusScanning, "",
			"Analyzing "+job.FolderPath)

		pair, err := o.scanner.Scan(job.FolderPath)
		if err != nil {
			reason := scanReason(err)
			o.setStatus(id, job.FolderPath, domain.JobStatusMissingFiles, reason,
				"Skipped: "+reason)
			summary.Skipped++
			continue
		}

		cmd := merge.BuildCommand(pair.VideoPath, pair.SubtitlePath, o.opts)
		_ = o.batch.setResolved(id, pair.VideoPath, pair.SubtitlePath, cmd.OutputPath)

		if o.prober != nil {
			if _, err := o.prober.Identify(ctx, pair.VideoPath); err != nil {
				if ctx.Err() != nil {
					o.setStatus(id, job.FolderPath, domain.JobStatusCancelled, "", "Cancelled")
					summary.Cancelled++
					break
				}
				o.setStatus(id, job.FolderPath, domain.JobStatusFailed, err.Error(),
					"Failed: "+err.Error())
				summary.Failed++
				continue
			}
		}

		o.setStatus(id, job.FolderPath, domain.JobStatusRunning, "",
			"Merging "+filepath.Base(pair.VideoPath))
		summary.Attempted++

		runErr := o.runner.Run(ctx, cmd, func(line string) {
			_ = o.batch.appendLog(id, line)
			o.publish(Event{
				JobID:      id,
				FolderPath: job.FolderPath,
				Type:       EventTypeLog,
				Line:       line,
			})
		})

		switch {
		case runErr == nil:
			o.setStatus(id, job.FolderPath, domain.JobStatusSucceeded, "",
				"Created "+filepath.Base(cmd.OutputPath))
			summary.Succeeded++
		case errors.Is(runErr, context.Canceled):
			o.setStatus(id, job.FolderPath, domain.JobStatusCancelled, "", "Cancelled")
			summary.Cancelled++
		default:
			o.setStatus(id, job.FolderPath, domain.JobStatusFailed, runErr.Error(),
				"Failed: "+runErr.Error())
			summary.Failed++
		}
	}

	o.publish(Event{
		Type:    EventTypeSummary,
		Message: summaryMessage(summary),
		Summary: &summary,
	})
	return summary
}

// setStatus applies a transition and publishes the status event.
func (o *Orchestrator) setStatus(id, folder string, to domain.JobStatus, reason, message string) {
	if err := o.batch.transition(id, to, reason); err != nil {
		return
	}
	o.publish(Event{
		JobID:      id,
		FolderPath: folder,
		Type:       EventTypeStatus,
		Status:     to,
		Message:    message,
	})
}

// publish forwards events when a bus is configured.
func (o *Orchestrator) publish(event Event) {
	if o.events != nil {
		o.events.Publish(event)
	}
}

// scanReason extracts the resolution reason for display.
func scanReason(err error) string {
	var sErr *scan.Error
	if errors.As(err, &sErr) {
		return string(sErr.Reason)
	}
	return err.Error()
}

// summaryMessage formats the end-of-batch line shown to users.
func summaryMessage(s domain.BatchSummary) string {
	return fmt.Sprintf("Processed %d/%d folders successfully", s.Succeeded, s.Total)
}
