package merge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrToolNotFound indicates mkvmerge could not be located or launched.
var ErrToolNotFound = errors.New("merge tool not found")

// tailLimit bounds the diagnostic lines retained for failure reasons.
const tailLimit = 20

// Error describes a failed merge invocation with captured output tail.
type Error struct {
	Command  string
	ExitCode int
	Tail     []string
	Err      error
}

// Error formats the merge failure for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Tail) == 0 {
		return fmt.Sprintf("%s failed (exit=%d)", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s failed (exit=%d): %s", e.Command, e.ExitCode, e.Tail[len(e.Tail)-1])
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandStarter abstracts child process execution for testability.
// Implementations deliver combined stdout/stderr line by line to
// onLine while the process runs, then report its exit code.
type commandStarter interface {
	Start(ctx context.Context, name string, args []string, onLine func(string)) (int, error)
}

// execStarter runs commands via os/exec with line-streamed output.
type execStarter struct{}

// Start launches the command and forwards each output line as it
// becomes available. The child is killed when ctx is cancelled.
func (execStarter) Start(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return -1, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
	}()

	err := cmd.Wait()
	_ = pw.Close()
	<-done

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return exitCode, err
	}

	return 0, nil
}

// Runner executes merge commands and reports incremental output.
type Runner struct {
	starter commandStarter
	timeout time.Duration
}

// NewRunner constructs the production runner. A zero timeout means
// jobs may run indefinitely.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{starter: execStarter{}, timeout: timeout}
}

// NewRunnerForTests constructs a runner with an injectable starter.
func NewRunnerForTests(starter commandStarter, timeout time.Duration) *Runner {
	return &Runner{starter: starter, timeout: timeout}
}

// Run executes one merge command, forwarding each output line to
// onLine. A nil error means exit code zero. Cancellation surfaces as
// context.Canceled; launch failures wrap ErrToolNotFound.
func (r *Runner) Run(ctx context.Context, cmd Command, onLine func(string)) error {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var tail []string
	capture := func(line string) {
		tail = append(tail, line)
		if len(tail) > tailLimit {
			tail = tail[1:]
		}
		if onLine != nil {
			onLine(line)
		}
	}

	exitCode, err := r.starter.Start(runCtx, cmd.Tool, cmd.Args, capture)
	if err == nil {
		return nil
	}

	switch {
	case ctx.Err() != nil:
		// Caller-initiated cancellation, not a job fault.
		return context.Canceled
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return &Error{
			Command:  cmd.Tool,
			ExitCode: exitCode,
			Tail:     tail,
			Err:      fmt.Errorf("timed out after %s: %w", r.timeout, context.DeadlineExceeded),
		}
	case isLaunchFailure(err):
		return &Error{
			Command:  cmd.Tool,
			ExitCode: exitCode,
			Err:      fmt.Errorf("%w: %v", ErrToolNotFound, err),
		}
	default:
		return &Error{
			Command:  cmd.Tool,
			ExitCode: exitCode,
			Tail:     tail,
			Err:      err,
		}
	}
}

// isLaunchFailure distinguishes failure-to-start from non-zero exit.
func isLaunchFailure(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	// exec returns *os.PathError style failures before the process runs.
	return strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "permission denied")
}
