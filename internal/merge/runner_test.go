package merge

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

// fakeStarter simulates child process execution per test.
type fakeStarter struct {
	start func(ctx context.Context, name string, args []string, onLine func(string)) (int, error)
}

// Start delegates to injected behavior.
func (f *fakeStarter) Start(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
	if f.start == nil {
		return 0, nil
	}
	return f.start(ctx, name, args, onLine)
}

// TestRunnerForwardsLinesInOrder checks incremental output delivery.
func TestRunnerForwardsLinesInOrder(t *testing.T) {
	starter := &fakeStarter{
		start: func(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
			onLine("mkvmerge v80.0")
			onLine("The file is being fixed, part 1/4...")
			onLine("Muxing took 2 seconds.")
			return 0, nil
		},
	}

	var lines []string
	runner := NewRunnerForTests(starter, 0)
	err := runner.Run(context.Background(), Command{Tool: "mkvmerge"}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"mkvmerge v80.0", "The file is being fixed, part 1/4...", "Muxing took 2 seconds."}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

// TestRunnerNonZeroExitReturnsMergeError checks the process failure path.
func TestRunnerNonZeroExitReturnsMergeError(t *testing.T) {
	starter := &fakeStarter{
		start: func(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
			onLine("Error: The file could not be opened for reading.")
			return 2, errors.New("exit status 2")
		},
	}

	runner := NewRunnerForTests(starter, 0)
	err := runner.Run(context.Background(), Command{Tool: "mkvmerge"}, nil)

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if mErr.ExitCode != 2 {
		t.Fatalf("exit code = %d, want 2", mErr.ExitCode)
	}
	if len(mErr.Tail) != 1 || mErr.Tail[0] != "Error: The file could not be opened for reading." {
		t.Fatalf("tail = %v", mErr.Tail)
	}
}

// TestRunnerKeepsBoundedTail checks that only the last lines are retained.
func TestRunnerKeepsBoundedTail(t *testing.T) {
	starter := &fakeStarter{
		start: func(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
			for i := 0; i < tailLimit*2; i++ {
				onLine("progress")
			}
			onLine("final line")
			return 1, errors.New("exit status 1")
		},
	}

	runner := NewRunnerForTests(starter, 0)
	err := runner.Run(context.Background(), Command{Tool: "mkvmerge"}, nil)

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if len(mErr.Tail) != tailLimit {
		t.Fatalf("tail len = %d, want %d", len(mErr.Tail), tailLimit)
	}
	if mErr.Tail[len(mErr.Tail)-1] != "final line" {
		t.Fatalf("last tail line = %q", mErr.Tail[len(mErr.Tail)-1])
	}
}

// TestRunnerLaunchFailureWrapsToolNotFound checks missing-tool mapping.
func TestRunnerLaunchFailureWrapsToolNotFound(t *testing.T) {
	starter := &fakeStarter{
		start: func(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
			return -1, exec.ErrNotFound
		},
	}

	runner := NewRunnerForTests(starter, 0)
	err := runner.Run(context.Background(), Command{Tool: "mkvmerge"}, nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("error = %v, want ErrToolNotFound", err)
	}

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
}

// TestRunnerCancellationSurfacesContextCanceled checks cancel mapping.
func TestRunnerCancellationSurfacesContextCanceled(t *testing.T) {
	starter := &fakeStarter{
		start: func(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
			<-ctx.Done()
			return -1, errors.New("signal: killed")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	runner := NewRunnerForTests(starter, 0)
	err := runner.Run(ctx, Command{Tool: "mkvmerge"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// TestRunnerTimeoutReturnsMergeError checks the hung-process guard.
func TestRunnerTimeoutReturnsMergeError(t *testing.T) {
	starter := &fakeStarter{
		start: func(ctx context.Context, name string, args []string, onLine func(string)) (int, error) {
			<-ctx.Done()
			return -1, errors.New("signal: killed")
		},
	}

	runner := NewRunnerForTests(starter, 20*time.Millisecond)
	err := runner.Run(context.Background(), Command{Tool: "mkvmerge"}, nil)

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want wrapped DeadlineExceeded", err)
	}
}
