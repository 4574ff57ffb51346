package executor_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/strandlabs/strand/executor"
)

func TestBasicExecution(t *testing.T) {
	cmd := executor.New("echo", "hello", "world")
	result, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(result.Stdout, "hello world") {
		t.Errorf("expected stdout to contain 'hello world', got: %s", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got: %d", result.ExitCode)
	}
}

func TestShell(t *testing.T) {
	result, err := executor.Shell("echo one && echo two").Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "one") || !strings.Contains(result.Stdout, "two") {
		t.Errorf("expected both lines in stdout, got: %s", result.Stdout)
	}
}

func TestNonzeroExit(t *testing.T) {
	result, err := executor.Shell("exit 3").Execute(context.Background())
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got: %d", result.ExitCode)
	}
}

func TestEnvironmentInjection(t *testing.T) {
	result, err := executor.Shell("echo $STRAND_TEST_VAR").Execute(
		context.Background(),
		executor.WithEnvVar("STRAND_TEST_VAR", "injected"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "injected") {
		t.Errorf("expected injected env var in stdout, got: %s", result.Stdout)
	}
}

func TestWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	result, err := executor.Shell("pwd").Execute(
		context.Background(),
		executor.WithWorkingDir(dir),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, dir) {
		t.Errorf("expected working dir %s in stdout, got: %s", dir, result.Stdout)
	}
}

func TestTimeout(t *testing.T) {
	start := time.Now()
	_, err := executor.Shell("sleep 10").Execute(
		context.Background(),
		executor.WithTimeout(100*time.Millisecond),
	)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout did not abort the command, took %v", elapsed)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := executor.Shell("sleep 10").Execute(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestCombinedCapture(t *testing.T) {
	result, err := executor.Shell("echo out; echo err 1>&2").Execute(
		context.Background(),
		executor.WithCapture(false, false, true),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Combined, "out") || !strings.Contains(result.Combined, "err") {
		t.Errorf("expected both streams in combined output, got: %s", result.Combined)
	}
}

func TestCustomWriter(t *testing.T) {
	var buf bytes.Buffer
	_, err := executor.Shell("echo streamed").Execute(
		context.Background(),
		executor.WithStdoutWriter(&buf),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "streamed") {
		t.Errorf("expected custom writer to receive output, got: %s", buf.String())
	}
}

func TestExecuteWithInput(t *testing.T) {
	result, err := executor.New("cat").ExecuteWithInput(context.Background(), "from stdin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "from stdin") {
		t.Errorf("expected stdin to be forwarded, got: %s", result.Stdout)
	}
}
