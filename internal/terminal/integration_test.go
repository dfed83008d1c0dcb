package terminal

import (
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/warpterm/warpterm/internal/block"
)

// These tests drive a real bash over a real PTY.

func requireBash(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PTY integration test in short mode")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestRealShellEcho(t *testing.T) {
	requireBash(t)

	s, err := Start(Config{Shell: Bash, WorkingDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	bid, err := s.Submit("echo hi")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	status, out := awaitComplete(t, s, bid)
	if status != block.Exited(0) {
		t.Errorf("status = %+v", status)
	}
	if !strings.Contains(string(out), "hi") {
		t.Errorf("output = %q", out)
	}
}

func TestRealShellExitCode(t *testing.T) {
	requireBash(t)

	s, err := Start(Config{Shell: Bash, WorkingDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	bid, _ := s.Submit("sh -c 'exit 7'")
	status, _ := awaitComplete(t, s, bid)
	if status != block.Exited(7) {
		t.Errorf("status = %+v, want Exited(7)", status)
	}
}

func TestRealShellClose(t *testing.T) {
	requireBash(t)

	s, err := Start(Config{Shell: Bash, WorkingDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("close: %v", err)
		}
	case <-time.After(3 * shutdownStep):
		t.Fatal("close did not finish within the tiered timeout")
	}

	if _, err := s.Submit("echo nope"); err != ErrSessionClosed {
		t.Errorf("submit after close = %v, want ErrSessionClosed", err)
	}
}
