package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/infrastructure/logging"
	"github.com/warpterm/warpterm/internal/shared/id"
)

const (
	readChunkSize = 4096
	eventBuffer   = 256

	// shutdownStep caps each tier of Close: graceful exit, SIGTERM, SIGKILL.
	shutdownStep = 2 * time.Second

	// etx is Ctrl-C; writing it to the PTY makes the line discipline deliver
	// SIGINT to the foreground process group.
	etx = 0x03
)

// Config configures a new shell session.
type Config struct {
	Shell      ShellKind
	WorkingDir string
	Env        map[string]string
	Cols       int
	Rows       int
	Grace      time.Duration
	Logger     *logging.Logger
}

// pending is one submitted command waiting for, or holding, the PTY.
type pending struct {
	id      id.BlockID
	command string
}

// Session supervises one interactive shell attached to a PTY and frames its
// output into blocks. Events() has a single consumer.
type Session struct {
	id         id.SessionID
	shell      ShellKind
	workingDir string
	startedAt  time.Time

	cmd     *exec.Cmd
	ptmx    *os.File
	tty     io.ReadWriteCloser
	cleanup func()

	events chan Event
	logger *logging.Logger
	grace  time.Duration

	mu           sync.Mutex
	ready        bool // first sentinel (initial prompt) seen
	current      *pending
	queue        []pending
	closed       bool
	closedByUser bool

	exited     chan struct{}
	waitStatus block.Status
}

// Start spawns the configured shell on a new PTY and begins framing.
func Start(cfg Config) (*Session, error) {
	if cfg.Shell == "" {
		cfg.Shell = DetectShell("")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Grace <= 0 {
		cfg.Grace = block.DefaultGrace
	}
	if cfg.Cols <= 0 {
		cfg.Cols = 80
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 24
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = os.Getenv("HOME")
		if cfg.WorkingDir == "" {
			cfg.WorkingDir = "/tmp"
		}
	}

	launcher, err := newLauncher(cfg.Shell)
	if err != nil {
		return nil, &SpawnError{Shell: string(cfg.Shell), Cause: err}
	}

	cmd := exec.Command(launcher.path, launcher.args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, launcher.env...)
	for key, value := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(cfg.Rows),
		Cols: uint16(cfg.Cols),
	})
	if err != nil {
		launcher.cleanup()
		return nil, &SpawnError{Shell: string(cfg.Shell), Cause: err}
	}

	s := &Session{
		id:         id.NewSessionID(),
		shell:      cfg.Shell,
		workingDir: cfg.WorkingDir,
		startedAt:  time.Now(),
		cmd:        cmd,
		ptmx:       ptmx,
		tty:        ptmx,
		cleanup:    launcher.cleanup,
		events:     make(chan Event, eventBuffer),
		logger:     cfg.Logger,
		grace:      cfg.Grace,
		exited:     make(chan struct{}),
	}

	go s.monitor()
	go s.readLoop()

	s.logger.Info("Shell session started",
		zap.String("session_id", s.id.String()),
		zap.String("shell", string(s.shell)),
		zap.String("working_dir", s.workingDir),
	)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() id.SessionID { return s.id }

// Shell returns the shell kind the session runs.
func (s *Session) Shell() ShellKind { return s.shell }

// WorkingDir returns the initial working directory.
func (s *Session) WorkingDir() string { return s.workingDir }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Events returns the framing event stream. Single consumer; the channel
// closes after ShellExited.
func (s *Session) Events() <-chan Event { return s.events }

// Active reports whether the shell is still running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Submit sends a command to the shell and returns the id of the block opened
// for it. Commands submitted while another is in flight queue in FIFO order
// and are released one at a time after each sentinel.
func (s *Session) Submit(command string) (id.BlockID, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	p := pending{id: id.NewBlockID(), command: command}
	if s.ready && s.current == nil {
		s.current = &p
		if err := s.writeLocked(p.command + "\n"); err != nil {
			s.current = nil
			s.mu.Unlock()
			go s.Close()
			return "", fmt.Errorf("write command: %w", err)
		}
		s.mu.Unlock()
		return p.id, nil
	}
	s.queue = append(s.queue, p)
	s.mu.Unlock()
	return p.id, nil
}

// Interrupt delivers SIGINT to the foreground process group via the PTY line
// discipline. Best-effort and idempotent; it has no effect unless bid is the
// in-flight block.
func (s *Session) Interrupt(bid id.BlockID) error {
	s.mu.Lock()
	cur := s.current
	closed := s.closed
	s.mu.Unlock()

	if closed || cur == nil || cur.id != bid {
		return nil
	}
	_, err := s.tty.Write([]byte{etx})
	return err
}

// Resize changes the PTY dimensions.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if s.ptmx == nil {
		return nil
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Close shuts the shell down: graceful exit, then SIGTERM, then SIGKILL,
// each capped at shutdownStep, then releases the PTY. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closedByUser {
		s.mu.Unlock()
		return nil
	}
	s.closedByUser = true
	s.closed = true
	s.mu.Unlock()

	if s.cmd == nil {
		// Pipe-backed session (tests): closing the stream is the whole job.
		return s.tty.Close()
	}

	// Tier 1: ask the shell to exit.
	s.tty.Write([]byte("\nexit\n"))
	if s.awaitExit(shutdownStep) {
		return s.release()
	}

	// Tier 2: SIGTERM.
	if s.cmd.Process != nil {
		s.cmd.Process.Signal(syscall.SIGTERM)
	}
	if s.awaitExit(shutdownStep) {
		return s.release()
	}

	// Tier 3: SIGKILL.
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	<-s.exited
	return s.release()
}

func (s *Session) awaitExit(d time.Duration) bool {
	select {
	case <-s.exited:
		return true
	case <-time.After(d):
		return false
	}
}

func (s *Session) release() error {
	err := s.tty.Close()
	s.cleanup()
	s.logger.Info("Shell session closed", zap.String("session_id", s.id.String()))
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// writeLocked writes to the PTY; callers hold s.mu.
func (s *Session) writeLocked(data string) error {
	_, err := io.WriteString(s.tty, data)
	return err
}

// monitor reaps the child and records its exit status.
func (s *Session) monitor() {
	err := s.cmd.Wait()
	status := block.Exited(0)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				status = block.Signalled(int(ws.Signal()))
			} else {
				status = block.Exited(exitErr.ExitCode())
			}
		} else {
			status = block.Aborted(block.AbortShellLost)
		}
	} else if s.cmd.ProcessState != nil {
		status = block.Exited(s.cmd.ProcessState.ExitCode())
	}
	s.waitStatus = status
	close(s.exited)
}

// readLoop reads PTY chunks, frames them, and publishes events. It owns the
// events channel and closes it after ShellExited.
func (s *Session) readLoop() {
	defer close(s.events)

	f := &framer{}
	buf := make([]byte, readChunkSize)

	// Late bytes within this window still belong to the last finished block.
	var graceID id.BlockID
	var graceUntil time.Time

	for {
		n, err := s.tty.Read(buf)
		if n > 0 {
			for _, fr := range f.feed(buf[:n]) {
				switch fr.kind {
				case frameOutput:
					s.emitOutput(fr.data, graceID, graceUntil)
				case frameComplete:
					graceID, graceUntil = s.handleSentinel(fr.code)
				}
			}
		}
		if err != nil {
			if tail := f.flush(); len(tail) > 0 {
				s.emitOutput(tail, graceID, graceUntil)
			}
			s.finish(err)
			return
		}
	}
}

// emitOutput attributes raw bytes to the in-flight block, the grace window's
// block, or nothing (ambient), and publishes them.
func (s *Session) emitOutput(p []byte, graceID id.BlockID, graceUntil time.Time) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	chunk := make([]byte, len(p))
	copy(chunk, p)

	var target id.BlockID
	switch {
	case cur != nil:
		target = cur.id
	case graceID != "" && time.Now().Before(graceUntil):
		target = graceID
	}
	s.events <- OutputChunk{Block: target, Bytes: chunk}
}

// handleSentinel finishes the in-flight block (if any), releases the next
// queued submission, and returns the new grace window.
func (s *Session) handleSentinel(code int) (id.BlockID, time.Time) {
	s.mu.Lock()
	finished := s.current
	s.current = nil
	if !s.ready {
		s.ready = true
	}

	var writeFailed *pending
	for len(s.queue) > 0 && s.current == nil {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if err := s.writeLocked(next.command + "\n"); err != nil {
			writeFailed = &next
			break
		}
		s.current = &next
	}
	s.mu.Unlock()

	var graceID id.BlockID
	var graceUntil time.Time
	if finished != nil {
		s.events <- CommandComplete{Block: finished.id, Status: statusFromCode(code)}
		graceID = finished.id
		graceUntil = time.Now().Add(s.grace)
	}
	if writeFailed != nil {
		s.events <- CommandComplete{Block: writeFailed.id, Status: block.Aborted(block.AbortWriteFailed)}
		go s.Close()
	}
	return graceID, graceUntil
}

// finish tears the session down after the PTY stream ends: aborts the
// in-flight and queued blocks, then publishes ShellExited.
func (s *Session) finish(readErr error) {
	s.mu.Lock()
	userClosed := s.closedByUser
	s.closed = true
	cur := s.current
	s.current = nil
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	reason := block.AbortShellLost
	if userClosed {
		reason = block.AbortClosed
	}
	if cur != nil {
		s.events <- CommandComplete{Block: cur.id, Status: block.Aborted(reason)}
	}
	for _, p := range queued {
		s.events <- CommandComplete{Block: p.id, Status: block.Aborted(reason)}
	}

	status := block.Exited(0)
	if s.cmd != nil {
		<-s.exited
		status = s.waitStatus
	}
	if !cleanStreamEnd(readErr) {
		s.logger.Error("PTY read failed", zap.Error(readErr))
		status = block.Aborted(block.AbortReadFailed)
	}
	s.events <- ShellExited{Status: status}

	if s.ptmx != nil {
		s.ptmx.Close()
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}

// cleanStreamEnd reports whether a read error is the normal end of a PTY
// stream. Linux returns EIO from the master once the child side is gone.
func cleanStreamEnd(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// statusFromCode maps the sentinel's exit code to a status. POSIX shells
// report signal deaths as 128+sig.
func statusFromCode(code int) block.Status {
	if code > 128 && code < 128+32 {
		return block.Signalled(code - 128)
	}
	return block.Exited(code)
}
