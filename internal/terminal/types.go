// Package terminal drives an interactive child shell over a pseudo-terminal
// and frames its byte stream into per-command blocks.
//
// Framing uses a sentinel line the shell is configured to print after every
// command: the byte pattern "\x1eWARP\x1e" followed by the previous command's
// exit code followed by the pattern again. That single observable event gives
// both command completion and the exit code without parsing prompts.
package terminal

import (
	"errors"
	"fmt"

	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/shared/id"
)

// Sentinel is the byte pattern bracketing the exit code in the marker line
// the shell emits after each command. User output containing this exact
// pattern is ambiguous; the protocol assumes it does not occur naturally.
const Sentinel = "\x1eWARP\x1e"

// ShellKind names a supported shell.
type ShellKind string

const (
	Bash       ShellKind = "bash"
	Zsh        ShellKind = "zsh"
	Fish       ShellKind = "fish"
	PowerShell ShellKind = "powershell"
)

// KnownShells lists every shell kind workflow definitions may reference.
var KnownShells = []ShellKind{Bash, Zsh, Fish, PowerShell}

// IsKnownShell reports whether s names a supported shell kind.
func IsKnownShell(s string) bool {
	for _, k := range KnownShells {
		if string(k) == s {
			return true
		}
	}
	return false
}

// ErrSessionClosed is returned by Submit after the shell has exited or the
// session was closed.
var ErrSessionClosed = errors.New("session closed")

// SpawnError reports a failure to create the PTY or the child shell.
type SpawnError struct {
	Shell string
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Shell, e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

// Event is a framing event produced by the session's PTY reader. The event
// stream has a single consumer: the session task.
type Event interface {
	isEvent()
}

// OutputChunk carries raw shell bytes attributed to a block. A zero Block id
// means the bytes arrived outside any block and past the grace window; the
// consumer buffers them against its ambient block.
type OutputChunk struct {
	Block id.BlockID
	Bytes []byte
}

// CommandComplete reports a block's terminal status. All OutputChunks for
// the block precede it, except those within the grace window.
type CommandComplete struct {
	Block  id.BlockID
	Status block.Status
}

// ShellExited is the final event on the stream; the event channel closes
// after it.
type ShellExited struct {
	Status block.Status
}

func (OutputChunk) isEvent()     {}
func (CommandComplete) isEvent() {}
func (ShellExited) isEvent()     {}
