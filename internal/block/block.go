// Package block owns the ordered, append-only record of command executions
// for one session: the block log, and the rolling on-disk command history
// derived from it.
package block

import (
	"time"

	"github.com/warpterm/warpterm/internal/shared/id"
)

// State is the lifecycle state of a block's exit status.
type State string

const (
	// StateRunning is the initial and only non-terminal state.
	StateRunning State = "running"
	// StateExited means the command finished with an exit code.
	StateExited State = "exited"
	// StateSignalled means the command was killed by a signal.
	StateSignalled State = "signalled"
	// StateAborted means the framing layer gave up on the block.
	StateAborted State = "aborted"
)

// AbortReason explains an aborted block.
type AbortReason string

const (
	AbortShellLost   AbortReason = "shell_lost"
	AbortWriteFailed AbortReason = "write_failed"
	AbortReadFailed  AbortReason = "read_failed"
	AbortClosed      AbortReason = "closed"
)

// Status is a block's exit status. Transitions are one-way from Running to a
// terminal state.
type Status struct {
	State  State       `json:"state"`
	Code   int         `json:"code,omitempty"`
	Signal int         `json:"signal,omitempty"`
	Reason AbortReason `json:"reason,omitempty"`
}

// Running returns the initial status.
func Running() Status { return Status{State: StateRunning} }

// Exited returns a terminal status for a command that exited with code.
func Exited(code int) Status { return Status{State: StateExited, Code: code} }

// Signalled returns a terminal status for a command killed by sig.
func Signalled(sig int) Status { return Status{State: StateSignalled, Signal: sig} }

// Aborted returns a terminal status for a block the framing layer abandoned.
func Aborted(reason AbortReason) Status { return Status{State: StateAborted, Reason: reason} }

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool { return s.State != StateRunning }

// OriginKind identifies how a block's input was produced.
type OriginKind string

const (
	OriginUser     OriginKind = "user"
	OriginWorkflow OriginKind = "workflow"
)

// Origin records the provenance of a block's input.
type Origin struct {
	Kind     OriginKind        `json:"kind"`
	Workflow id.WorkflowID     `json:"workflow_id,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`
}

// UserOrigin is the origin for directly typed commands.
func UserOrigin() Origin { return Origin{Kind: OriginUser} }

// WorkflowOrigin is the origin for commands resolved from a workflow.
func WorkflowOrigin(wf id.WorkflowID, bindings map[string]string) Origin {
	return Origin{Kind: OriginWorkflow, Workflow: wf, Bindings: bindings}
}

// Block is a frozen view of one command execution. Views returned by the log
// are copies; output holds exactly the bytes committed at snapshot time.
type Block struct {
	ID          id.BlockID `json:"id"`
	Input       string     `json:"input"`
	Origin      Origin     `json:"origin"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt time.Time  `json:"completed_at,omitzero"`
	Output      []byte     `json:"output"`
	Status      Status     `json:"exit_status"`
}

// Completed reports whether the block reached a terminal state.
func (b Block) Completed() bool { return b.Status.Terminal() }

// record is the log-internal mutable representation of a block.
type record struct {
	id          id.BlockID
	input       string
	origin      Origin
	submittedAt time.Time
	completedAt time.Time
	output      []byte
	status      Status

	// graceUntil bounds late appends after the terminal transition.
	graceUntil time.Time
}

func (r *record) view() Block {
	out := make([]byte, len(r.output))
	copy(out, r.output)
	return Block{
		ID:          r.id,
		Input:       r.input,
		Origin:      r.origin,
		SubmittedAt: r.submittedAt,
		CompletedAt: r.completedAt,
		Output:      out,
		Status:      r.status,
	}
}
