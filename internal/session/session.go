// Package session ties one interactive shell to its block log and fans its
// framing events out to stream subscribers, the suggestion index and the
// on-disk history.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/infrastructure/logging"
	"github.com/warpterm/warpterm/internal/infrastructure/monitoring"
	"github.com/warpterm/warpterm/internal/shared/id"
	"github.com/warpterm/warpterm/internal/suggest"
	"github.com/warpterm/warpterm/internal/terminal"
)

// maxAmbient bounds the buffer of shell bytes that belong to no block
// (prompts, async job notices). Oldest bytes roll off.
const maxAmbient = 64 * 1024

// EventType names a session stream event.
type EventType string

const (
	EventBlockOpened    EventType = "block_opened"
	EventBlockOutput    EventType = "block_output"
	EventBlockCompleted EventType = "block_completed"
	EventShellExited    EventType = "shell_exited"
)

// Event is one session stream message. Output bytes ride in Data; opened and
// completed events carry the block view.
type Event struct {
	Type    EventType     `json:"type"`
	Session id.SessionID  `json:"session_id"`
	BlockID id.BlockID    `json:"block_id,omitempty"`
	Block   *block.Block  `json:"block,omitempty"`
	Data    []byte        `json:"data,omitempty"`
	Status  *block.Status `json:"status,omitempty"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses events rather than stalling the pump.
const subscriberBuffer = 64

// Subscriber receives a session's event stream.
type Subscriber struct {
	C       chan Event
	dropped atomic.Int64
}

// Dropped reports how many events overflowed the subscriber's buffer.
func (sub *Subscriber) Dropped() int64 { return sub.dropped.Load() }

// Session owns one shell, its block log, and the pump goroutine that applies
// framing events to the log and forwards them to subscribers.
type Session struct {
	id      id.SessionID
	term    *terminal.Session
	log     *block.Log
	logger  *logging.Logger
	metrics *monitoring.Metrics
	history *block.HistoryStore
	index   *suggest.Index

	// mu also serialises Submit against the pump so a block is opened in
	// the log before any of its output events are applied.
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	ambient     []byte
	exited      bool
	exitStatus  block.Status

	done chan struct{}
}

func newSession(term *terminal.Session, deps Deps) *Session {
	s := &Session{
		id:          term.ID(),
		term:        term,
		log:         block.NewLog(),
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		history:     deps.History,
		index:       deps.Index,
		subscribers: make(map[*Subscriber]struct{}),
		done:        make(chan struct{}),
	}
	go s.pump()
	return s
}

// ID returns the session id.
func (s *Session) ID() id.SessionID { return s.id }

// Shell returns the shell kind the session runs.
func (s *Session) Shell() terminal.ShellKind { return s.term.Shell() }

// WorkingDir returns the directory the shell started in.
func (s *Session) WorkingDir() string { return s.term.WorkingDir() }

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time { return s.term.StartedAt() }

// Active reports whether the shell is still running.
func (s *Session) Active() bool { return s.term.Active() }

// ExitStatus returns the shell's terminal status once the session has
// exited.
func (s *Session) ExitStatus() (block.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitStatus, s.exited
}

// Submit sends a command to the shell and opens its block.
func (s *Session) Submit(command string, origin block.Origin) (id.BlockID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, err := s.term.Submit(command)
	if err != nil {
		return "", err
	}
	s.log.OpenBlock(bid, command, origin)
	if s.metrics != nil {
		s.metrics.RecordBlockOpened(string(origin.Kind))
	}
	b, _ := s.log.Get(bid)
	s.publishLocked(Event{Type: EventBlockOpened, Session: s.id, BlockID: bid, Block: &b})
	return bid, nil
}

// Interrupt delivers SIGINT to the foreground process if bid is the block
// currently running.
func (s *Session) Interrupt(bid id.BlockID) error {
	return s.term.Interrupt(bid)
}

// Resize propagates a new terminal size to the PTY.
func (s *Session) Resize(cols, rows int) error {
	return s.term.Resize(cols, rows)
}

// Snapshot returns frozen views of blocks at index since and later.
func (s *Session) Snapshot(since int) []block.Block {
	return s.log.Snapshot(since)
}

// Block returns a frozen view of one block.
func (s *Session) Block(bid id.BlockID) (block.Block, bool) {
	return s.log.Get(bid)
}

// BlockCount returns the number of blocks opened so far.
func (s *Session) BlockCount() int { return s.log.Len() }

// Ambient returns a copy of the buffered bytes that belong to no block.
func (s *Session) Ambient() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.ambient))
	copy(out, s.ambient)
	return out
}

// Stats returns the block log's drop counters.
func (s *Session) Stats() block.Stats { return s.log.Stats() }

// Subscribe attaches a stream subscriber. The pump never blocks on a slow
// subscriber; events overflowing its buffer are dropped and counted.
func (s *Session) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan Event, subscriberBuffer)}
	s.mu.Lock()
	if s.exited {
		close(sub.C)
	} else {
		s.subscribers[sub] = struct{}{}
	}
	s.mu.Unlock()
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (s *Session) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	_, present := s.subscribers[sub]
	delete(s.subscribers, sub)
	s.mu.Unlock()
	if present {
		close(sub.C)
	}
}

// Close shuts the shell down and waits for the pump to drain.
func (s *Session) Close() error {
	err := s.term.Close()
	<-s.done
	return err
}

// Done is closed once the shell has exited and the pump drained its events.
func (s *Session) Done() <-chan struct{} { return s.done }

// pump is the single consumer of the terminal's event stream.
func (s *Session) pump() {
	defer close(s.done)
	for ev := range s.term.Events() {
		switch ev := ev.(type) {
		case terminal.OutputChunk:
			s.handleOutput(ev)
		case terminal.CommandComplete:
			s.handleComplete(ev)
		case terminal.ShellExited:
			s.handleExited(ev)
		}
	}
}

func (s *Session) handleOutput(ev terminal.OutputChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Block == "" {
		s.ambient = append(s.ambient, ev.Bytes...)
		if over := len(s.ambient) - maxAmbient; over > 0 {
			s.ambient = s.ambient[over:]
		}
	} else {
		s.log.AppendOutput(ev.Block, ev.Bytes)
	}
	if s.metrics != nil {
		s.metrics.RecordBytesFramed(len(ev.Bytes))
	}
	s.publishLocked(Event{Type: EventBlockOutput, Session: s.id, BlockID: ev.Block, Data: ev.Bytes})
}

func (s *Session) handleComplete(ev terminal.CommandComplete) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.CompleteBlock(ev.Block, ev.Status)
	if s.metrics != nil {
		s.metrics.RecordBlockCompleted(string(ev.Status.State))
	}

	b, ok := s.log.Get(ev.Block)
	if ok && ev.Status.State != block.StateAborted {
		// The command actually ran; it joins history whatever its exit code.
		if s.index != nil {
			s.index.UpdateHistory(b.Input)
		}
		if s.history != nil {
			if err := s.history.Append(b.Input); err != nil {
				s.logger.Warn("History append failed", zap.Error(err))
			}
		}
	}

	status := ev.Status
	e := Event{Type: EventBlockCompleted, Session: s.id, BlockID: ev.Block, Status: &status}
	if ok {
		e.Block = &b
	}
	s.publishLocked(e)
}

func (s *Session) handleExited(ev terminal.ShellExited) {
	s.mu.Lock()
	s.exited = true
	s.exitStatus = ev.Status
	status := ev.Status
	s.publishLocked(Event{Type: EventShellExited, Session: s.id, Status: &status})
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
		delete(s.subscribers, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.C)
	}
	s.logger.Info("Shell exited",
		zap.String("session_id", string(s.id)),
		zap.String("state", string(ev.Status.State)),
	)
}

// publishLocked fans an event out to subscribers. Caller holds s.mu.
func (s *Session) publishLocked(e Event) {
	for sub := range s.subscribers {
		select {
		case sub.C <- e:
		default:
			sub.dropped.Add(1)
			if s.metrics != nil {
				s.metrics.RecordDroppedEvent("subscriber")
			}
		}
	}
}
