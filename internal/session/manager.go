package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/infrastructure/logging"
	"github.com/warpterm/warpterm/internal/infrastructure/monitoring"
	"github.com/warpterm/warpterm/internal/shared/id"
	"github.com/warpterm/warpterm/internal/suggest"
	"github.com/warpterm/warpterm/internal/terminal"
	"github.com/warpterm/warpterm/internal/workflow"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Deps carries the shared collaborators every session uses.
type Deps struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	History *block.HistoryStore
	Index   *suggest.Index
	Engine  *workflow.Engine

	// DefaultShell is used when CreateOptions does not name a shell.
	DefaultShell terminal.ShellKind
}

// CreateOptions selects the shell and initial terminal geometry for a new
// session. Zero values fall back to detection and defaults.
type CreateOptions struct {
	Shell      terminal.ShellKind
	WorkingDir string
	Cols       int
	Rows       int
	Grace      time.Duration
}

// Manager tracks every session by id. Sessions whose shell has exited stay
// queryable until explicitly closed.
type Manager struct {
	deps     Deps
	sessions sync.Map // id.SessionID -> *Session
}

// NewManager creates a session manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return &Manager{deps: deps}
}

// Create spawns a new shell session.
func (m *Manager) Create(opts CreateOptions) (*Session, error) {
	if opts.Shell == "" {
		opts.Shell = m.deps.DefaultShell
	}
	term, err := terminal.Start(terminal.Config{
		Shell:      opts.Shell,
		WorkingDir: opts.WorkingDir,
		Cols:       opts.Cols,
		Rows:       opts.Rows,
		Grace:      opts.Grace,
		Logger:     m.deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := newSession(term, m.deps)
	m.sessions.Store(s.ID(), s)
	if m.deps.Metrics != nil {
		m.deps.Metrics.IncSessionsTotal()
	}
	m.updateGauge()

	// Track shell exit for the active-sessions gauge.
	go func() {
		<-s.Done()
		m.updateGauge()
	}()

	m.deps.Logger.Info("Session created",
		zap.String("session_id", string(s.ID())),
		zap.String("shell", string(s.Shell())),
	)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(sid id.SessionID) (*Session, bool) {
	v, ok := m.sessions.Load(sid)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// List returns every tracked session.
func (m *Manager) List() []*Session {
	var out []*Session
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	return out
}

// Close shuts one session down and forgets it.
func (m *Manager) Close(sid id.SessionID) error {
	v, ok := m.sessions.LoadAndDelete(sid)
	if !ok {
		return ErrNotFound
	}
	err := v.(*Session).Close()
	m.updateGauge()
	return err
}

// CloseAll shuts every session down, for server shutdown.
func (m *Manager) CloseAll() {
	m.sessions.Range(func(k, v any) bool {
		m.sessions.Delete(k)
		if err := v.(*Session).Close(); err != nil {
			m.deps.Logger.Warn("Session close failed",
				zap.String("session_id", string(v.(*Session).ID())),
				zap.Error(err),
			)
		}
		return true
	})
	m.updateGauge()
}

// SubmitWorkflow resolves a workflow against bindings and submits the
// rendered command to the session. It returns the block id and the command
// that ran.
func (m *Manager) SubmitWorkflow(sid id.SessionID, wfID id.WorkflowID, bindings map[string]string) (id.BlockID, string, error) {
	s, ok := m.Get(sid)
	if !ok {
		return "", "", ErrNotFound
	}
	if m.deps.Engine == nil {
		return "", "", workflow.ErrNotFound
	}
	command, err := m.deps.Engine.Resolve(wfID, bindings)
	if err != nil {
		return "", "", err
	}
	bid, err := s.Submit(command, block.WorkflowOrigin(wfID, bindings))
	if err != nil {
		return "", "", err
	}
	return bid, command, nil
}

// Suggest ranks completion candidates for a typed prefix.
func (m *Manager) Suggest(prefix string, limit int) []suggest.Suggestion {
	if m.deps.Index == nil {
		return nil
	}
	start := time.Now()
	out := m.deps.Index.Query(prefix, limit)
	if m.deps.Metrics != nil {
		m.deps.Metrics.ObserveSuggestQuery(time.Since(start))
	}
	return out
}

func (m *Manager) updateGauge() {
	if m.deps.Metrics == nil {
		return
	}
	active := 0
	m.sessions.Range(func(_, v any) bool {
		if v.(*Session).Active() {
			active++
		}
		return true
	})
	m.deps.Metrics.SetSessionsActive(active)
}
