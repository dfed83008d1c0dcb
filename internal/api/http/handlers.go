// Package http exposes the session core over a REST surface: session
// lifecycle, block submission and snapshots, workflow CRUD and resolution,
// and suggestion queries.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/infrastructure/monitoring"
	"github.com/warpterm/warpterm/internal/session"
	"github.com/warpterm/warpterm/internal/shared/id"
	"github.com/warpterm/warpterm/internal/terminal"
	"github.com/warpterm/warpterm/internal/workflow"
)

// Handlers carries the REST endpoint implementations.
type Handlers struct {
	manager      *session.Manager
	engine       *workflow.Engine
	metrics      *monitoring.Metrics
	suggestLimit int
}

// NewHandlers creates the REST handler set.
func NewHandlers(manager *session.Manager, engine *workflow.Engine, metrics *monitoring.Metrics, suggestLimit int) *Handlers {
	if suggestLimit < 1 {
		suggestLimit = 10
	}
	return &Handlers{
		manager:      manager,
		engine:       engine,
		metrics:      metrics,
		suggestLimit: suggestLimit,
	}
}

// sessionView is the JSON shape of one session.
type sessionView struct {
	ID         id.SessionID       `json:"id"`
	Shell      terminal.ShellKind `json:"shell"`
	WorkingDir string             `json:"working_dir"`
	StartedAt  time.Time          `json:"started_at"`
	Active     bool               `json:"active"`
	Blocks     int                `json:"blocks"`
	ExitStatus *block.Status      `json:"exit_status,omitempty"`
}

func viewOf(s *session.Session) sessionView {
	v := sessionView{
		ID:         s.ID(),
		Shell:      s.Shell(),
		WorkingDir: s.WorkingDir(),
		StartedAt:  s.StartedAt(),
		Active:     s.Active(),
		Blocks:     s.BlockCount(),
	}
	if status, exited := s.ExitStatus(); exited {
		v.ExitStatus = &status
	}
	return v
}

// Root describes the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "warpterm",
		"version": "1.0.0",
		"endpoints": []string{
			"/health",
			"/stats",
			"/sessions",
			"/sessions/:id/stream",
			"/workflows",
			"/suggestions",
			"/metrics",
		},
	})
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": len(h.manager.List()),
	})
}

// Stats reports the metrics snapshot plus per-session block log counters
func (h *Handlers) Stats(c *gin.Context) {
	perSession := gin.H{}
	for _, s := range h.manager.List() {
		perSession[string(s.ID())] = s.Stats()
	}
	resp := gin.H{"sessions": perSession}
	if h.metrics != nil {
		resp["totals"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// CreateSession spawns a new shell session
func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		Shell      string `json:"shell"`
		WorkingDir string `json:"working_dir"`
		Cols       int    `json:"cols"`
		Rows       int    `json:"rows"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}
	if req.Shell != "" && !terminal.IsKnownShell(req.Shell) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unknown shell: " + req.Shell,
		})
		return
	}

	s, err := h.manager.Create(session.CreateOptions{
		Shell:      terminal.ShellKind(req.Shell),
		WorkingDir: req.WorkingDir,
		Cols:       req.Cols,
		Rows:       req.Rows,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": viewOf(s),
	})
}

// ListSessions returns every tracked session
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.manager.List()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, viewOf(s))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": views,
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": viewOf(s),
	})
}

// CloseSession shuts one session down
func (h *Handlers) CloseSession(c *gin.Context) {
	err := h.manager.Close(id.SessionID(c.Param("id")))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SubmitBlock sends a command to the session's shell
func (h *Handlers) SubmitBlock(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}

	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	bid, err := s.Submit(req.Command, block.UserOrigin())
	if errors.Is(err, terminal.ErrSessionClosed) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Session closed",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"block_id": bid,
	})
}

// SubmitWorkflow resolves a workflow and runs it in the session
func (h *Handlers) SubmitWorkflow(c *gin.Context) {
	var req struct {
		WorkflowID string            `json:"workflow_id" binding:"required"`
		Bindings   map[string]string `json:"bindings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	bid, command, err := h.manager.SubmitWorkflow(
		id.SessionID(c.Param("id")),
		id.WorkflowID(req.WorkflowID),
		req.Bindings,
	)
	if err != nil {
		h.workflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"block_id": bid,
		"command":  command,
	})
}

// Snapshot returns frozen block views from index since onward
func (h *Handlers) Snapshot(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}

	since := 0
	if raw := c.Query("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid since index",
			})
			return
		}
		since = n
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"blocks":  s.Snapshot(since),
		"ambient": s.Ambient(),
	})
}

// GetBlock returns one block view
func (h *Handlers) GetBlock(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}
	b, ok := s.Block(id.BlockID(c.Param("block_id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Block not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"block":   b,
	})
}

// Interrupt delivers SIGINT to the running block's foreground process
func (h *Handlers) Interrupt(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}

	var req struct {
		BlockID string `json:"block_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	if err := s.Interrupt(id.BlockID(req.BlockID)); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Resize propagates terminal geometry to the PTY
func (h *Handlers) Resize(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}

	var req struct {
		Cols int `json:"cols" binding:"required"`
		Rows int `json:"rows" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	if err := s.Resize(req.Cols, req.Rows); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListWorkflows returns catalogue entries matching the query filters
func (h *Handlers) ListWorkflows(c *gin.Context) {
	list := h.engine.List(workflow.Filter{
		Tag:   c.Query("tag"),
		Shell: c.Query("shell"),
		Query: c.Query("q"),
	})
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"workflows":   list,
		"collections": h.engine.Collections(),
	})
}

// WorkflowErrors returns per-file parse errors from the last catalogue load
func (h *Handlers) WorkflowErrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"errors":  h.engine.Errors(),
	})
}

// GetWorkflow returns one catalogue entry
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.engine.Get(id.WorkflowID(c.Param("id")))
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"workflow": wf,
	})
}

// SaveWorkflow creates or updates a catalogue entry
func (h *Handlers) SaveWorkflow(c *gin.Context) {
	var wf workflow.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}
	if wfID := c.Param("id"); wfID != "" {
		wf.ID = id.WorkflowID(wfID)
	}
	if err := workflow.Validate(&wf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if err := h.engine.Save(&wf); err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"workflow": wf,
	})
}

// DeleteWorkflow removes a catalogue entry and its file
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	if err := h.engine.Delete(id.WorkflowID(c.Param("id"))); err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ImportWorkflow copies an external definition file into the catalogue
func (h *Handlers) ImportWorkflow(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	wf, err := h.engine.Import(req.Path)
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"workflow": wf,
	})
}

// ResolveWorkflow renders a workflow's command without running it
func (h *Handlers) ResolveWorkflow(c *gin.Context) {
	var req struct {
		Bindings map[string]string `json:"bindings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	command, err := h.engine.Resolve(id.WorkflowID(c.Param("id")), req.Bindings)
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"command": command,
	})
}

// Suggestions ranks completion candidates for a typed prefix
func (h *Handlers) Suggestions(c *gin.Context) {
	limit := h.suggestLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < 100 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"suggestions": h.manager.Suggest(c.Query("q"), limit),
	})
}

// workflowError maps workflow and session errors onto HTTP statuses.
func (h *Handlers) workflowError(c *gin.Context, err error) {
	var (
		missing  *workflow.MissingArgumentError
		invalid  *workflow.ValidationError
		parseErr *workflow.ParseError
	)
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, workflow.ErrNameCollision):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, terminal.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &missing), errors.As(err, &invalid), errors.As(err, &parseErr),
		errors.Is(err, workflow.ErrUnresolvedPlaceholder):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}
