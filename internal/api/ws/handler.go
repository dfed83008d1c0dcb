// Package ws streams a session's block events over a WebSocket and accepts
// submit, interrupt and resize messages from the client.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/infrastructure/logging"
	"github.com/warpterm/warpterm/internal/infrastructure/monitoring"
	"github.com/warpterm/warpterm/internal/session"
	"github.com/warpterm/warpterm/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Message is one client-to-server frame.
type Message struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	BlockID string `json:"block_id,omitempty"`
	Cols    int    `json:"cols,omitempty"`
	Rows    int    `json:"rows,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	manager *session.Manager
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *session.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}
}

// conn wraps a websocket connection with a write lock, since the event
// forwarder and the reader's replies write concurrently.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(data)
}

func (c *conn) sendError(msg string) error {
	return c.send(gin.H{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

// HandleStream upgrades the request and streams the session's block events
// until the client disconnects or the shell exits.
func (h *Handler) HandleStream(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Session not found",
		})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	cn := &conn{ws: ws}
	defer ws.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	cn.send(gin.H{
		"type":       "connected",
		"session_id": s.ID(),
		"timestamp":  time.Now().Unix(),
	})

	// Forward session events until the subscriber closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.C {
			if err := cn.send(ev); err != nil {
				return
			}
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", string(ev.Type))
			}
		}
		// Shell gone; tell the client before hanging up.
		cn.send(gin.H{"type": "stream_end", "timestamp": time.Now().Unix()})
		ws.Close()
	}()

	h.readLoop(cn, s)
	<-done
}

// readLoop handles client messages until the connection drops.
func (h *Handler) readLoop(cn *conn, s *session.Session) {
	for {
		var msg Message
		if err := cn.ws.ReadJSON(&msg); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "submit":
			bid, err := s.Submit(msg.Command, block.UserOrigin())
			if err != nil {
				cn.sendError(err.Error())
				continue
			}
			cn.send(gin.H{
				"type":      "submitted",
				"block_id":  bid,
				"timestamp": time.Now().Unix(),
			})
		case "interrupt":
			if err := s.Interrupt(id.BlockID(msg.BlockID)); err != nil {
				cn.sendError(err.Error())
			}
		case "resize":
			if err := s.Resize(msg.Cols, msg.Rows); err != nil {
				cn.sendError(err.Error())
			}
		case "ping":
			cn.send(gin.H{"type": "pong"})
		default:
			cn.sendError("unknown message type")
		}
	}
}
