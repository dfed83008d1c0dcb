// Package server assembles the pieces into a running HTTP service: config,
// logging, metrics, the workflow catalogue, the suggestion index and the
// session manager behind a gin router.
package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/warpterm/warpterm/internal/api/http"
	"github.com/warpterm/warpterm/internal/api/middleware"
	"github.com/warpterm/warpterm/internal/api/ws"
	"github.com/warpterm/warpterm/internal/block"
	"github.com/warpterm/warpterm/internal/infrastructure/config"
	"github.com/warpterm/warpterm/internal/infrastructure/logging"
	"github.com/warpterm/warpterm/internal/infrastructure/monitoring"
	"github.com/warpterm/warpterm/internal/session"
	"github.com/warpterm/warpterm/internal/shared/paths"
	"github.com/warpterm/warpterm/internal/suggest"
	"github.com/warpterm/warpterm/internal/terminal"
	"github.com/warpterm/warpterm/internal/workflow"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	manager     *session.Manager
	engine      *workflow.Engine
	index       *suggest.Index
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
	watchCancel context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) (*Server, error) {
	// Initialize logger
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	logger.Info("Initializing warpterm server",
		zap.String("port", cfg.Server.Port),
		zap.Int("history_max", cfg.History.Max),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.New()

	// Config directory layout: workflows/ and the history file.
	root, err := paths.ConfigRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := paths.EnsureLayout(root); err != nil {
		return nil, fmt.Errorf("prepare config dir: %w", err)
	}

	// Workflow catalogue, reloaded on external edits.
	engine := workflow.NewEngine(paths.Workflows(root), logger)
	if err := engine.Load(); err != nil {
		return nil, err
	}
	watchCtx, watchCancel := context.WithCancel(context.Background())
	if err := engine.Watch(watchCtx); err != nil {
		logger.Warn("Catalogue watcher unavailable", zap.Error(err))
	}

	// History store seeds the suggestion index.
	history := block.NewHistoryStore(paths.History(root), cfg.History.Max)
	index := suggest.NewIndex(cfg.History.Max)
	lines, err := history.Load()
	if err != nil {
		logger.Warn("History load failed", zap.Error(err))
	} else {
		index.LoadHistory(lines)
		logger.Info("History loaded", zap.Int("commands", len(lines)))
	}
	seedWorkflowNames(index, engine)
	index.SetCommands(pathExecutables())

	manager := session.NewManager(session.Deps{
		Logger:       logger,
		Metrics:      metrics,
		History:      history,
		Index:        index,
		Engine:       engine,
		DefaultShell: terminal.DetectShell(cfg.Shell.Default),
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := apihttp.NewHandlers(manager, engine, metrics, cfg.Suggest.Limit)
	wsHandler := ws.NewHandler(manager, metrics, logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)

	// Session lifecycle
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)

	// Blocks
	router.POST("/sessions/:id/blocks", handlers.SubmitBlock)
	router.GET("/sessions/:id/blocks/:block_id", handlers.GetBlock)
	router.GET("/sessions/:id/snapshot", handlers.Snapshot)
	router.POST("/sessions/:id/interrupt", handlers.Interrupt)
	router.POST("/sessions/:id/resize", handlers.Resize)
	router.POST("/sessions/:id/workflows", handlers.SubmitWorkflow)

	// Workflow catalogue
	router.GET("/workflows", handlers.ListWorkflows)
	router.GET("/workflows/errors", handlers.WorkflowErrors)
	router.GET("/workflows/:id", handlers.GetWorkflow)
	router.POST("/workflows", handlers.SaveWorkflow)
	router.PUT("/workflows/:id", handlers.SaveWorkflow)
	router.DELETE("/workflows/:id", handlers.DeleteWorkflow)
	importLimit := middleware.GlobalRateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
	})
	router.POST("/workflows/import", importLimit, handlers.ImportWorkflow)
	router.POST("/workflows/:id/resolve", handlers.ResolveWorkflow)

	// Suggestions
	router.GET("/suggestions", handlers.Suggestions)

	// WebSocket
	router.GET("/sessions/:id/stream", wsHandler.HandleStream)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized",
		zap.Int("workflows", len(engine.List(workflow.Filter{}))),
		zap.Int("workflow_errors", len(engine.Errors())),
	)

	return &Server{
		router:      router,
		manager:     manager,
		engine:      engine,
		index:       index,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
		watchCancel: watchCancel,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.watchCancel()
	s.manager.CloseAll()
	s.logger.Info("All sessions closed")

	// Sync logger before exit
	s.logger.Sync()

	return nil
}

// pathExecutables lists the command names found on PATH, deduplicated by
// first occurrence.
func pathExecutables() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if _, dup := seen[name]; dup {
				continue
			}
			info, err := e.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// seedWorkflowNames feeds the catalogue's workflow names to the index so
// they rank as suggestions.
func seedWorkflowNames(index *suggest.Index, engine *workflow.Engine) {
	list := engine.List(workflow.Filter{})
	names := make([]string, 0, len(list))
	for _, wf := range list {
		names = append(names, wf.Name)
	}
	index.SetWorkflows(names)
}
