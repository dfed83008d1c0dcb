// Package main is the entry point for the warpterm server.
//
// The server hosts interactive shell sessions over PTYs, frames their output
// into per-command blocks, and exposes the result to a terminal UI:
//
//	UI (block renderer) → REST (sessions, workflows, suggestions)
//	                    → WebSocket (live block events per session)
//
// The server provides:
//   - Shell sessions with sentinel-based command framing
//   - Append-only block logs with snapshots
//   - A YAML workflow catalogue with argument validation
//   - Fuzzy command suggestions over bounded history
//   - Prometheus metrics and rate limiting
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8700
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
