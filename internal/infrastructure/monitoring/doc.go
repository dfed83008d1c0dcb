/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the terminal
server, tracking HTTP requests, shell sessions, command blocks, suggestion
queries and WebSocket streams.

# Features

- HTTP request metrics (latency, throughput)
- Session lifecycle metrics
- Block metrics (opened, completed, framed bytes, dropped events)
- Suggestion query latency
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.New()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.RecordBlockOpened("user")
	metrics.SetSessionsActive(3)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
