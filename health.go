package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/feed"
)

// HealthServer provides health and metrics endpoints
type HealthServer struct {
	port      int
	startTime time.Time
	subs      *feed.SubscriptionManager
	log       *zap.Logger
	server    *http.Server
}

// HealthResponse is the JSON response for /health
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	Subscriptions map[string]any `json:"subscriptions"`
}

// NewHealthServer creates a new health server
func NewHealthServer(port int, subs *feed.SubscriptionManager, log *zap.Logger) *HealthServer {
	return &HealthServer{
		port:      port,
		startTime: time.Now(),
		subs:      subs,
		log:       log,
	}
}

// Start starts the health HTTP server
func (hs *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	hs.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", hs.port),
		Handler: mux,
	}

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.log.Error("health server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the health server
func (hs *HealthServer) Stop() error {
	if hs.server != nil {
		return hs.server.Close()
	}
	return nil
}

// handleHealth handles /health endpoint
func (hs *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Uptime:        time.Since(hs.startTime).String(),
		Subscriptions: hs.subs.Report(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		hs.log.Error("encode health response", zap.Error(err))
	}
}
