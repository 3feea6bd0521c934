// Package net exposes the clinic server over HTTP: the join handshake,
// the websocket session endpoint, and the operational endpoints.
package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	server "klinik-hewan/server"
	"klinik-hewan/server/internal/observability"
)

type HTTPHandlerConfig struct {
	Logger            *log.Logger
	JoinRatePerSecond float64
	JoinBurst         int64
	Observability     observability.Config
}

// NewHTTPHandler builds the full route tree around a hub.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	joinLimiter := newJoinLimiter(cfg.JoinRatePerSecond, cfg.JoinBurst)
	wsHandler := newWSHandler(hub, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.Middleware)

	r.Post("/join", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		if !joinLimiter.allow(req.RemoteAddr) {
			nethttp.Error(w, "too many join attempts, slow down", nethttp.StatusTooManyRequests)
			return
		}
		writeJSON(w, hub.Join(), logger)
	})

	r.Get("/ws", wsHandler.handle)

	r.Get("/health", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Get("/diagnostics", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			Vets       any    `json:"vets"`
			Clinic     any    `json:"clinic"`
			TickRate   int    `json:"tickRate"`
			Heartbeat  int64  `json:"heartbeatMillis"`
			Telemetry  any    `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Vets:       hub.DiagnosticsSnapshot(),
			Clinic:     hub.ClinicSnapshot(),
			TickRate:   server.TickRate(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Telemetry:  hub.Telemetry(),
		}
		writeJSON(w, payload, logger)
	})

	// The cure guide is static catalog data; clients cache it per session.
	r.Get("/guide", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		writeJSON(w, server.DefaultCatalogDocument(), logger)
	})

	r.Handle("/metrics", promhttp.Handler())

	if cfg.Observability.EnablePprof {
		r.Get("/debug/pprof/*", pprof.Index)
		r.Get("/debug/pprof/profile", pprof.Profile)
		r.Get("/debug/pprof/trace", pprof.Trace)
	}

	return r
}

func writeJSON(w nethttp.ResponseWriter, payload any, logger *log.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
