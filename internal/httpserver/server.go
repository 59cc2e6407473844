// Package httpserver adapts internal/pipeline to fasthttp: it decodes
// incoming requests into pipeline.Request values, renders pipeline.Response
// (or a problem+json error) back onto the wire, and serves the /health and
// /ready operational endpoints alongside the mocked API surface (spec §4.G,
// §6).
package httpserver

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/oas-sandbox/engine/internal/common/requestid"
	"github.com/oas-sandbox/engine/internal/pipeline"
	"github.com/oas-sandbox/engine/internal/problem"
	"github.com/oas-sandbox/engine/internal/store"
)

const requestIDHeader = "X-Request-ID"

// Server dispatches fasthttp requests to a pipeline.Pipeline, handling the
// operational endpoints and response encoding around it.
type Server struct {
	Pipeline   *pipeline.Pipeline
	Store      store.Store
	Logger     *zap.Logger
	InstanceID string
	StartedAt  time.Time
}

// NewServer wires a Server around an already-built pipeline. StartedAt
// defaults to the call time if zero.
func NewServer(p *pipeline.Pipeline, st store.Store, logger *zap.Logger, instanceID string) *Server {
	return &Server{Pipeline: p, Store: st, Logger: logger, InstanceID: instanceID, StartedAt: time.Now()}
}

// HandleRequest is the fasthttp.RequestHandler entry point.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	customID := string(ctx.Request.Header.Peek(requestIDHeader))
	reqID := requestid.GenerateRequestID(customID)
	ctx.Response.Header.Set(requestIDHeader, reqID)

	logger := s.Logger
	if logger != nil {
		logger = logger.With(zap.String("request_id", reqID))
	}

	switch string(ctx.Path()) {
	case "/health":
		s.handleHealth(ctx)
		return
	case "/ready":
		s.handleReady(ctx)
		return
	}

	req, err := buildRequest(ctx, reqID)
	if err != nil {
		writeProblem(ctx, problem.RequestInvalid("failed to decode request", nil), string(ctx.Path()))
		return
	}

	resp, err := s.Pipeline.Handle(ctx, req)
	if err != nil {
		if logger != nil {
			logger.Warn("request failed", zap.Error(err), zap.String("path", req.Path))
		}
		writeProblem(ctx, err, req.Path)
		return
	}

	writeResponse(ctx, resp)
}

// handleHealth reports process liveness unconditionally - it never touches
// the store, so it stays up even if a backend is unreachable.
func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.StartedAt).String(),
		"goroutines": runtime.NumGoroutine(),
	})
}

// handleReady additionally probes the configured store backend and reports
// available system memory, so a load balancer can distinguish "process up"
// from "actually able to serve".
func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	storeOK := true
	var storeErr string
	if _, _, err := s.Store.Get(probeCtx, "__readiness_probe__"); err != nil {
		storeOK = false
		storeErr = err.Error()
	}

	body := map[string]any{
		"status": "ok",
		"store":  map[string]any{"ok": storeOK},
	}
	if storeErr != "" {
		body["store"].(map[string]any)["error"] = storeErr
	}
	if vm, err := mem.VirtualMemoryWithContext(probeCtx); err == nil {
		body["memory"] = map[string]any{
			"available_bytes": vm.Available,
			"used_percent":    vm.UsedPercent,
		}
	}

	status := fasthttp.StatusOK
	if !storeOK {
		status = fasthttp.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	writeJSON(ctx, status, body)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		ctx.Response.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.Response.SetBodyString(`{"status":"error"}`)
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBody(raw)
}
