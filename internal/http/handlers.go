package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	applog "spendbook/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.backend == nil {
		checks["storage"] = "not_configured"
	} else if err := s.backend.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	stats := s.expenses.Cache().Stats()
	checks["cache"] = map[string]any{
		"entries": stats.Size,
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	cacheStats := s.expenses.Cache().Stats()

	w.WriteHeader(http.StatusOK)

	metric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric(w, "http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric(w, "http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric(w, "cache_hits_total", "counter", "Expense cache hits", cacheStats.Hits)
	metric(w, "cache_misses_total", "counter", "Expense cache misses", cacheStats.Misses)
	metric(w, "cache_evictions_total", "counter", "Expense cache evictions", cacheStats.Evictions)
	metric(w, "cache_entries", "gauge", "Current expense cache entries", cacheStats.Size)
	metric(w, "rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric(w, "suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric(w, "blocked_requests_total", "counter", "Requests blocked by the detector", securityMetrics.BlockedRequests)
	metric(w, "websocket_clients", "gauge", "Open websocket connections", s.hub.Clients())
	metric(w, "uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.startedAt).Seconds()))
}

// metric writes one sample in Prometheus text format.
func metric[T int | int64 | uint64](w http.ResponseWriter, name, kind, help string, v T) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, currentUser(r.Context()))
}
