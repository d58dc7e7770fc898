package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/device-control/dcc/internal/telemetry"
)

// RegisterRoutes registers all control endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/ota/update", s.handleOTAUpdate)
	mux.HandleFunc("/changeVar", s.handleChangeVar)
	mux.HandleFunc("/events", s.handleEvents)
}

// handleRoot handles GET /. Any other path falls through to the
// transport's default not-found behavior.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	uptime := int64(time.Since(s.startTime).Seconds())
	writeText(w, http.StatusOK, fmt.Sprintf("ESP32 is running!\nUptime: %ds\n", uptime))
}

// handleOTAUpdate handles GET/POST /ota/update?url=...
//
// The ack is written and flushed before the pipeline runs: the caller
// learns the update started, then the transfer proceeds inline.
// Failures after the ack are logged and audited, not returned.
func (s *Server) handleOTAUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		writeText(w, http.StatusBadRequest, "Missing 'url' parameter")
		return
	}

	writeText(w, http.StatusOK, "Starting OTA update from "+url+"...")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	session := s.updater.PerformUpdate(r.Context(), url)
	if !session.Outcome.OK {
		s.log.Error("Error: "+session.Outcome.Reason, zap.String("url", url))
	}
}

// handleChangeVar handles GET /changeVar?name=value&...
//
// Each named variable resolves independently; the response reports
// per-name success or failure in request order.
func (s *Server) handleChangeVar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start := time.Now()
	pairs := parseQueryOrdered(r.URL.RawQuery)

	var response strings.Builder
	response.WriteString("Update status:\n")
	for _, pair := range pairs {
		if s.registry.Set(pair.Name, pair.Value) {
			response.WriteString(" - " + pair.Name + " updated successfully\n")
			if s.telemetry != nil {
				s.telemetry.PublishType(telemetry.EventVarChanged, map[string]interface{}{
					"name":  pair.Name,
					"value": pair.Value,
				})
			}
			s.logAudit("changeVar", pair.Name, pair.Value, "SUCCESS", time.Since(start))
		} else {
			response.WriteString(" - " + pair.Name + " FAILED (not found or type mismatch)\n")
			s.logAudit("changeVar", pair.Name, pair.Value, "NOT_FOUND", time.Since(start))
		}
	}

	writeText(w, http.StatusOK, response.String())
}

// handleEvents handles GET /events (SSE).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.telemetry == nil {
		writeText(w, http.StatusServiceUnavailable, "Telemetry not available")
		return
	}
	if err := s.telemetry.Subscribe(w, r); err != nil {
		s.log.Warn("events subscription ended with error", zap.Error(err))
	}
}

func (s *Server) logAudit(action, target, value, outcome string, latency time.Duration) {
	if s.audit == nil {
		return
	}
	s.audit.LogAction(action, target, map[string]interface{}{"value": value}, outcome, latency)
}

// writeText writes a plain-text response with the permissive
// cross-origin header every endpoint carries.
func writeText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}
