package api

import (
	"context"
	"net/http"
	"time"

	"github.com/device-control/dcc/internal/audit"
	"github.com/device-control/dcc/internal/registry"
	"github.com/device-control/dcc/internal/telemetry"
	"github.com/device-control/dcc/internal/update"
)

// UpdaterPort defines the minimal interface the API needs from the
// update pipeline.
type UpdaterPort interface {
	PerformUpdate(ctx context.Context, url string) *update.Session
}

// RegistryPort defines the minimal interface the API needs from the
// variable registry.
type RegistryPort interface {
	Set(name, raw string) bool
}

// TelemetryPort defines the minimal interface the API needs from the
// telemetry hub.
type TelemetryPort interface {
	Subscribe(w http.ResponseWriter, r *http.Request) error
	PublishType(eventType string, data map[string]interface{})
}

// AuditPort defines the minimal interface the API needs from the
// audit logger.
type AuditPort interface {
	LogAction(action, target string, params map[string]interface{}, outcome string, latency time.Duration)
}

// Compile-time assertions for port conformance
var _ UpdaterPort = (*update.Updater)(nil)
var _ AuditPort = (*audit.Logger)(nil)
var _ RegistryPort = (*registry.Registry)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
