package handler

import (
	"context"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// healthCheckTimeout bounds every dependency probe so a hung backend cannot
// stall the liveness endpoint.
const healthCheckTimeout = 2 * time.Second

// Health component statuses
const (
	ComponentUp       = "up"
	ComponentDown     = "down"
	ComponentDisabled = "disabled"
)

// HealthChecker probes one backing dependency.
type HealthChecker interface {
	// Name identifies the component in the health payload.
	Name() string
	// Check returns nil when the component answers.
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a named function to HealthChecker.
type HealthCheckFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) error
}

// Name returns the component name.
func (f HealthCheckFunc) Name() string { return f.ComponentName }

// Check runs the probe. A nil Fn marks the component disabled.
func (f HealthCheckFunc) Check(ctx context.Context) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx)
}

// SystemHandler serves the health endpoint
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checkers  []HealthChecker
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(name, version string, checkers ...HealthChecker) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checkers:  checkers,
	}
}

// ComponentHealth reports the status of one dependency
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the health endpoint payload
type HealthResponse struct {
	Status     string                     `json:"status"`
	Name       string                     `json:"name"`
	Version    string                     `json:"version"`
	GoVersion  string                     `json:"go_version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Health returns liveness plus the status of every backing dependency.
// The response is always 200: a Shopify or Redis outage degrades the
// gateway, it does not mean the process should be restarted.
func (h *SystemHandler) Health(c *gin.Context) {
	status := "ok"
	var components map[string]ComponentHealth

	if len(h.checkers) > 0 {
		components = make(map[string]ComponentHealth, len(h.checkers))
		for _, checker := range h.checkers {
			fn, isFunc := checker.(HealthCheckFunc)
			if isFunc && fn.Fn == nil {
				components[checker.Name()] = ComponentHealth{Status: ComponentDisabled}
				continue
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			err := checker.Check(ctx)
			cancel()

			if err != nil {
				status = "degraded"
				components[checker.Name()] = ComponentHealth{Status: ComponentDown, Error: err.Error()}
				continue
			}
			components[checker.Name()] = ComponentHealth{Status: ComponentUp}
		}
	}

	h.Success(c, HealthResponse{
		Status:     status,
		Name:       h.name,
		Version:    h.version,
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Components: components,
	})
}
