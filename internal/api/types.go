package api

import "github.com/mattjoyce/capinvoke/internal/trace"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// RunsResponse is returned by GET /runs. Runs carry no steps.
type RunsResponse struct {
	Runs  []trace.Run `json:"runs"`
	Count int         `json:"count"`
}
