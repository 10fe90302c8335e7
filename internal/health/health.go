// Package health exposes the liveness and readiness surface of the voice
// pipeline.
//
// Liveness (/healthz) only asserts the process can still serve HTTP.
// Readiness (/readyz) runs the registered [Checker] probes — microphone
// presence, pipeline degradation, transcriber breaker state — and reports
// 503 with per-check detail when any of them fails, so an orchestrator stops
// routing to an assistant that cannot hear or transcribe.
//
// Responses are JSON: a top-level "status" ("ok" or "fail") and a "checks"
// map with one entry per named probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// defaultProbeTimeout bounds a single readiness probe. Device enumeration
// can block on a wedged audio host, so every probe runs under a deadline.
const defaultProbeTimeout = 5 * time.Second

// Checker is one named readiness probe. Check returns nil when the
// dependency is usable and an error describing the failure otherwise; it
// must respect context cancellation.
type Checker struct {
	// Name keys the probe's entry in the JSON response, e.g. "microphone".
	Name string

	Check func(ctx context.Context) error
}

// result is the JSON response body for both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction, so a Handler is safe for concurrent use.
type Handler struct {
	checkers     []Checker
	probeTimeout time.Duration
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, probeTimeout: defaultProbeTimeout}
}

// WithProbeTimeout overrides the per-probe deadline and returns the handler
// for chaining. Zero or negative values keep the default.
func (h *Handler) WithProbeTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.probeTimeout = d
	}
	return h
}

// Healthz is the liveness probe. A process that reaches this handler is
// alive; it always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is the readiness probe. It answers 200 only when every checker
// passes, 503 otherwise, with the per-check outcomes in the body either way.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res, ready := h.evaluate(r.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// evaluate runs all probes sequentially, each under its own deadline derived
// from ctx.
func (h *Handler) evaluate(ctx context.Context) (result, bool) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
		err := c.Check(probeCtx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	if !ready {
		res.Status = "fail"
	}
	return res, ready
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON marshals v before touching the response, so an encoding failure
// can still produce a clean 500 instead of a truncated body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
