// Package health serves the probe endpoints of the HTTP server.
//
// /health answers a plain "ok" for uptime pingers and chat platform
// webhooks. /healthz is the JSON liveness probe and never looks at
// dependencies. /readyz runs every registered [Checker] and answers 503 as
// soon as one of them fails.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check must honour ctx.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is implemented by the history stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping adapts a [Pinger] to a [Checker].
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler holds the readiness checks.
type Handler struct {
	checks []Checker
}

// New returns a handler running checks on every /readyz request.
func New(checks ...Checker) *Handler {
	return &Handler{checks: append([]Checker(nil), checks...)}
}

// Register mounts the three probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, report{Status: "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := make([]error, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			outcomes[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	rep := report{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK
	for i, c := range h.checks {
		if err := outcomes[i]; err != nil {
			rep.Checks[c.Name] = "fail: " + err.Error()
			rep.Status, code = "fail", http.StatusServiceUnavailable
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	reply(w, code, rep)
}

func reply(w http.ResponseWriter, code int, rep report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
