// Package diag serves the diagnostics HTTP API: metrics, probes and a
// read-only view of the running machine.
package diag

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/signalctl/internal/lifecycle"
	"github.com/Proton-105/signalctl/internal/state"
	"github.com/Proton-105/signalctl/pkg/logger"
)

// Machine is the concurrency-safe view of state.Machine the router reads.
type Machine interface {
	CurrentState() state.State
	Tick() uint64
	RunID() string
	Running() bool
	Debug() bool
	SetDebug(enabled bool)
	Describe() state.Description
}

// Options wires the router to its data sources.
type Options struct {
	Machine   Machine
	MachineID string
	Probes    lifecycle.HealthChecker
	Gatherer  prometheus.Gatherer
	// Registerer receives the request metrics. Nil disables them.
	Registerer prometheus.Registerer
	StateName  func(state.State) string
	Logger     *slog.Logger
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	MachineID string `json:"machine_id"`
	RunID     string `json:"run_id"`
	State     int    `json:"state"`
	StateName string `json:"state_name"`
	Tick      uint64 `json:"tick"`
	Running   bool   `json:"running"`
	Debug     bool   `json:"debug"`
}

// ProbeResponse is the body of the health endpoints.
type ProbeResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type debugRequest struct {
	Enabled *bool `json:"enabled"`
}

type handlers struct {
	opts Options
	log  *slog.Logger
}

// NewRouter builds the diagnostics router.
func NewRouter(opts Options) *mux.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.StateName == nil {
		opts.StateName = func(s state.State) string { return strconv.Itoa(int(s)) }
	}

	h := &handlers{opts: opts, log: opts.Logger}

	r := mux.NewRouter().StrictSlash(true)
	r.Use(mux.MiddlewareFunc(logger.Middleware(opts.Logger)))
	if opts.Registerer != nil {
		r.Use(NewHTTPMetrics(opts.Registerer).Middleware)
	}

	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readiness).Methods(http.MethodGet)
	r.HandleFunc("/state", h.state).Methods(http.MethodGet)
	r.HandleFunc("/transitions", h.transitions).Methods(http.MethodGet)
	r.HandleFunc("/debug", h.debug).Methods(http.MethodPut)
	r.HandleFunc("/api", h.api(r)).Methods(http.MethodGet)

	return r
}

func (h *handlers) liveness(w http.ResponseWriter, r *http.Request) {
	if h.opts.Probes == nil {
		h.writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok"})
		return
	}
	h.probe(w, h.opts.Probes.Liveness(r.Context()))
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	if h.opts.Probes == nil {
		h.writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok"})
		return
	}
	h.probe(w, h.opts.Probes.Readiness(r.Context()))
}

func (h *handlers) probe(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, ProbeResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok"})
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	m := h.opts.Machine
	if m == nil {
		http.Error(w, "machine not configured", http.StatusServiceUnavailable)
		return
	}

	current := m.CurrentState()
	h.writeJSON(w, http.StatusOK, StateResponse{
		MachineID: h.opts.MachineID,
		RunID:     m.RunID(),
		State:     int(current),
		StateName: h.opts.StateName(current),
		Tick:      m.Tick(),
		Running:   m.Running(),
		Debug:     m.Debug(),
	})
}

// transitions serves the machine description as JSON, or as Graphviz DOT
// with ?format=dot. ?event=BTN1_PRESS keeps only that event's transitions.
func (h *handlers) transitions(w http.ResponseWriter, r *http.Request) {
	if h.opts.Machine == nil {
		http.Error(w, "machine not configured", http.StatusServiceUnavailable)
		return
	}

	desc := h.opts.Machine.Describe()

	if name := r.URL.Query().Get("event"); name != "" {
		ev, err := state.ParseEvent(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		desc.Transitions = filterTransitions(desc.Transitions, ev)
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		h.writeJSON(w, http.StatusOK, desc)
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		if err := state.WriteDOT(w, desc); err != nil {
			h.log.Error("failed to write dot", slog.Any("error", err))
		}
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
	}
}

func filterTransitions(all []state.TransitionInfo, ev state.Event) []state.TransitionInfo {
	kept := make([]state.TransitionInfo, 0, len(all))
	for _, t := range all {
		if t.Event == ev.String() {
			kept = append(kept, t)
		}
	}
	return kept
}

func (h *handlers) debug(w http.ResponseWriter, r *http.Request) {
	if h.opts.Machine == nil {
		http.Error(w, "machine not configured", http.StatusServiceUnavailable)
		return
	}

	var req debugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, `body must be {"enabled": true|false}`, http.StatusBadRequest)
		return
	}

	h.opts.Machine.SetDebug(*req.Enabled)
	h.log.Info("debug mode changed", slog.Bool("enabled", *req.Enabled), slog.String("request_id", logger.RequestIDFromContext(r.Context())))

	h.state(w, r)
}

// api lists every route of r with its methods.
func (h *handlers) api(r *mux.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var routes []string
		walker := func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
			path, err := route.GetPathTemplate()
			if err != nil {
				return nil
			}
			methods, _ := route.GetMethods()
			for _, m := range methods {
				routes = append(routes, fmt.Sprintf("%-6s %s", m, path))
			}
			return nil
		}
		if err := r.Walk(walker); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		h.writeJSON(w, http.StatusOK, routes)
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("failed to encode response", slog.Any("error", err))
	}
}
