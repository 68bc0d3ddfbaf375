// Package admin serves the local operations endpoint: liveness, Prometheus
// metrics, the next-due view of every job and the run history.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"serialsched/internal/storage"
	"serialsched/internal/task/scheduler"
	logx "serialsched/pkg/logx"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Deps are the read-only views the endpoint exposes. Any of them may be nil.
type Deps struct {
	Log logx.Logger
	// Jobs returns the current scheduler snapshot.
	Jobs func() []scheduler.ProducerInfo
	// Running reports whether the dispatch loop is active.
	Running func() bool
	Metrics http.Handler
	History storage.Store
}

type jobView struct {
	Name    string     `json:"name"`
	Rule    string     `json:"rule"`
	Timeout string     `json:"timeout"`
	Next    *time.Time `json:"next,omitempty"`
}

type runView struct {
	ID       string    `json:"id"`
	Job      string    `json:"job"`
	Due      time.Time `json:"due"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
	Lag      string    `json:"lag"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewRouter builds the chi router for d.
func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{deps: d, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{name}", h.getJob)
	r.Get("/history", h.history)
	r.Mount("/debug", middleware.Profiler())
	return r
}

type handlers struct {
	deps Deps
	log  logx.Logger
}

func (h *handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("admin request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)),
		)
	})
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	running := h.deps.Running == nil || h.deps.Running()
	status := http.StatusOK
	if !running {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "running": running})
}

func (h *handlers) jobs() []jobView {
	if h.deps.Jobs == nil {
		return []jobView{}
	}
	infos := h.deps.Jobs()
	out := make([]jobView, 0, len(infos))
	for _, p := range infos {
		v := jobView{Name: p.Name, Rule: p.Rule, Timeout: p.Timeout.String()}
		if !p.Next.IsZero() {
			next := p.Next
			v.Next = &next
		}
		out = append(out, v)
	}
	return out
}

func (h *handlers) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs())
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, j := range h.jobs() {
		if j.Name == name {
			writeJSON(w, http.StatusOK, j)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody{Error: "job not found: " + name})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: storage.ErrDisabled.Error()})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := h.deps.History.ListRuns(r.Context(), r.URL.Query().Get("job"), limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrDisabled) {
			status = http.StatusServiceUnavailable
		}
		h.log.Warn("admin history failed", logx.Err(err))
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, runView{
			ID:       run.ID,
			Job:      run.Job,
			Due:      run.Due,
			Started:  run.Started,
			Duration: run.Duration.String(),
			Lag:      run.Lag().String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
