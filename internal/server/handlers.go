package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
	"github.com/ashita-ai/shikko/internal/ctxutil"
	"github.com/ashita-ai/shikko/internal/history"
	"github.com/ashita-ai/shikko/strategy"
)

// RunDefaults are the execution options applied when a request does not
// override them.
type RunDefaults struct {
	Timeout  time.Duration
	FailFast bool
	Verbose  bool
}

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	catalog  *docgen.Catalog
	registry *handoff.Registry
	sealer   *handoff.Sealer
	history  *history.Store
	logger   *slog.Logger

	version     string
	startTime   time.Time
	maxBody     int64
	runDefaults RunDefaults
	openAPISpec []byte
}

// HandlersDeps holds the dependencies for creating Handlers.
type HandlersDeps struct {
	Catalog  *docgen.Catalog
	Registry *handoff.Registry
	Sealer   *handoff.Sealer
	History  *history.Store
	Logger   *slog.Logger

	Version             string
	MaxRequestBodyBytes int64
	RunDefaults         RunDefaults
	OpenAPISpec         []byte
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	return &Handlers{
		catalog:     deps.Catalog,
		registry:    deps.Registry,
		sealer:      deps.Sealer,
		history:     deps.History,
		logger:      deps.Logger,
		version:     deps.Version,
		startTime:   time.Now(),
		maxBody:     deps.MaxRequestBodyBytes,
		runDefaults: deps.RunDefaults,
		openAPISpec: deps.OpenAPISpec,
	}
}

// decodeJSON decodes a JSON request body into the target struct, enforcing
// the configured body size limit.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    h.version,
		Strategies: len(h.catalog.List()),
		RunsHeld:   h.history.Len(),
		Handoffs:   h.registry.Len(),
		Uptime:     int64(time.Since(h.startTime).Seconds()),
	})
}

// HandleVersion handles GET /v1/version.
func (h *Handlers) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{Version: h.version})
}

// HandleListStrategies handles GET /v1/strategies.
func (h *Handlers) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.catalog.List())
}

// HandleRun handles POST /v1/run. Every completed run comes back 200 with
// the result envelope; ok=false failures are outcomes, not HTTP errors.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Strategy == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "strategy is required")
		return
	}

	opts := h.runOptions(req.Options)
	startedAt := time.Now().UTC()
	res := h.catalog.Run(r.Context(), req.Strategy, req.Input, opts...)

	runID := h.history.Add(history.Record{
		Strategy:   req.Strategy,
		OK:         res.OK,
		Code:       res.Code,
		Agent:      ctxutil.AgentFromContext(r.Context()),
		StartedAt:  startedAt,
		DurationMs: float64(res.DurationMs),
		Trace:      res.Trace,
	})

	writeJSON(w, r, http.StatusOK, RunResponse{RunID: runID.String(), Result: res})
}

// runOptions folds request overrides over the configured defaults.
func (h *Handlers) runOptions(o *RunOptions) []strategy.Option {
	d := h.runDefaults
	if o != nil {
		if o.FailFast != nil {
			d.FailFast = *o.FailFast
		}
		if o.TimeoutMs != nil {
			d.Timeout = time.Duration(*o.TimeoutMs) * time.Millisecond
		}
		if o.Verbose != nil {
			d.Verbose = *o.Verbose
		}
	}
	return []strategy.Option{
		strategy.WithTimeout(d.Timeout),
		strategy.WithFailFast(d.FailFast),
		strategy.WithVerbose(d.Verbose),
		strategy.WithLogger(h.logger),
	}
}

// HandleListRuns handles GET /v1/runs.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records := h.history.Recent(limit)
	out := make([]RunRecordResponse, len(records))
	for i, rec := range records {
		out[i] = runRecordResponse(rec)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// HandleGetRun handles GET /v1/runs/{run_id}.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.runFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		RunRecordResponse
		Trace any `json:"trace,omitempty"`
	}{
		RunRecordResponse: runRecordResponse(rec),
		Trace:             rec.Trace,
	})
}

// HandleRunTrace handles GET /v1/runs/{run_id}/trace. Returns the trace
// rendered as markdown.
func (h *Handlers) HandleRunTrace(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.runFromPath(w, r)
	if !ok {
		return
	}
	if rec.Trace == nil {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "run has no trace recorded")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rec.Trace.Markdown()))
}

// runFromPath resolves the run_id path value, writing the error response on
// failure.
func (h *Handlers) runFromPath(w http.ResponseWriter, r *http.Request) (history.Record, bool) {
	id, err := uuid.Parse(r.PathValue("run_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "run_id must be a UUID")
		return history.Record{}, false
	}
	rec, ok := h.history.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "run not found")
		return history.Record{}, false
	}
	return rec, true
}

func runRecordResponse(rec history.Record) RunRecordResponse {
	return RunRecordResponse{
		ID:         rec.ID.String(),
		Strategy:   rec.Strategy,
		OK:         rec.OK,
		Code:       rec.Code,
		Agent:      rec.Agent,
		StartedAt:  rec.StartedAt,
		DurationMs: rec.DurationMs,
	}
}

// HandleOpenAPISpec handles GET /v1/openapi.yaml.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openAPISpec) == 0 {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "openapi spec not embedded")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openAPISpec)
}
