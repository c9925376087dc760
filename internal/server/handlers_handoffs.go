package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ashita-ai/shikko/handoff"
)

// HandleCreateHandoff handles POST /v1/handoffs: prepare a package and
// register it for the target agent. With seal=true the response also
// carries the signed transport token.
func (h *Handlers) HandleCreateHandoff(w http.ResponseWriter, r *http.Request) {
	var req HandoffCreateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	var instructions any
	if req.Instructions != nil {
		instructions = req.Instructions
	} else if req.Task != "" {
		instructions = req.Task
	}

	pkg, err := handoff.Prepare(handoff.Request{
		Source:            req.Source,
		Target:            req.Target,
		Context:           req.Context,
		Instructions:      instructions,
		Priority:          handoff.Priority(req.Priority),
		ExpirationMinutes: req.ExpirationMinutes,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	if err := h.registry.Register(pkg); err != nil {
		writeError(w, r, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}

	resp := HandoffCreateResponse{Package: pkg}
	if req.Seal {
		if h.sealer == nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "sealing not configured")
			return
		}
		sealed, err := h.sealer.Seal(pkg)
		if err != nil {
			h.logger.Error("seal handoff", "error", err, "handoff_id", pkg.ID)
			writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "seal package")
			return
		}
		resp.Sealed = sealed
	}

	writeJSON(w, r, http.StatusCreated, resp)
}

// HandleListHandoffs handles GET /v1/handoffs?target=... — the pending
// queue for one target agent, priority-ordered.
func (h *Handlers) HandleListHandoffs(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "target query parameter is required")
		return
	}
	pending := h.registry.PendingFor(target)
	if pending == nil {
		pending = []*handoff.Package{}
	}
	writeJSON(w, r, http.StatusOK, pending)
}

// HandleGetHandoff handles GET /v1/handoffs/{handoff_id}. Markdown rendering
// via Accept: text/markdown.
func (h *Handlers) HandleGetHandoff(w http.ResponseWriter, r *http.Request) {
	pkg, ok := h.handoffFromPath(w, r)
	if !ok {
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pkg.Markdown()))
		return
	}
	writeJSON(w, r, http.StatusOK, pkg)
}

// HandleUpdateHandoffStatus handles PATCH /v1/handoffs/{handoff_id}/status.
func (h *Handlers) HandleUpdateHandoffStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("handoff_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "handoff_id must be a UUID")
		return
	}

	var req HandoffStatusRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	found, err := h.registry.UpdateStatus(id, handoff.Status(req.Status))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "handoff not found")
		return
	}

	pkg, _ := h.registry.Get(id)
	writeJSON(w, r, http.StatusOK, pkg)
}

// HandleParseHandoff handles POST /v1/handoffs/parse. The body is either a
// raw package document or {"sealed": "<token>"} for sealed transport.
func (h *Handlers) HandleParseHandoff(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "read request body: "+err.Error())
		return
	}

	var pkg *handoff.Package
	var sealedEnvelope struct {
		Sealed string `json:"sealed"`
	}
	if err := json.Unmarshal(raw, &sealedEnvelope); err == nil && sealedEnvelope.Sealed != "" {
		if h.sealer == nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "sealing not configured")
			return
		}
		pkg, err = h.sealer.Open(sealedEnvelope.Sealed)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
	} else {
		pkg, err = handoff.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
	}

	writeJSON(w, r, http.StatusOK, pkg)
}

// handoffFromPath resolves the handoff_id path value, writing the error
// response on failure.
func (h *Handlers) handoffFromPath(w http.ResponseWriter, r *http.Request) (*handoff.Package, bool) {
	id, err := uuid.Parse(r.PathValue("handoff_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "handoff_id must be a UUID")
		return nil, false
	}
	pkg, ok := h.registry.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "handoff not found")
		return nil, false
	}
	return pkg, true
}
