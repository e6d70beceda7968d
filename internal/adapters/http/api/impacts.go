package api

import (
	"context"
	"net/http"

	"github.com/vibeteen/mural/internal/domain/model"
)

// ImpactDependencies defines the interface for impact event operations.
type ImpactDependencies interface {
	LogImpact(ctx context.Context, memberID, submissionID string, kind model.ActionKind, recipient string) (model.ImpactEvent, error)
	RetryImpact(ctx context.Context, memberID, eventID string) (model.ImpactEvent, error)
	ToggleEventSupport(ctx context.Context, memberID, eventID string) (bool, error)
}

// ImpactsHandler handles impact event requests.
type ImpactsHandler struct {
	deps ImpactDependencies
}

// NewImpactsHandler creates a new impacts handler.
func NewImpactsHandler(deps ImpactDependencies) *ImpactsHandler {
	return &ImpactsHandler{deps: deps}
}

// HandleLogImpact handles POST /impacts. The write completes in the
// background, so success is 202 Accepted.
func (h *ImpactsHandler) HandleLogImpact(w http.ResponseWriter, r *http.Request) {
	const op = "api.log_impact"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var req impactRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	kind, err := model.ParseActionKind(req.Kind)
	if err != nil {
		writeFailure(w, op, err)
		return
	}

	e, err := h.deps.LogImpact(r.Context(), memberID, req.SubmissionID, kind, req.Recipient)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, impactResponseOf(e))
}

// HandleRetry handles POST /impacts/{id}/retry.
func (h *ImpactsHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	const op = "api.retry_impact"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	e, err := h.deps.RetryImpact(r.Context(), memberID, r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, impactResponseOf(e))
}

// HandleToggleSupport handles POST /impacts/{id}/support.
func (h *ImpactsHandler) HandleToggleSupport(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle_impact_support"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	on, err := h.deps.ToggleEventSupport(r.Context(), memberID, r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, supportResponse{Supported: on})
}
