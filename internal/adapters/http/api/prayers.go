package api

import (
	"context"
	"net/http"

	service "github.com/vibeteen/mural/internal/app"
	"github.com/vibeteen/mural/internal/domain/model"
)

// PrayerDependencies defines the interface for prayer request operations.
type PrayerDependencies interface {
	AddPrayerRequest(ctx context.Context, memberID, category, description string) (model.PrayerRequest, error)
	RetryPrayerRequest(ctx context.Context, memberID, requestID string) (model.PrayerRequest, error)
	TogglePrayerSupport(ctx context.Context, memberID, requestID string) (bool, error)
	Prayers(memberID string) ([]service.PrayerView, error)
}

// PrayersHandler handles prayer request requests.
type PrayersHandler struct {
	deps PrayerDependencies
}

// NewPrayersHandler creates a new prayers handler.
func NewPrayersHandler(deps PrayerDependencies) *PrayersHandler {
	return &PrayersHandler{deps: deps}
}

// HandleAdd handles POST /prayers.
func (h *PrayersHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_prayer"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	var req prayerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.AddPrayerRequest(r.Context(), memberID, req.Category, req.Description)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, prayerResponseOf(p))
}

// HandleList handles GET /prayers.
func (h *PrayersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_prayers"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	prayers, err := h.deps.Prayers(memberID)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, prayers)
}

// HandleRetry handles POST /prayers/{id}/retry.
func (h *PrayersHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	const op = "api.retry_prayer"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	p, err := h.deps.RetryPrayerRequest(r.Context(), memberID, r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, prayerResponseOf(p))
}

// HandleToggleSupport handles POST /prayers/{id}/support.
func (h *PrayersHandler) HandleToggleSupport(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle_prayer_support"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	on, err := h.deps.TogglePrayerSupport(r.Context(), memberID, r.PathValue("id"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, supportResponse{Supported: on})
}

func prayerResponseOf(p model.PrayerRequest) prayerResponse {
	return prayerResponse{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Category:    string(p.Category),
		Description: p.Description,
	}
}
