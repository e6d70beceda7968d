package api

import (
	"context"
	"net/http"

	"github.com/vibeteen/mural/internal/domain/model"
)

// SessionDependencies signs members in and out.
type SessionDependencies interface {
	SignIn(ctx context.Context, m model.Member) (model.Member, error)
	SignOut(ctx context.Context, memberID string) error
}

// SessionHandler handles session requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleSignIn handles POST /session.
func (h *SessionHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_in"
	var req signInRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.SignIn(r.Context(), req.member())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleSignOut handles DELETE /session for the member in the header.
func (h *SessionHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_out"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if err := h.deps.SignOut(r.Context(), memberID); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
