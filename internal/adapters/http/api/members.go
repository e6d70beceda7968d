package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/vibeteen/mural/internal/domain/model"
)

// MemberDependencies defines the interface for member lookups.
type MemberDependencies interface {
	Member(ctx context.Context, memberID string) (model.Member, error)
}

// MembersHandler handles member requests.
type MembersHandler struct {
	deps MemberDependencies
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(deps MemberDependencies) *MembersHandler {
	return &MembersHandler{deps: deps}
}

// HandleGetMember handles GET /members/{id}.
func (h *MembersHandler) HandleGetMember(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_member"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	m, err := h.deps.Member(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
