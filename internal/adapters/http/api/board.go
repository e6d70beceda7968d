package api

import (
	"net/http"

	service "github.com/vibeteen/mural/internal/app"
)

// BoardDependencies exposes a member's view of the feed.
type BoardDependencies interface {
	Board(memberID string) (service.Board, error)
	Stats(memberID string) (service.Stats, error)
	Notices(memberID string) ([]service.Notice, error)
}

// BoardHandler handles board, stats and notice requests.
type BoardHandler struct {
	deps BoardDependencies
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(deps BoardDependencies) *BoardHandler {
	return &BoardHandler{deps: deps}
}

// HandleBoard handles GET /board.
func (h *BoardHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	const op = "api.board"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	b, err := h.deps.Board(memberID)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleStats handles GET /stats.
func (h *BoardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	stats, err := h.deps.Stats(memberID)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleNotices handles GET /notices. Returned notices are consumed.
func (h *BoardHandler) HandleNotices(w http.ResponseWriter, r *http.Request) {
	const op = "api.notices"
	memberID, err := actor(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	notices, err := h.deps.Notices(memberID)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}
