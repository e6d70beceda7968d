// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vibeteen/mural/internal/domain/feed"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
)

// MemberHeader carries the acting member's id.
const MemberHeader = "X-Member-ID"

const (
	defaultMaxLeaderboardLimit = 100
	maxBodyBytes               = 1 << 16
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	ImpactDependencies
	PrayerDependencies
	BoardDependencies
	LeaderboardDependencies
	MemberDependencies
	StatsProvider
}

// Server wires HTTP routes for the feed API.
type Server struct {
	healthHandler      *HealthHandler
	sessionHandler     *SessionHandler
	impactsHandler     *ImpactsHandler
	prayersHandler     *PrayersHandler
	boardHandler       *BoardHandler
	leaderboardHandler *LeaderboardHandler
	membersHandler     *MembersHandler

	limiter  *RateLimiter
	maxLimit int
	logger   logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit throttles each member to rps requests per second with the
// given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = NewRateLimiter(rps, burst)
		}
	}
}

// WithMaxLeaderboardLimit caps the limit accepted by GET /leaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLimit: defaultMaxLeaderboardLimit,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.sessionHandler = NewSessionHandler(deps)
	s.impactsHandler = NewImpactsHandler(deps)
	s.prayersHandler = NewPrayersHandler(deps)
	s.boardHandler = NewBoardHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.membersHandler = NewMembersHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		if s.limiter != nil {
			h = s.limiter.Limit(h, endpoint)
		}
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)

	route("POST /session", "session", s.sessionHandler.HandleSignIn)
	route("DELETE /session", "session", s.sessionHandler.HandleSignOut)

	route("POST /impacts", "impacts", s.impactsHandler.HandleLogImpact)
	route("POST /impacts/{id}/support", "impact_support", s.impactsHandler.HandleToggleSupport)
	route("POST /impacts/{id}/retry", "impact_retry", s.impactsHandler.HandleRetry)

	route("GET /prayers", "prayers", s.prayersHandler.HandleList)
	route("POST /prayers", "prayers", s.prayersHandler.HandleAdd)
	route("POST /prayers/{id}/support", "prayer_support", s.prayersHandler.HandleToggleSupport)
	route("POST /prayers/{id}/retry", "prayer_retry", s.prayersHandler.HandleRetry)

	route("GET /board", "board", s.boardHandler.HandleBoard)
	route("GET /stats", "stats", s.boardHandler.HandleStats)
	route("GET /notices", "notices", s.boardHandler.HandleNotices)

	route("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	route("GET /mission", "mission", s.leaderboardHandler.HandleMission)
	route("GET /members/{id}", "members", s.membersHandler.HandleGetMember)

	s.logger.Debug(ctx, "api routes registered")
}

// actor returns the acting member id from the request header.
func actor(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(MemberHeader))
	if id == "" {
		return "", ErrMissingMember
	}
	return id, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// impactRequest is the body of POST /impacts.
type impactRequest struct {
	SubmissionID string `json:"submission_id"`
	Kind         string `json:"kind"`
	Recipient    string `json:"recipient"`
}

func (e impactRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Kind) == "":
		return errors.New("missing kind")
	case strings.TrimSpace(e.Recipient) == "":
		return errors.New("missing recipient")
	}
	return nil
}

// prayerRequest is the body of POST /prayers.
type prayerRequest struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (p prayerRequest) validate() error {
	switch {
	case strings.TrimSpace(p.Category) == "":
		return errors.New("missing category")
	case strings.TrimSpace(p.Description) == "":
		return errors.New("missing description")
	}
	return nil
}

// signInRequest is the body of POST /session.
type signInRequest struct {
	MemberID    string `json:"member_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	AvatarColor string `json:"avatar_color"`
	Role        string `json:"role"`
}

func (s signInRequest) validate() error {
	switch {
	case strings.TrimSpace(s.FirstName) == "":
		return errors.New("missing first_name")
	case strings.TrimSpace(s.MemberID) == "" && strings.TrimSpace(s.Email) == "":
		return errors.New("missing member_id or email")
	}
	return nil
}

func (s signInRequest) member() model.Member {
	return model.Member{
		ID:          strings.TrimSpace(s.MemberID),
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Email:       s.Email,
		AvatarColor: s.AvatarColor,
		Role:        model.ParseRole(s.Role),
	}
}

// impactResponse is an impact event as returned by POST /impacts.
type impactResponse struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	AuthorColor string    `json:"author_color"`
	Kind        string    `json:"kind"`
	Recipient   string    `json:"recipient"`
	CreatedAt   time.Time `json:"created_at"`
}

func impactResponseOf(e model.ImpactEvent) impactResponse {
	return impactResponse{
		ID:          e.ID,
		AuthorID:    e.AuthorID,
		AuthorName:  model.ShortName(e.AuthorName),
		AuthorColor: e.AuthorColor,
		Kind:        string(e.Kind),
		Recipient:   e.Recipient,
		CreatedAt:   e.CreatedAt,
	}
}

// prayerResponse is a prayer request as returned by POST /prayers.
type prayerResponse struct {
	ID          string `json:"id"`
	AuthorID    string `json:"author_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type supportResponse struct {
	Supported bool `json:"supported"`
}

type missionResponse struct {
	Mission string `json:"mission"`
}

type leaderboardResponse struct {
	Entries []feed.Entry `json:"entries"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
