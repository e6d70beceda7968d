package service

import (
	"time"

	"github.com/vibeteen/mural/internal/domain/feed"
	"github.com/vibeteen/mural/internal/domain/hexspiral"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/support"
	"github.com/vibeteen/mural/internal/reconcile"
	"github.com/vibeteen/mural/pkg/metrics"
)

// ItemState is the publish state of an event or request as the member sees it.
type ItemState string

const (
	StatePublished ItemState = "published"
	StateSending   ItemState = "sending"
	StateFailed    ItemState = "failed"
)

// BoardTile is an impact event placed on the board.
type BoardTile struct {
	Index    int             `json:"index"`
	Cell     hexspiral.Axial `json:"cell"`
	Position hexspiral.Point `json:"position"`
	Event    EventView       `json:"event"`
}

// EventView is an impact event rendered for one viewer.
type EventView struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	AuthorColor    string    `json:"author_color"`
	Kind           string    `json:"kind"`
	Recipient      string    `json:"recipient"`
	CreatedAt      time.Time `json:"created_at"`
	SupportCount   int       `json:"support_count"`
	SupportedByMe  bool      `json:"supported_by_me"`
	SupporterNames []string  `json:"supporter_names"`
	State          ItemState `json:"state"`
}

// Board is the member's hex board: the anchor at the origin and one tile per
// event, newest closest to it.
type Board struct {
	Anchor hexspiral.Point  `json:"anchor"`
	Layout hexspiral.Layout `json:"layout"`
	Tiles  []BoardTile      `json:"tiles"`
}

// PrayerView is a prayer request rendered for one viewer.
type PrayerView struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	AuthorColor    string    `json:"author_color"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	SupportCount   int       `json:"support_count"`
	SupportedByMe  bool      `json:"supported_by_me"`
	SupporterNames []string  `json:"supporter_names"`
	State          ItemState `json:"state"`
}

// Stats is the member's dashboard.
type Stats struct {
	Member      model.Member       `json:"member"`
	Rank        int                `json:"rank"`
	TotalImpact int                `json:"total_impact"`
	ByKind      feed.KindCounts    `json:"by_kind"`
	Today       feed.KindCounts    `json:"today"`
	FeedTotal   int                `json:"feed_total"`
	Badges      []feed.BadgeStatus `json:"badges"`
	Pending     int                `json:"pending"`
	Mission     string             `json:"mission"`
}

// Board places the member's view of the feed on the hex spiral.
func (s *Service) Board(memberID string) (Board, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return Board{}, err
	}
	v := sess.View()
	tiles := v.Stream().Board(s.allocator)
	members := v.Members()
	viewer := v.Identity().ID

	out := Board{
		Anchor: s.allocator.Layout().ToPoint(hexspiral.Origin),
		Layout: s.allocator.Layout(),
		Tiles:  make([]BoardTile, len(tiles)),
	}
	for i, t := range tiles {
		out.Tiles[i] = BoardTile{
			Index:    t.Index,
			Cell:     t.Cell,
			Position: t.Point,
			Event:    eventView(v, t.Event, members, viewer),
		}
	}
	metrics.UpdateBoardSize(len(tiles))
	return out, nil
}

// Prayers lists prayer requests newest first, as the member sees them.
func (s *Service) Prayers(memberID string) ([]PrayerView, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return nil, err
	}
	v := sess.View()
	members := v.Members()
	viewer := v.Identity().ID

	reqs := v.Requests()
	out := make([]PrayerView, len(reqs))
	for i, r := range reqs {
		set := support.Normalize(r.Supporters)
		out[i] = PrayerView{
			ID:             r.ID,
			AuthorID:       r.AuthorID,
			AuthorName:     model.ShortName(r.AuthorName),
			AuthorColor:    r.AuthorColor,
			Category:       string(r.Category),
			Description:    r.Description,
			CreatedAt:      r.CreatedAt,
			SupportCount:   set.Len(),
			SupportedByMe:  set.Has(viewer),
			SupporterNames: feed.SupporterNames(set, members, viewer),
			State:          stateOf(v, reconcile.ItemKey{Collection: model.CollectionRequests, ID: r.ID}),
		}
	}
	return out, nil
}

// Stats summarises the member's own activity, rank and badges.
func (s *Service) Stats(memberID string) (Stats, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return Stats{}, err
	}
	v := sess.View()
	me := v.Identity()
	stream := v.Stream()
	mine := stream.ByAuthor(me.ID)

	byKind := mine.ByKind
	if byKind == nil {
		byKind = feed.KindCounts{}
	}
	return Stats{
		Member:      me,
		Rank:        feed.RankOf(v.Members(), me.ID),
		TotalImpact: mine.Total,
		ByKind:      byKind,
		Today:       stream.TodayCountByKind(s.calendar, s.now()),
		FeedTotal:   stream.Len(),
		Badges:      feed.Badges(mine, me),
		Pending:     len(v.PendingKeys()),
		Mission:     s.Mission(),
	}, nil
}

// Leaderboard ranks members by xp. n <= 0 returns everyone.
func (s *Service) Leaderboard(n int) ([]feed.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return feed.Leaderboard(s.members, n), nil
}

func eventView(v reconcile.ViewState, e model.ImpactEvent, members []model.Member, viewer string) EventView {
	set := support.Normalize(e.Supporters)
	return EventView{
		ID:             e.ID,
		AuthorID:       e.AuthorID,
		AuthorName:     model.ShortName(e.AuthorName),
		AuthorColor:    e.AuthorColor,
		Kind:           string(e.Kind),
		Recipient:      e.Recipient,
		CreatedAt:      e.CreatedAt,
		SupportCount:   set.Len(),
		SupportedByMe:  set.Has(viewer),
		SupporterNames: feed.SupporterNames(set, members, viewer),
		State:          stateOf(v, reconcile.ItemKey{Collection: model.CollectionEvents, ID: e.ID}),
	}
}

func stateOf(v reconcile.ViewState, k reconcile.ItemKey) ItemState {
	p, ok := v.Pending(k)
	switch {
	case !ok:
		return StatePublished
	case p.Failed:
		return StateFailed
	default:
		return StateSending
	}
}
