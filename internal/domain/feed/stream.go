// Package feed derives the views members see from the shared event stream:
// per-kind counts, per-member activity, the board, badges and the leaderboard.
package feed

import (
	"slices"
	"time"

	"github.com/vibeteen/mural/internal/domain/model"
)

// KindCounts holds a count for every action kind, zero included.
type KindCounts map[model.ActionKind]int

func newKindCounts() KindCounts {
	c := make(KindCounts, len(model.ActionKinds))
	for _, k := range model.ActionKinds {
		c[k] = 0
	}
	return c
}

// Total sums every kind.
func (c KindCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// MemberActivity aggregates one member's own events.
type MemberActivity struct {
	Total  int
	ByKind KindCounts
	LastAt time.Time
}

// Stream is an immutable, newest-first view over impact events.
type Stream struct {
	events []model.ImpactEvent
}

// NewStream copies events and sorts them newest first. Upstream order is
// never trusted.
func NewStream(events []model.ImpactEvent) Stream {
	return Stream{events: SortEvents(events)}
}

// SortEvents returns a newest-first copy of events, ties broken by id.
func SortEvents(events []model.ImpactEvent) []model.ImpactEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.ImpactEvent) int {
		return model.CompareNewestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out
}

// SortRequests returns a newest-first copy of requests, ties broken by id.
func SortRequests(reqs []model.PrayerRequest) []model.PrayerRequest {
	out := slices.Clone(reqs)
	slices.SortStableFunc(out, func(a, b model.PrayerRequest) int {
		return model.CompareNewestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out
}

// Len returns the number of events.
func (s Stream) Len() int { return len(s.events) }

// Events returns the events newest first.
func (s Stream) Events() []model.ImpactEvent { return slices.Clone(s.events) }

// All iterates events newest first.
func (s Stream) All(yield func(int, model.ImpactEvent) bool) {
	for i, e := range s.events {
		if !yield(i, e) {
			return
		}
	}
}

// CountByKind counts every event by kind.
func (s Stream) CountByKind() KindCounts {
	c := newKindCounts()
	for _, e := range s.events {
		c[e.Kind]++
	}
	return c
}

// TodayCountByKind counts the events created on today's calendar day.
func (s Stream) TodayCountByKind(cal model.Calendar, now time.Time) KindCounts {
	today := cal.DayOf(now)
	c := newKindCounts()
	for _, e := range s.events {
		if cal.DayOf(e.CreatedAt) == today {
			c[e.Kind]++
		}
	}
	return c
}

// ByAuthor aggregates the events authored by memberID.
func (s Stream) ByAuthor(memberID string) MemberActivity {
	a := MemberActivity{ByKind: newKindCounts()}
	for _, e := range s.events {
		if e.AuthorID != memberID {
			continue
		}
		a.Total++
		a.ByKind[e.Kind]++
		if e.CreatedAt.After(a.LastAt) {
			a.LastAt = e.CreatedAt
		}
	}
	return a
}

// Authors aggregates activity for every author in the stream.
func (s Stream) Authors() map[string]MemberActivity {
	out := make(map[string]MemberActivity)
	for _, e := range s.events {
		a, ok := out[e.AuthorID]
		if !ok {
			a = MemberActivity{ByKind: newKindCounts()}
		}
		a.Total++
		a.ByKind[e.Kind]++
		if e.CreatedAt.After(a.LastAt) {
			a.LastAt = e.CreatedAt
		}
		out[e.AuthorID] = a
	}
	return out
}
