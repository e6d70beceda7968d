// Package scoring computes experience points and day streaks from logged events.
package scoring

import (
	"time"

	"github.com/vibeteen/mural/internal/domain/model"
)

// Default XP per action kind.
const (
	defaultPrayedXP  = 10
	defaultHelpedXP  = 15
	defaultSharedXP  = 25
	defaultInvitedXP = 50
)

// XPTable maps action kinds to experience points.
type XPTable map[model.ActionKind]int

// DefaultXPTable returns a fresh copy of the default table.
func DefaultXPTable() XPTable {
	return XPTable{
		model.ActionPrayed:  defaultPrayedXP,
		model.ActionHelped:  defaultHelpedXP,
		model.ActionShared:  defaultSharedXP,
		model.ActionInvited: defaultInvitedXP,
	}
}

// ParseXPTable converts a configured name->points map. Unknown kinds and
// non-positive values are dropped; kinds left unset keep their defaults.
func ParseXPTable(raw map[string]int) XPTable {
	table := DefaultXPTable()
	for name, xp := range raw {
		kind, err := model.ParseActionKind(name)
		if err != nil || xp <= 0 {
			continue
		}
		table[kind] = xp
	}
	return table
}

// StreakChange describes what an event did to the streak.
type StreakChange int

const (
	// StreakKept means the member had already been active that day.
	StreakKept StreakChange = iota
	// StreakContinued means the member was active the day before.
	StreakContinued
	// StreakRestarted means a gap (or no history) started a new streak at 1.
	StreakRestarted
)

func (c StreakChange) String() string {
	switch c {
	case StreakKept:
		return "kept"
	case StreakContinued:
		return "continued"
	case StreakRestarted:
		return "restarted"
	}
	return "unknown"
}

// State is the gamification part of a member.
type State struct {
	XP             int
	Streak         int
	LongestStreak  int
	LastActiveDate model.Day
}

// StateOf extracts the gamification state of m.
func StateOf(m model.Member) State {
	return State{
		XP:             m.XP,
		Streak:         m.Streak,
		LongestStreak:  m.LongestStreak,
		LastActiveDate: m.LastActiveDate,
	}
}

// ApplyTo returns a copy of m carrying s.
func (s State) ApplyTo(m model.Member) model.Member {
	m.XP = s.XP
	m.Streak = s.Streak
	m.LongestStreak = s.LongestStreak
	m.LastActiveDate = s.LastActiveDate
	return m
}

// Result is the outcome of applying one event.
type Result struct {
	Before State
	After  State
	Delta  int
	Change StreakChange
}

// Ledger applies logged events to gamification state. It holds only
// configuration and is safe for concurrent use.
type Ledger struct {
	table    XPTable
	calendar model.Calendar
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithXPTable replaces the XP table. Kinds missing from t earn nothing.
func WithXPTable(t XPTable) Option {
	return func(l *Ledger) {
		if len(t) == 0 {
			return
		}
		l.table = make(XPTable, len(t))
		for k, v := range t {
			if v > 0 {
				l.table[k] = v
			}
		}
	}
}

// WithCalendar sets the timezone policy used by ApplyAt.
func WithCalendar(c model.Calendar) Option {
	return func(l *Ledger) { l.calendar = c }
}

// NewLedger creates a Ledger with the default table and a UTC calendar.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		table:    DefaultXPTable(),
		calendar: model.UTC(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// XPFor returns the points earned by one event of kind.
func (l *Ledger) XPFor(kind model.ActionKind) int {
	return l.table[kind]
}

// Calendar returns the calendar used to derive days.
func (l *Ledger) Calendar() model.Calendar { return l.calendar }

// Apply computes the state after one event of kind on day today.
// XP never decreases and LastActiveDate always becomes today.
func (l *Ledger) Apply(s State, kind model.ActionKind, today model.Day) Result {
	before := normalize(s)
	streak, change := NextStreak(before.Streak, before.LastActiveDate, today)

	delta := l.XPFor(kind)
	after := State{
		XP:             before.XP + delta,
		Streak:         streak,
		LongestStreak:  max(before.LongestStreak, streak),
		LastActiveDate: today,
	}
	return Result{Before: before, After: after, Delta: delta, Change: change}
}

// ApplyAt is Apply with the day taken from an instant through the ledger's calendar.
func (l *Ledger) ApplyAt(s State, kind model.ActionKind, at time.Time) Result {
	return l.Apply(s, kind, l.calendar.DayOf(at))
}

// NextStreak applies the day rule: same day keeps the streak, the next day
// continues it, anything else (including no valid history) restarts at 1.
func NextStreak(streak int, last, today model.Day) (int, StreakChange) {
	if streak < 0 {
		streak = 0
	}
	if !last.Valid() {
		return 1, StreakRestarted
	}
	switch {
	case last == today:
		return streak, StreakKept
	case last == today.Prev():
		return streak + 1, StreakContinued
	default:
		return 1, StreakRestarted
	}
}

func normalize(s State) State {
	s.XP = max(s.XP, 0)
	s.Streak = max(s.Streak, 0)
	s.LongestStreak = max(s.LongestStreak, s.Streak)
	if !s.LastActiveDate.Valid() {
		s.LastActiveDate = ""
	}
	return s
}
