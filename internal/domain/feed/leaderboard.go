package feed

import (
	"cmp"
	"slices"

	"github.com/vibeteen/mural/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank        int    `json:"rank"`
	MemberID    string `json:"member_id"`
	Name        string `json:"name"`
	AvatarColor string `json:"avatar_color"`
	XP          int    `json:"xp"`
	Streak      int    `json:"streak"`
}

// Leaderboard ranks regular members by xp desc, then streak desc, then id asc.
// Visitors are left out. n <= 0 returns every member.
func Leaderboard(members []model.Member, n int) []Entry {
	ranked := make([]model.Member, 0, len(members))
	for _, m := range members {
		if m.IsVisitor() || m.ID == "" {
			continue
		}
		ranked = append(ranked, m)
	}
	slices.SortFunc(ranked, func(a, b model.Member) int {
		if c := cmp.Compare(b.XP, a.XP); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Streak, a.Streak); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}

	out := make([]Entry, len(ranked))
	for i, m := range ranked {
		out[i] = Entry{
			Rank:        i + 1,
			MemberID:    m.ID,
			Name:        m.ShortName(),
			AvatarColor: m.AvatarColor,
			XP:          m.XP,
			Streak:      m.Streak,
		}
	}
	return out
}

// RankOf returns memberID's 1-based position, or 0 when unranked.
func RankOf(members []model.Member, memberID string) int {
	for _, e := range Leaderboard(members, 0) {
		if e.MemberID == memberID {
			return e.Rank
		}
	}
	return 0
}
