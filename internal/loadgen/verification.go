package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/scoring"
	"github.com/vibeteen/mural/pkg/logger"
)

// ErrMismatch is returned when the service state disagrees with what was sent.
var ErrMismatch = errors.New("load run verification failed")

const maxReportedMismatches = 5

// expectedXP sums the XP each member should hold from the accepted submissions.
func expectedXP(accepted map[string]Submission, table scoring.XPTable) map[string]int {
	out := make(map[string]int)
	for _, sub := range accepted {
		out[sub.MemberID] += table[model.ActionKind(sub.Kind)]
	}
	return out
}

// verifyResults checks stored XP per member and the leaderboard order.
func verifyResults(ctx context.Context, cfg *Config, memberIDs []string, accepted map[string]Submission, members map[string]Member, board []Entry) error {
	log := logger.Get()
	want := expectedXP(accepted, cfg.XPTable)

	var problems []string
	for _, id := range memberIDs {
		m, ok := members[id]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: not read back", id))
			continue
		}
		if m.XP != want[id] {
			problems = append(problems, fmt.Sprintf("%s: xp %d, want %d", id, m.XP, want[id]))
		}
		if want[id] > 0 && m.Streak != 1 {
			problems = append(problems, fmt.Sprintf("%s: streak %d, want 1", id, m.Streak))
		}
	}
	if err := verifyLeaderboardOrder(board); err != nil {
		problems = append(problems, err.Error())
	}

	displayTopMembers(ctx, memberIDs, members, board)

	if len(problems) > 0 {
		for _, p := range problems[:min(len(problems), maxReportedMismatches)] {
			log.Warn(ctx, "mismatch", logger.String("detail", p))
		}
		return fmt.Errorf("%w: %d problems, first: %s", ErrMismatch, len(problems), problems[0])
	}
	log.Info(ctx, "results verified", logger.Int("members", len(memberIDs)))
	return nil
}

// verifyLeaderboardOrder checks ranks are 1-based and entries sorted by xp
// then streak, both descending.
func verifyLeaderboardOrder(board []Entry) error {
	for i, e := range board {
		if e.Rank != i+1 {
			return fmt.Errorf("leaderboard entry %d has rank %d", i, e.Rank)
		}
		if i == 0 {
			continue
		}
		prev := board[i-1]
		if e.XP > prev.XP || (e.XP == prev.XP && e.Streak > prev.Streak) {
			return fmt.Errorf("leaderboard not sorted at entry %d", i)
		}
	}
	return nil
}

func displayTopMembers(ctx context.Context, ids []string, members map[string]Member, board []Entry) {
	log := logger.Get()

	sorted := make([]Member, 0, len(ids))
	for _, id := range ids {
		if m, ok := members[id]; ok {
			sorted = append(sorted, m)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].XP != sorted[j].XP {
			return sorted[i].XP > sorted[j].XP
		}
		return sorted[i].ID < sorted[j].ID
	})

	top := min(len(sorted), 10)
	var b strings.Builder
	for i, m := range sorted[:top] {
		fmt.Fprintf(&b, "%d. %s %dxp; ", i+1, m.ID, m.XP)
	}
	log.Info(ctx, "top load members", logger.String("members", b.String()))

	if len(board) > 0 {
		log.Info(ctx, "leaderboard head",
			logger.String("memberID", board[0].MemberID),
			logger.Int("xp", board[0].XP),
			logger.Int("entries", len(board)))
	}
}
