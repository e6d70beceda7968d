package feed

import "github.com/vibeteen/mural/internal/domain/model"

// Badge names an achievement shown on a member's profile.
type Badge string

const (
	BadgeNovice       Badge = "novice"
	BadgeIntercessor  Badge = "intercessor"
	BadgeEvangelist   Badge = "evangelist"
	BadgeInfluencer   Badge = "influencer"
	BadgeAmbassador   Badge = "ambassador"
	BadgePillarOfFire Badge = "pillar_of_fire"
)

// Badge thresholds.
const (
	noviceGoal      = 1
	kindGoal        = 10
	ambassadorGoal  = 50
	pillarStreakDay = 7
)

// BadgeStatus reports progress towards one badge.
type BadgeStatus struct {
	Badge    Badge `json:"badge"`
	Earned   bool  `json:"earned"`
	Progress int   `json:"progress"`
	Goal     int   `json:"goal"`
}

// Badges evaluates every badge for a member from their own activity and streak.
func Badges(a MemberActivity, m model.Member) []BadgeStatus {
	byKind := func(k model.ActionKind) int {
		if a.ByKind == nil {
			return 0
		}
		return a.ByKind[k]
	}
	status := func(b Badge, progress, goal int) BadgeStatus {
		return BadgeStatus{Badge: b, Earned: progress >= goal, Progress: min(progress, goal), Goal: goal}
	}
	return []BadgeStatus{
		status(BadgeNovice, a.Total, noviceGoal),
		status(BadgeIntercessor, byKind(model.ActionPrayed), kindGoal),
		status(BadgeEvangelist, byKind(model.ActionShared), kindGoal),
		status(BadgeInfluencer, byKind(model.ActionInvited), kindGoal),
		status(BadgeAmbassador, a.Total, ambassadorGoal),
		status(BadgePillarOfFire, m.Streak, pillarStreakDay),
	}
}

// EarnedBadges filters Badges down to the earned ones.
func EarnedBadges(a MemberActivity, m model.Member) []Badge {
	var out []Badge
	for _, s := range Badges(a, m) {
		if s.Earned {
			out = append(out, s.Badge)
		}
	}
	return out
}
