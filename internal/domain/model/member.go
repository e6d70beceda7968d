// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Role separates full members from read-mostly visitors.
type Role string

const (
	RoleRegular Role = "regular"
	RoleVisitor Role = "visitor"
)

// ParseRole maps stored role strings onto a Role. Unknown values are regular members.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleVisitor):
		return RoleVisitor
	default:
		return RoleRegular
	}
}

// AvatarPalette is the fixed set of avatar tokens handed out at sign-up.
var AvatarPalette = []string{
	"primary",
	"action-blue",
	"orange-500",
	"red-500",
	"purple-600",
	"yellow-600",
	"pink-500",
	"teal-500",
}

// Member is a participant of the feed and carries its gamification state.
type Member struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email,omitempty"`
	AvatarColor    string    `json:"avatar_color"`
	Role           Role      `json:"role"`
	XP             int       `json:"xp"`
	Streak         int       `json:"streak"`
	LongestStreak  int       `json:"longest_streak"`
	LastActiveDate Day       `json:"last_active_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsVisitor reports whether the member may only browse and support.
func (m Member) IsVisitor() bool { return m.Role == RoleVisitor }

// FullName joins the name parts.
func (m Member) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// ShortName is the compact display form used on tiles, e.g. "Samuel D.".
func (m Member) ShortName() string { return ShortName(m.FullName()) }

// ShortName keeps the first word and the initial of the last word.
func ShortName(full string) string {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	last := parts[len(parts)-1]
	r, _ := utf8.DecodeRuneInString(last)
	return parts[0] + " " + string(r) + "."
}

// MemberIDFromLogin derives a stable member id from a login handle,
// so the same e-mail or phone always lands on the same record.
func MemberIDFromLogin(login string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(login) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "user_" + b.String()
}
