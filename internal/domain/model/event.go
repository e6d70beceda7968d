package model

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind is the type of act an ImpactEvent records.
type ActionKind string

const (
	ActionPrayed  ActionKind = "prayed"
	ActionHelped  ActionKind = "helped"
	ActionShared  ActionKind = "shared"
	ActionInvited ActionKind = "invited"
)

// ActionKinds lists every kind in display order.
var ActionKinds = []ActionKind{ActionPrayed, ActionHelped, ActionShared, ActionInvited}

// ParseActionKind validates a kind string.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ActionKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// ImpactEvent is one logged act of service. Author fields are captured at
// creation and never follow later profile edits.
type ImpactEvent struct {
	ID          string
	AuthorID    string
	AuthorName  string
	AuthorColor string
	Kind        ActionKind
	Recipient   string
	CreatedAt   time.Time
	Supporters  []string
}

// Category classifies a PrayerRequest.
type Category string

const (
	CategoryHealth   Category = "health"
	CategorySchool   Category = "school"
	CategoryFamily   Category = "family"
	CategoryPersonal Category = "personal"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryHealth, CategoryFamily, CategorySchool, CategoryPersonal, CategoryOther}

var categoryAliases = map[string]Category{
	"saúde":   CategoryHealth,
	"saude":   CategoryHealth,
	"escola":  CategorySchool,
	"família": CategoryFamily,
	"familia": CategoryFamily,
	"pessoal": CategoryPersonal,
	"outro":   CategoryOther,
}

// ParseCategory validates a category, also accepting the localized labels.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if key == string(c) {
			return c, nil
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// PrayerRequest is a member's request for prayer.
type PrayerRequest struct {
	ID          string
	AuthorID    string
	AuthorName  string
	AuthorColor string
	Category    Category
	Description string
	CreatedAt   time.Time
	Supporters  []string
}
