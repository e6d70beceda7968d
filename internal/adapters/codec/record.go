package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/support"
)

// Document field names.
const (
	FieldID             = "id"
	FieldCreatedAt      = "createdAt"
	FieldFirstName      = "firstName"
	FieldLastName       = "lastName"
	FieldEmail          = "email"
	FieldAvatarColor    = "avatarColor"
	FieldRole           = "role"
	FieldXP             = "xp"
	FieldStreak         = "streak"
	FieldLongestStreak  = "longestStreak"
	FieldLastActiveDate = "lastActiveDate"
	FieldAuthorID       = "authorId"
	FieldAuthorName     = "authorName"
	FieldAuthorColor    = "authorColor"
	FieldKind           = "kind"
	FieldRecipient      = "recipient"
	FieldCategory       = "category"
	FieldDescription    = "description"
	FieldSupporters     = "supporters"
)

// Records converts between model.Record and Document.
type Records struct {
	calendar model.Calendar
}

// NewRecords creates a record codec. Stored dates are normalized through cal.
func NewRecords(cal model.Calendar) *Records {
	return &Records{calendar: cal}
}

// Encode turns a record into a document.
func (c *Records) Encode(rec model.Record) (Document, error) {
	switch r := rec.(type) {
	case model.MemberRecord:
		return Document{
			FieldID:             r.ID,
			FieldFirstName:      r.FirstName,
			FieldLastName:       r.LastName,
			FieldEmail:          r.Email,
			FieldAvatarColor:    r.AvatarColor,
			FieldRole:           string(r.Role),
			FieldXP:             int64(r.XP),
			FieldStreak:         int64(r.Streak),
			FieldLongestStreak:  int64(r.LongestStreak),
			FieldLastActiveDate: string(r.LastActiveDate),
			FieldCreatedAt:      encodeTime(r.CreatedAt),
		}, nil
	case model.EventRecord:
		return Document{
			FieldID:          r.ID,
			FieldAuthorID:    r.AuthorID,
			FieldAuthorName:  r.AuthorName,
			FieldAuthorColor: r.AuthorColor,
			FieldKind:        string(r.ImpactEvent.Kind),
			FieldRecipient:   r.Recipient,
			FieldCreatedAt:   encodeTime(r.CreatedAt),
			FieldSupporters:  []string(support.Normalize(r.Supporters)),
		}, nil
	case model.RequestRecord:
		return Document{
			FieldID:          r.ID,
			FieldAuthorID:    r.AuthorID,
			FieldAuthorName:  r.AuthorName,
			FieldAuthorColor: r.AuthorColor,
			FieldCategory:    string(r.Category),
			FieldDescription: r.Description,
			FieldCreatedAt:   encodeTime(r.CreatedAt),
			FieldSupporters:  []string(support.Normalize(r.Supporters)),
		}, nil
	}
	return nil, fmt.Errorf("%w: unsupported record %T", ErrInvalidRecord, rec)
}

// Decode validates a document from collection col. Required fields are the
// id, plus author, timestamp and kind for events and requests. Every other
// field falls back to its zero value when missing or mistyped.
func (c *Records) Decode(col model.Collection, doc Document) (model.Record, error) {
	id := str(doc, FieldID)
	if id == "" {
		return nil, missing(col, FieldID)
	}

	switch col.Kind() {
	case model.KindMember:
		created, _ := timeField(doc, FieldCreatedAt)
		streak := nonNegative(intField(doc, FieldStreak))
		return model.MemberRecord{Member: model.Member{
			ID:             id,
			FirstName:      str(doc, FieldFirstName),
			LastName:       str(doc, FieldLastName),
			Email:          str(doc, FieldEmail),
			AvatarColor:    str(doc, FieldAvatarColor),
			Role:           model.ParseRole(str(doc, FieldRole)),
			XP:             nonNegative(intField(doc, FieldXP)),
			Streak:         streak,
			LongestStreak:  max(streak, nonNegative(intField(doc, FieldLongestStreak))),
			LastActiveDate: c.calendar.ParseDay(str(doc, FieldLastActiveDate)),
			CreatedAt:      created,
		}}, nil

	case model.KindEvent:
		author, created, err := authored(col, doc)
		if err != nil {
			return nil, err
		}
		kind, err := model.ParseActionKind(str(doc, FieldKind))
		if err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %w", ErrInvalidRecord, col, id, err)
		}
		return model.EventRecord{ImpactEvent: model.ImpactEvent{
			ID:          id,
			AuthorID:    author,
			AuthorName:  str(doc, FieldAuthorName),
			AuthorColor: str(doc, FieldAuthorColor),
			Kind:        kind,
			Recipient:   str(doc, FieldRecipient),
			CreatedAt:   created,
			Supporters:  support.Normalize(stringList(doc[FieldSupporters])),
		}}, nil

	case model.KindRequest:
		author, created, err := authored(col, doc)
		if err != nil {
			return nil, err
		}
		category, err := model.ParseCategory(str(doc, FieldCategory))
		if err != nil {
			category = model.CategoryOther
		}
		return model.RequestRecord{PrayerRequest: model.PrayerRequest{
			ID:          id,
			AuthorID:    author,
			AuthorName:  str(doc, FieldAuthorName),
			AuthorColor: str(doc, FieldAuthorColor),
			Category:    category,
			Description: str(doc, FieldDescription),
			CreatedAt:   created,
			Supporters:  support.Normalize(stringList(doc[FieldSupporters])),
		}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, col)
}

// GamificationFields is the partial update written after a member logs an event.
func GamificationFields(m model.Member) Document {
	return Document{
		FieldXP:             int64(m.XP),
		FieldStreak:         int64(m.Streak),
		FieldLongestStreak:  int64(m.LongestStreak),
		FieldLastActiveDate: string(m.LastActiveDate),
	}
}

// SupportFields is the partial update toggling memberID's support mark.
func SupportFields(memberID string, on bool) Document {
	if on {
		return Document{FieldSupporters: model.ArrayUnion(memberID)}
	}
	return Document{FieldSupporters: model.ArrayRemove(memberID)}
}

// ApplySetOp applies a set operation to a stored list value.
func ApplySetOp(current any, op model.SetOp) []string {
	set := support.Normalize(stringList(current))
	for _, v := range op.Values {
		if op.Remove {
			set = set.Remove(v)
		} else {
			set = set.Add(v)
		}
	}
	return []string(set)
}

func authored(col model.Collection, doc Document) (string, time.Time, error) {
	author := str(doc, FieldAuthorID)
	if author == "" {
		return "", time.Time{}, missing(col, FieldAuthorID)
	}
	created, ok := timeField(doc, FieldCreatedAt)
	if !ok {
		return "", time.Time{}, missing(col, FieldCreatedAt)
	}
	return author, created, nil
}

func missing(col model.Collection, field string) error {
	return fmt.Errorf("%w: %s: missing %s", ErrInvalidRecord, col, field)
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func str(doc Document, key string) string {
	switch v := doc[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	return ""
}

func intField(doc Document, key string) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		if v > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func timeField(doc Document, key string) (time.Time, bool) {
	switch v := doc[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, true
			}
		}
	case int64:
		return time.UnixMilli(v).UTC(), v > 0
	case uint64:
		return time.UnixMilli(int64(v)).UTC(), v > 0
	case float64:
		return time.UnixMilli(int64(v)).UTC(), v > 0
	}
	return time.Time{}, false
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case support.Set:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func nonNegative(n int) int {
	return max(n, 0)
}
