// Package session remembers which members were signed in, so the service
// can restore their sessions after a restart. Feed data never goes here.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/vibeteen/mural/internal/domain/model"
)

// DefaultNamespace prefixes every remembered session.
const DefaultNamespace = "vibeteen_user_session"

// ErrInvalidRecord is returned when saving a record without a member id.
var ErrInvalidRecord = errors.New("session record has no member id")

// Record is the remembered identity of one signed-in member.
type Record struct {
	MemberID    string     `json:"member_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email,omitempty"`
	AvatarColor string     `json:"avatar_color,omitempty"`
	Role        model.Role `json:"role"`
	SignedInAt  time.Time  `json:"signed_in_at"`
}

// RecordOf captures m's identity fields.
func RecordOf(m model.Member, at time.Time) Record {
	return Record{
		MemberID:    m.ID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		AvatarColor: m.AvatarColor,
		Role:        m.Role,
		SignedInAt:  at,
	}
}

// Member rebuilds the identity part of a member. Gamification comes from the store.
func (r Record) Member() model.Member {
	return model.Member{
		ID:          r.MemberID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		AvatarColor: r.AvatarColor,
		Role:        model.ParseRole(string(r.Role)),
	}
}

// Store is the local-session collaborator.
type Store interface {
	// Save remembers rec, replacing any earlier record for the same member.
	Save(ctx context.Context, rec Record) error
	// Load returns the record for memberID; ok is false when none is remembered.
	Load(ctx context.Context, memberID string) (rec Record, ok bool, err error)
	// Clear forgets memberID. Clearing an unknown member is not an error.
	Clear(ctx context.Context, memberID string) error
	// List returns every remembered record ordered by member id.
	List(ctx context.Context) ([]Record, error)
	// Close releases the backend.
	Close() error
}
