// Package support implements the "I prayed for this" marks members place on
// each other's events and requests.
//
// A Set is kept sorted and free of duplicates, so toggling is plain set union
// and difference: toggling the same member twice restores the original set,
// and toggles by different members commute.
package support

import (
	"slices"
	"strings"
)

// Set is a canonical set of member ids.
type Set []string

// Normalize builds a Set from arbitrary ids, dropping blanks and duplicates.
func Normalize(ids []string) Set {
	out := make(Set, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Has reports whether memberID is in s. s must be canonical.
func (s Set) Has(memberID string) bool {
	_, found := slices.BinarySearch(s, memberID)
	return found
}

// Len returns the number of supporters.
func (s Set) Len() int { return len(s) }

// Add returns s with memberID added. s is never modified.
func (s Set) Add(memberID string) Set {
	i, found := slices.BinarySearch(s, memberID)
	if found || memberID == "" {
		return slices.Clone(s)
	}
	out := make(Set, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, memberID)
	return append(out, s[i:]...)
}

// Remove returns s without memberID. s is never modified.
func (s Set) Remove(memberID string) Set {
	i, found := slices.BinarySearch(s, memberID)
	if !found {
		return slices.Clone(s)
	}
	out := make(Set, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// Toggle flips memberID's mark and reports whether it is now on.
// An empty id means the actor is not signed in.
func Toggle(s Set, memberID string) (Set, bool, error) {
	if strings.TrimSpace(memberID) == "" {
		return slices.Clone(s), false, ErrUnauthenticated
	}
	if s.Has(memberID) {
		return s.Remove(memberID), false, nil
	}
	return s.Add(memberID), true, nil
}

// Set forces memberID's mark to on.
func (s Set) Set(memberID string, on bool) Set {
	if on {
		return s.Add(memberID)
	}
	return s.Remove(memberID)
}

// Equal reports whether two sets hold the same members.
func Equal(a, b Set) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// Policy decides who may mark support on an item.
type Policy struct {
	// AllowSelfSupport lets an author mark their own item.
	AllowSelfSupport bool
}

// Check validates that actorID may toggle support on an item by authorID.
func (p Policy) Check(actorID, authorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return ErrUnauthenticated
	}
	if !p.AllowSelfSupport && actorID == authorID {
		return ErrSelfSupport
	}
	return nil
}
