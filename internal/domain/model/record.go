package model

import (
	"strings"
	"time"
)

// Collection names a shared collection held by the persistence collaborator.
type Collection string

const (
	CollectionMembers  Collection = "members"
	CollectionEvents   Collection = "events"
	CollectionRequests Collection = "requests"
)

// Collections lists every collection a session subscribes to.
var Collections = []Collection{CollectionMembers, CollectionEvents, CollectionRequests}

// RecordKind tags the variants of Record.
type RecordKind string

const (
	KindMember  RecordKind = "member"
	KindEvent   RecordKind = "event"
	KindRequest RecordKind = "request"
)

// Kind returns the record kind stored in c, or "" for an unknown collection.
func (c Collection) Kind() RecordKind {
	switch c {
	case CollectionMembers:
		return KindMember
	case CollectionEvents:
		return KindEvent
	case CollectionRequests:
		return KindRequest
	}
	return ""
}

// Record is the closed set of documents the feed stores.
type Record interface {
	Kind() RecordKind
	RecordID() string
	Timestamp() time.Time
	isRecord()
}

// MemberRecord wraps a Member stored in CollectionMembers.
type MemberRecord struct{ Member }

// EventRecord wraps an ImpactEvent stored in CollectionEvents.
type EventRecord struct{ ImpactEvent }

// RequestRecord wraps a PrayerRequest stored in CollectionRequests.
type RequestRecord struct{ PrayerRequest }

func (MemberRecord) Kind() RecordKind       { return KindMember }
func (r MemberRecord) RecordID() string     { return r.ID }
func (r MemberRecord) Timestamp() time.Time { return r.CreatedAt }
func (MemberRecord) isRecord()              {}

func (EventRecord) Kind() RecordKind       { return KindEvent }
func (r EventRecord) RecordID() string     { return r.ID }
func (r EventRecord) Timestamp() time.Time { return r.CreatedAt }
func (EventRecord) isRecord()              {}

func (RequestRecord) Kind() RecordKind       { return KindRequest }
func (r RequestRecord) RecordID() string     { return r.ID }
func (r RequestRecord) Timestamp() time.Time { return r.CreatedAt }
func (RequestRecord) isRecord()              {}

// Ordering selects how a subscription orders its snapshot.
type Ordering int

const (
	// OrderNewestFirst sorts by timestamp descending, then id ascending.
	OrderNewestFirst Ordering = iota
	// OrderByID sorts by id ascending.
	OrderByID
)

// CompareNewestFirst orders (timestamp, id) pairs newest first with the id as
// tie-breaker, so equal inputs always produce the same order.
func CompareNewestFirst(aTS time.Time, aID string, bTS time.Time, bID string) int {
	if !aTS.Equal(bTS) {
		if aTS.After(bTS) {
			return -1
		}
		return 1
	}
	return strings.Compare(aID, bID)
}

// Snapshot is a full-collection state delivered by the persistence collaborator.
// Version increases with every change to the collection.
type Snapshot struct {
	Collection Collection
	Version    uint64
	Records    []Record
	// Skipped counts stored documents that failed validation and were left out.
	Skipped int
}

// Members returns the member records of s.
func (s Snapshot) Members() []Member {
	out := make([]Member, 0, len(s.Records))
	for _, r := range s.Records {
		if m, ok := r.(MemberRecord); ok {
			out = append(out, m.Member)
		}
	}
	return out
}

// Events returns the impact event records of s.
func (s Snapshot) Events() []ImpactEvent {
	out := make([]ImpactEvent, 0, len(s.Records))
	for _, r := range s.Records {
		if e, ok := r.(EventRecord); ok {
			out = append(out, e.ImpactEvent)
		}
	}
	return out
}

// Requests returns the prayer request records of s.
func (s Snapshot) Requests() []PrayerRequest {
	out := make([]PrayerRequest, 0, len(s.Records))
	for _, r := range s.Records {
		if p, ok := r.(RequestRecord); ok {
			out = append(out, p.PrayerRequest)
		}
	}
	return out
}

// SetOp is a partial-update value applying set union or difference to a
// string-list field, so concurrent toggles from different members commute.
type SetOp struct {
	Remove bool
	Values []string
}

// ArrayUnion adds values to a list field, skipping ones already present.
func ArrayUnion(values ...string) SetOp { return SetOp{Values: values} }

// ArrayRemove removes every occurrence of values from a list field.
func ArrayRemove(values ...string) SetOp { return SetOp{Remove: true, Values: values} }
