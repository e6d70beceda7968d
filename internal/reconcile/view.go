// Package reconcile merges authoritative collection snapshots into a
// session's local view without losing optimistic edits still in flight.
//
// ViewState is immutable: every method returns a new value and leaves the
// receiver untouched, so a state can be shared freely between readers.
// Derived views (sorted events, supporter overlays) are computed on read.
package reconcile

import (
	"maps"
	"slices"
	"strings"

	"github.com/vibeteen/mural/internal/domain/feed"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/support"
)

// ItemKey identifies an event or request in the view.
type ItemKey struct {
	Collection model.Collection
	ID         string
}

// Pending is a locally created record not yet seen in a snapshot.
type Pending struct {
	Record model.Record
	// Failed is set when delivery to the store failed and the item awaits a retry.
	Failed bool
}

// ViewState is one session's local picture of the shared collections.
type ViewState struct {
	events   []model.ImpactEvent
	requests []model.PrayerRequest
	members  []model.Member

	pending map[ItemKey]Pending
	// support holds the identity's desired mark per item until a snapshot agrees.
	support map[ItemKey]bool
	// released marks support entries to drop at the next snapshot of their collection.
	released map[ItemKey]bool

	identity        model.Member
	identityOverlay *model.Member
	authenticated   bool
	versions        map[model.Collection]uint64
	merged          map[model.Collection]bool
}

// New returns an empty, signed-out view.
func New() ViewState {
	return ViewState{}
}

func (v ViewState) clone() ViewState {
	v.pending = maps.Clone(v.pending)
	v.support = maps.Clone(v.support)
	v.released = maps.Clone(v.released)
	v.versions = maps.Clone(v.versions)
	v.merged = maps.Clone(v.merged)
	return v
}

// WithIdentity signs m in. Any optimistic identity overlay is dropped.
func (v ViewState) WithIdentity(m model.Member) ViewState {
	out := v.clone()
	out.identity = m
	out.identityOverlay = nil
	out.authenticated = m.ID != ""
	return out
}

// SignOut forgets the identity and every local edit made on its behalf.
// Snapshot content is kept.
func (v ViewState) SignOut() ViewState {
	out := v.clone()
	out.identity = model.Member{}
	out.identityOverlay = nil
	out.authenticated = false
	out.pending = nil
	out.support = nil
	out.released = nil
	return out
}

// WithOptimisticIdentity shows m as the identity until a members snapshot
// catches up with its xp.
func (v ViewState) WithOptimisticIdentity(m model.Member) ViewState {
	out := v.clone()
	out.identityOverlay = &m
	return out
}

// ClearIdentityOverlay drops the optimistic identity.
func (v ViewState) ClearIdentityOverlay() ViewState {
	out := v.clone()
	out.identityOverlay = nil
	return out
}

// WithOptimisticEvent adds e as pending unless a snapshot already holds it.
func (v ViewState) WithOptimisticEvent(e model.ImpactEvent) ViewState {
	if containsID(v.events, e.ID, eventID) {
		return v
	}
	return v.withPending(ItemKey{model.CollectionEvents, e.ID}, model.EventRecord{ImpactEvent: e})
}

// WithOptimisticRequest adds r as pending unless a snapshot already holds it.
func (v ViewState) WithOptimisticRequest(r model.PrayerRequest) ViewState {
	if containsID(v.requests, r.ID, requestID) {
		return v
	}
	return v.withPending(ItemKey{model.CollectionRequests, r.ID}, model.RequestRecord{PrayerRequest: r})
}

func (v ViewState) withPending(k ItemKey, rec model.Record) ViewState {
	out := v.clone()
	if out.pending == nil {
		out.pending = make(map[ItemKey]Pending)
	}
	out.pending[k] = Pending{Record: rec}
	return out
}

// MarkFailed flags a pending item for retry. Unknown keys are ignored.
func (v ViewState) MarkFailed(k ItemKey) ViewState {
	return v.setFailed(k, true)
}

// MarkRetrying clears the failed flag of a pending item.
func (v ViewState) MarkRetrying(k ItemKey) ViewState {
	return v.setFailed(k, false)
}

func (v ViewState) setFailed(k ItemKey, failed bool) ViewState {
	p, ok := v.pending[k]
	if !ok || p.Failed == failed {
		return v
	}
	out := v.clone()
	p.Failed = failed
	out.pending[k] = p
	return out
}

// DropPending removes a pending item.
func (v ViewState) DropPending(k ItemKey) ViewState {
	if _, ok := v.pending[k]; !ok {
		return v
	}
	out := v.clone()
	delete(out.pending, k)
	return out
}

// WithSupport records the identity's desired support mark on an item.
func (v ViewState) WithSupport(k ItemKey, on bool) ViewState {
	out := v.clone()
	if out.support == nil {
		out.support = make(map[ItemKey]bool)
	}
	out.support[k] = on
	delete(out.released, k)
	return out
}

// ReleaseSupportOverlay keeps the desired mark visible until the next
// snapshot of the item's collection, which then wins whatever it says.
// Used when the write carrying the mark failed.
func (v ViewState) ReleaseSupportOverlay(k ItemKey) ViewState {
	if _, ok := v.support[k]; !ok {
		return v
	}
	out := v.clone()
	if out.released == nil {
		out.released = make(map[ItemKey]bool)
	}
	out.released[k] = true
	return out
}

// ClearSupportOverlay drops the desired mark so the snapshot shows through.
func (v ViewState) ClearSupportOverlay(k ItemKey) ViewState {
	if _, ok := v.support[k]; !ok {
		return v
	}
	out := v.clone()
	delete(out.support, k)
	delete(out.released, k)
	return out
}

// Identity returns the signed-in member, including optimistic gamification.
func (v ViewState) Identity() model.Member {
	if v.identityOverlay != nil {
		return *v.identityOverlay
	}
	return v.identity
}

// StoredIdentity returns the signed-in member as last merged from a members
// snapshot, without optimistic gamification.
func (v ViewState) StoredIdentity() model.Member { return v.identity }

// Authenticated reports whether a member is signed in.
func (v ViewState) Authenticated() bool { return v.authenticated }

// Version returns the last merged snapshot version of col.
func (v ViewState) Version(col model.Collection) uint64 { return v.versions[col] }

// Pending returns the pending entry for k.
func (v ViewState) Pending(k ItemKey) (Pending, bool) {
	p, ok := v.pending[k]
	return p, ok
}

// PendingKeys lists pending items sorted by collection then id.
func (v ViewState) PendingKeys() []ItemKey {
	keys := slices.Collect(maps.Keys(v.pending))
	slices.SortFunc(keys, func(a, b ItemKey) int {
		if c := strings.Compare(string(a.Collection), string(b.Collection)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return keys
}

// Events returns snapshot and pending events, newest first, with the
// identity's support overlay applied.
func (v ViewState) Events() []model.ImpactEvent {
	out := make([]model.ImpactEvent, 0, len(v.events)+len(v.pending))
	out = append(out, v.events...)
	for k, p := range v.pending {
		if e, ok := p.Record.(model.EventRecord); ok && k.Collection == model.CollectionEvents {
			out = append(out, e.ImpactEvent)
		}
	}
	for i := range out {
		out[i].Supporters = v.supportersFor(ItemKey{model.CollectionEvents, out[i].ID}, out[i].Supporters)
	}
	return feed.SortEvents(out)
}

// Stream wraps Events for aggregation.
func (v ViewState) Stream() feed.Stream { return feed.NewStream(v.Events()) }

// Requests returns snapshot and pending requests, newest first, with the
// identity's support overlay applied.
func (v ViewState) Requests() []model.PrayerRequest {
	out := make([]model.PrayerRequest, 0, len(v.requests)+len(v.pending))
	out = append(out, v.requests...)
	for k, p := range v.pending {
		if r, ok := p.Record.(model.RequestRecord); ok && k.Collection == model.CollectionRequests {
			out = append(out, r.PrayerRequest)
		}
	}
	for i := range out {
		out[i].Supporters = v.supportersFor(ItemKey{model.CollectionRequests, out[i].ID}, out[i].Supporters)
	}
	return feed.SortRequests(out)
}

// Members returns the members snapshot sorted by id, with the identity's
// optimistic record substituted.
func (v ViewState) Members() []model.Member {
	out := slices.Clone(v.members)
	if v.identityOverlay != nil {
		for i := range out {
			if out[i].ID == v.identityOverlay.ID {
				out[i] = *v.identityOverlay
			}
		}
	}
	return out
}

// Event looks up an event by id, pending ones included.
func (v ViewState) Event(id string) (model.ImpactEvent, bool) {
	for _, e := range v.Events() {
		if e.ID == id {
			return e, true
		}
	}
	return model.ImpactEvent{}, false
}

// Request looks up a request by id, pending ones included.
func (v ViewState) Request(id string) (model.PrayerRequest, bool) {
	for _, r := range v.Requests() {
		if r.ID == id {
			return r, true
		}
	}
	return model.PrayerRequest{}, false
}

func (v ViewState) supportersFor(k ItemKey, base []string) []string {
	set := support.Normalize(base)
	on, ok := v.support[k]
	if !ok || !v.authenticated {
		return set
	}
	return set.Set(v.identity.ID, on)
}

func eventID(e model.ImpactEvent) string     { return e.ID }
func requestID(r model.PrayerRequest) string { return r.ID }

func containsID[T any](items []T, id string, key func(T) string) bool {
	return slices.ContainsFunc(items, func(it T) bool { return key(it) == id })
}
