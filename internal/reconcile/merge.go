package reconcile

import (
	"slices"
	"strings"

	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/support"
)

// Stale reports whether snap is older than what v already merged for its collection.
func Stale(v ViewState, snap model.Snapshot) bool {
	return v.merged[snap.Collection] && snap.Version < v.versions[snap.Collection]
}

// Merge applies an authoritative snapshot to v.
//
// Snapshot content replaces the collection's base records. Pending items
// that the snapshot now contains are dropped, as are support marks and the
// identity overlay once the snapshot agrees with them. Released support marks
// are dropped regardless. Everything else local survives. Stale snapshots
// and unknown collections leave v unchanged, and merging the same snapshot
// twice gives the same state as merging it once.
func Merge(v ViewState, snap model.Snapshot) ViewState {
	if Stale(v, snap) {
		return v
	}
	out := v.clone()
	switch snap.Collection {
	case model.CollectionEvents:
		out.events = snap.Events()
		for _, e := range out.events {
			out.settle(ItemKey{model.CollectionEvents, e.ID}, e.Supporters)
		}
	case model.CollectionRequests:
		out.requests = snap.Requests()
		for _, r := range out.requests {
			out.settle(ItemKey{model.CollectionRequests, r.ID}, r.Supporters)
		}
	case model.CollectionMembers:
		out.members = snap.Members()
		slices.SortFunc(out.members, func(a, b model.Member) int { return strings.Compare(a.ID, b.ID) })
		out.refreshIdentity()
	default:
		return v
	}
	for k := range out.released {
		if k.Collection == snap.Collection {
			delete(out.support, k)
			delete(out.released, k)
		}
	}
	if out.versions == nil {
		out.versions = make(map[model.Collection]uint64)
		out.merged = make(map[model.Collection]bool)
	}
	out.versions[snap.Collection] = snap.Version
	out.merged[snap.Collection] = true
	return out
}

// settle drops local state for an item the snapshot has caught up with.
// out must already be a clone.
func (v *ViewState) settle(k ItemKey, supporters []string) {
	delete(v.pending, k)
	if on, ok := v.support[k]; ok && support.Normalize(supporters).Has(v.identity.ID) == on {
		delete(v.support, k)
		delete(v.released, k)
	}
}

// refreshIdentity reloads the identity from the members snapshot.
// Authentication is left as it is.
func (v *ViewState) refreshIdentity() {
	if v.identity.ID == "" {
		return
	}
	i := slices.IndexFunc(v.members, func(m model.Member) bool { return m.ID == v.identity.ID })
	if i < 0 {
		return
	}
	v.identity = v.members[i]
	// XP only grows, so a stored xp at or past the overlay means the write landed.
	if v.identityOverlay != nil && v.identity.XP >= v.identityOverlay.XP {
		v.identityOverlay = nil
	}
}
