package repository

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibeteen/mural/internal/domain/model"
)

func TestOrderIndexMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := newOrderIndex()
	want := map[string]model.EventRecord{}

	for i := range 500 {
		id := fmt.Sprintf("e%03d", rng.Intn(200))
		rec := event(id, "m1", t0.Add(time.Duration(rng.Intn(50))*time.Second))
		x.put(rec)
		want[id] = rec
		if i%50 == 0 {
			assert.Equal(t, len(want), x.len())
		}
	}

	expected := make([]model.EventRecord, 0, len(want))
	for _, r := range want {
		expected = append(expected, r)
	}
	slices.SortFunc(expected, func(a, b model.EventRecord) int {
		return model.CompareNewestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	got := x.records()
	assert.Len(t, got, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i].ID, got[i].RecordID())
		assert.True(t, expected[i].CreatedAt.Equal(got[i].Timestamp()))
	}
}

func TestOrderIndexReplace(t *testing.T) {
	x := newOrderIndex()
	x.put(event("a", "m1", t0))
	x.put(event("b", "m1", t0.Add(time.Second)))
	assert.Equal(t, []string{"b", "a"}, recordIDs(x.records()))

	x.put(event("a", "m1", t0.Add(time.Minute)))
	assert.Equal(t, []string{"a", "b"}, recordIDs(x.records()))
	assert.Equal(t, 2, x.len())
	assert.True(t, x.has("a"))
	assert.False(t, x.has("c"))
}

func TestOrderIndexZeroTimestampsSortLast(t *testing.T) {
	x := newOrderIndex()
	x.put(model.MemberRecord{Member: model.Member{ID: "z"}})
	x.put(model.MemberRecord{Member: model.Member{ID: "y", CreatedAt: t0}})
	x.put(model.MemberRecord{Member: model.Member{ID: "a"}})
	assert.Equal(t, []string{"y", "a", "z"}, recordIDs(x.records()))
}

func recordIDs(recs []model.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.RecordID())
	}
	return out
}
