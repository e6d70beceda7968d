package service

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/vibeteen/mural/internal/adapters/repository"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/reconcile"
	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

// NoticeLevel grades a Notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a short transient message for the member, e.g. a failed publish.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Session is one signed-in member's live view. The view itself is an
// immutable reconcile.ViewState swapped under mu.
type Session struct {
	memberID string
	logger   logger.Logger

	mu      sync.RWMutex
	view    reconcile.ViewState
	notices []Notice
	limit   int

	// gains holds events whose xp shows on the identity but is not yet
	// written to the member record. Guarded by mu.
	gains map[string]model.ImpactEvent

	// gamification serializes the member's read-modify-write of xp and streak.
	gamification sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSession(member model.Member, noticeLimit int, l logger.Logger) *Session {
	return &Session{
		memberID: member.ID,
		logger:   l,
		view:     reconcile.New().WithIdentity(member),
		limit:    noticeLimit,
	}
}

// MemberID returns the id of the signed-in member.
func (s *Session) MemberID() string { return s.memberID }

// View returns the current view state. It is immutable and safe to keep.
func (s *Session) View() reconcile.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Session) update(fn func(reconcile.ViewState) reconcile.ViewState) reconcile.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = fn(s.view)
	return s.view
}

// addGain remembers e as unsettled and applies fn to the view in the same step.
func (s *Session) addGain(e model.ImpactEvent, fn func(reconcile.ViewState) reconcile.ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gains == nil {
		s.gains = make(map[string]model.ImpactEvent)
	}
	s.gains[e.ID] = e
	s.view = fn(s.view)
}

// settleGain forgets an event whose xp is now stored. The overlay stays until
// a members snapshot catches up with it.
func (s *Session) settleGain(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gains, eventID)
}

// dropGain forgets an event whose xp will not be stored and rebuilds the
// identity overlay by replaying the remaining gains, oldest first, on top of
// the stored identity.
func (s *Session) dropGain(eventID string, replay func(base model.Member, gains []model.ImpactEvent) model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gains, eventID)
	if len(s.gains) == 0 {
		s.view = s.view.ClearIdentityOverlay()
		return
	}
	gains := slices.SortedFunc(maps.Values(s.gains), func(a, b model.ImpactEvent) int {
		return model.CompareNewestFirst(b.CreatedAt, b.ID, a.CreatedAt, a.ID)
	})
	s.view = s.view.WithOptimisticIdentity(replay(s.view.StoredIdentity(), gains))
}

func (s *Session) merge(snap model.Snapshot) {
	col := string(snap.Collection)
	s.mu.Lock()
	defer s.mu.Unlock()
	if reconcile.Stale(s.view, snap) {
		metrics.RecordSnapshotStale(col)
		return
	}
	s.view = reconcile.Merge(s.view, snap)
	metrics.RecordSnapshotMerged(col)
}

func (s *Session) notify(level NoticeLevel, msg string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Level: level, Message: msg, At: at})
	if over := len(s.notices) - s.limit; over > 0 {
		s.notices = slices.Delete(s.notices, 0, over)
	}
}

// drainNotices returns queued notices oldest first and forgets them.
func (s *Session) drainNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// subscribe merges the current snapshot of every collection before returning,
// then keeps merging changes in the background until ctx ends.
func (s *Session) subscribe(ctx context.Context, store repository.Store) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, col := range model.Collections {
		order := model.OrderNewestFirst
		if col == model.CollectionMembers {
			order = model.OrderByID
		}
		ch, err := store.Subscribe(ctx, col, order)
		if err != nil {
			cancel()
			return err
		}
		select {
		case snap, ok := <-ch:
			if ok {
				s.merge(snap)
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for snap := range ch {
				s.merge(snap)
			}
		}()
	}
	return nil
}

// close ends the subscriptions and waits for them to drain.
func (s *Session) close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
