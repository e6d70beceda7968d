package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibeteen/mural/internal/adapters/codec"
	"github.com/vibeteen/mural/internal/adapters/mq/queue"
	"github.com/vibeteen/mural/internal/adapters/repository"
	"github.com/vibeteen/mural/internal/domain/dedupe"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/scoring"
	"github.com/vibeteen/mural/internal/domain/support"
	"github.com/vibeteen/mural/internal/reconcile"
	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

// Toast texts shown when a background write fails.
const (
	noticePublishFailed = "Não foi possível publicar. Tente novamente."
	noticeSupportFailed = "Não foi possível registrar sua oração."
	noticeXPFailed      = "Não foi possível atualizar seu XP."
)

// submissionSpace namespaces event ids derived from client submission ids.
var submissionSpace = uuid.MustParse("4b1f0c55-2f8e-4d3a-9a57-0d1e7c6a9b21")

// eventIDFor derives a stable event id so that a resubmitted publish maps to
// the same document. Without a submission id every call gets a fresh id.
func eventIDFor(memberID, submissionID string) string {
	if submissionID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(submissionSpace, []byte(dedupe.Key(memberID, submissionID))).String()
}

// LogImpact publishes a new impact event for memberID. The event and the
// member's new xp and streak show in the session at once; the write is
// delivered by the outbox. A repeated submissionID returns the event
// already logged for it.
func (s *Service) LogImpact(ctx context.Context, memberID, submissionID string, kind model.ActionKind, recipient string) (model.ImpactEvent, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return model.ImpactEvent{}, err
	}
	me := sess.View().Identity()
	if me.IsVisitor() {
		return model.ImpactEvent{}, ErrVisitorRestricted
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return model.ImpactEvent{}, fmt.Errorf("recipient: %w", ErrEmptyField)
	}
	kind, err = model.ParseActionKind(string(kind))
	if err != nil {
		return model.ImpactEvent{}, err
	}

	id := eventIDFor(memberID, submissionID)
	key := dedupe.Key(memberID, id)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordDuplicateSubmission()
		s.logger.Debug(ctx, "duplicate submission",
			logger.String("memberID", memberID), logger.String("eventID", id))
		if e, ok := sess.View().Event(id); ok {
			return e, nil
		}
		return model.ImpactEvent{ID: id, AuthorID: memberID, Kind: kind, Recipient: recipient}, nil
	}

	e := model.ImpactEvent{
		ID:          id,
		AuthorID:    me.ID,
		AuthorName:  me.FullName(),
		AuthorColor: me.AvatarColor,
		Kind:        kind,
		Recipient:   recipient,
		CreatedAt:   s.now(),
	}
	if err := s.publishEvent(ctx, sess, e, key); err != nil {
		return model.ImpactEvent{}, err
	}
	return e, nil
}

// RetryImpact republishes an event whose earlier publish failed. The xp is
// computed again against the member's state at retry time.
func (s *Service) RetryImpact(ctx context.Context, memberID, eventID string) (model.ImpactEvent, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return model.ImpactEvent{}, err
	}
	k := reconcile.ItemKey{Collection: model.CollectionEvents, ID: eventID}
	p, ok := sess.View().Pending(k)
	if !ok || !p.Failed {
		return model.ImpactEvent{}, ErrNothingToRetry
	}
	rec, ok := p.Record.(model.EventRecord)
	if !ok {
		return model.ImpactEvent{}, ErrNothingToRetry
	}
	key := dedupe.Key(memberID, eventID)
	s.deduper.SeenAndRecord(ctx, key)
	if err := s.publishEvent(ctx, sess, rec.ImpactEvent, key); err != nil {
		return model.ImpactEvent{}, err
	}
	return rec.ImpactEvent, nil
}

func (s *Service) publishEvent(ctx context.Context, sess *Session, e model.ImpactEvent, key string) error {
	k := reconcile.ItemKey{Collection: model.CollectionEvents, ID: e.ID}
	log := s.logger.Named("impact")

	sess.addGain(e, func(v reconcile.ViewState) reconcile.ViewState {
		me := v.Identity()
		res := s.ledger.ApplyAt(scoring.StateOf(me), e.Kind, e.CreatedAt)
		return v.WithOptimisticEvent(e).MarkRetrying(k).WithOptimisticIdentity(res.After.ApplyTo(me))
	})

	failed := func(err error) {
		s.deduper.Unrecord(context.WithoutCancel(ctx), key)
		sess.update(func(v reconcile.ViewState) reconcile.ViewState { return v.MarkFailed(k) })
		sess.dropGain(e.ID, s.replayGains)
		sess.notify(NoticeError, noticePublishFailed, s.now())
		log.Warn(ctx, "impact event not published",
			logger.String("memberID", e.AuthorID), logger.String("eventID", e.ID), logger.Error(err))
	}

	w := queue.Write{
		Op:         queue.OpAppend,
		Collection: model.CollectionEvents,
		DocID:      e.ID,
		Record:     model.EventRecord{ImpactEvent: e},
		Done: func(err error) {
			switch {
			case errors.Is(err, repository.ErrExists):
				// An earlier delivery stored the event and earned its xp.
				metrics.RecordDuplicateSubmission()
				sess.update(func(v reconcile.ViewState) reconcile.ViewState { return v.DropPending(k) })
				sess.dropGain(e.ID, s.replayGains)
				log.Debug(ctx, "impact event already stored",
					logger.String("memberID", e.AuthorID), logger.String("eventID", e.ID))
			case err != nil:
				failed(err)
			default:
				metrics.RecordImpactLogged(string(e.Kind))
				s.applyGamification(sess, e)
			}
		},
	}
	if !s.outbox.Enqueue(ctx, w) {
		failed(ErrBackpressure)
		return ErrBackpressure
	}
	return nil
}

// applyGamification writes the author's new xp and streak after their event
// is stored. It runs on an outbox worker and reads the stored member so
// concurrent sessions of one member never lose an increment.
func (s *Service) applyGamification(sess *Session, e model.ImpactEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess.gamification.Lock()
	defer sess.gamification.Unlock()

	fail := func(err error) {
		sess.dropGain(e.ID, s.replayGains)
		sess.notify(NoticeError, noticeXPFailed, s.now())
		s.logger.Warn(ctx, "gamification update failed",
			logger.String("memberID", e.AuthorID), logger.String("eventID", e.ID), logger.Error(err))
	}

	m, err := s.loadMember(ctx, e.AuthorID)
	if err != nil {
		fail(err)
		return
	}
	res := s.ledger.ApplyAt(scoring.StateOf(m), e.Kind, e.CreatedAt)
	updated := res.After.ApplyTo(m)
	if err := s.store.UpdateFields(ctx, model.CollectionMembers, m.ID, codec.GamificationFields(updated)); err != nil {
		fail(err)
		return
	}
	sess.settleGain(e.ID)
	s.logger.Debug(ctx, "gamification applied",
		logger.String("memberID", m.ID),
		logger.Int("xp", updated.XP),
		logger.Int("streak", updated.Streak),
		logger.String("streakChange", res.Change.String()),
	)
}

// replayGains applies gains in order to the stored member's xp and streak.
func (s *Service) replayGains(base model.Member, gains []model.ImpactEvent) model.Member {
	st := scoring.StateOf(base)
	for _, e := range gains {
		st = s.ledger.ApplyAt(st, e.Kind, e.CreatedAt).After
	}
	return st.ApplyTo(base)
}

// AddPrayerRequest publishes a prayer request. Visitors may ask for prayer.
func (s *Service) AddPrayerRequest(ctx context.Context, memberID, category, description string) (model.PrayerRequest, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return model.PrayerRequest{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return model.PrayerRequest{}, fmt.Errorf("description: %w", ErrEmptyField)
	}
	cat, err := model.ParseCategory(category)
	if err != nil {
		return model.PrayerRequest{}, err
	}

	me := sess.View().Identity()
	r := model.PrayerRequest{
		ID:          uuid.NewString(),
		AuthorID:    me.ID,
		AuthorName:  me.FullName(),
		AuthorColor: me.AvatarColor,
		Category:    cat,
		Description: description,
		CreatedAt:   s.now(),
	}
	if err := s.publishRequest(ctx, sess, r); err != nil {
		return model.PrayerRequest{}, err
	}
	return r, nil
}

// RetryPrayerRequest republishes a request whose earlier publish failed.
func (s *Service) RetryPrayerRequest(ctx context.Context, memberID, requestID string) (model.PrayerRequest, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return model.PrayerRequest{}, err
	}
	k := reconcile.ItemKey{Collection: model.CollectionRequests, ID: requestID}
	p, ok := sess.View().Pending(k)
	if !ok || !p.Failed {
		return model.PrayerRequest{}, ErrNothingToRetry
	}
	rec, ok := p.Record.(model.RequestRecord)
	if !ok {
		return model.PrayerRequest{}, ErrNothingToRetry
	}
	if err := s.publishRequest(ctx, sess, rec.PrayerRequest); err != nil {
		return model.PrayerRequest{}, err
	}
	return rec.PrayerRequest, nil
}

func (s *Service) publishRequest(ctx context.Context, sess *Session, r model.PrayerRequest) error {
	k := reconcile.ItemKey{Collection: model.CollectionRequests, ID: r.ID}
	sess.update(func(v reconcile.ViewState) reconcile.ViewState {
		return v.WithOptimisticRequest(r).MarkRetrying(k)
	})

	failed := func(err error) {
		sess.update(func(v reconcile.ViewState) reconcile.ViewState { return v.MarkFailed(k) })
		sess.notify(NoticeError, noticePublishFailed, s.now())
		s.logger.Warn(ctx, "prayer request not published",
			logger.String("memberID", r.AuthorID), logger.String("requestID", r.ID), logger.Error(err))
	}
	w := queue.Write{
		Op:         queue.OpAppend,
		Collection: model.CollectionRequests,
		DocID:      r.ID,
		Record:     model.RequestRecord{PrayerRequest: r},
		Done: func(err error) {
			if err != nil {
				failed(err)
				return
			}
			metrics.RecordPrayerRequest()
		},
	}
	if !s.outbox.Enqueue(ctx, w) {
		failed(ErrBackpressure)
		return ErrBackpressure
	}
	return nil
}

// ToggleEventSupport flips memberID's support mark on an impact event and
// reports whether the mark is now on.
func (s *Service) ToggleEventSupport(ctx context.Context, memberID, eventID string) (bool, error) {
	return s.toggleSupport(ctx, memberID, reconcile.ItemKey{Collection: model.CollectionEvents, ID: eventID})
}

// TogglePrayerSupport flips memberID's "I prayed for this" mark on a request
// and reports whether the mark is now on.
func (s *Service) TogglePrayerSupport(ctx context.Context, memberID, requestID string) (bool, error) {
	return s.toggleSupport(ctx, memberID, reconcile.ItemKey{Collection: model.CollectionRequests, ID: requestID})
}

func (s *Service) toggleSupport(ctx context.Context, memberID string, k reconcile.ItemKey) (bool, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return false, err
	}

	var (
		on    bool
		opErr error
	)
	// Read, decide and overlay under one update so two quick toggles of the
	// same item see each other.
	sess.update(func(v reconcile.ViewState) reconcile.ViewState {
		if _, pending := v.Pending(k); pending {
			opErr = ErrItemPending
			return v
		}
		authorID, supporters, ok := lookup(v, k)
		if !ok {
			opErr = fmt.Errorf("%s %s: %w", k.Collection, k.ID, ErrUnknownItem)
			return v
		}
		if err := s.policy.Check(v.Identity().ID, authorID); err != nil {
			opErr = err
			return v
		}
		_, on, opErr = support.Toggle(support.Normalize(supporters), v.Identity().ID)
		if opErr != nil {
			return v
		}
		return v.WithSupport(k, on)
	})
	if opErr != nil {
		return false, opErr
	}

	failed := func(err error) {
		sess.update(func(v reconcile.ViewState) reconcile.ViewState { return v.ReleaseSupportOverlay(k) })
		sess.notify(NoticeError, noticeSupportFailed, s.now())
		s.logger.Warn(ctx, "support mark not saved",
			logger.String("memberID", memberID),
			logger.String("collection", string(k.Collection)),
			logger.String("itemID", k.ID),
			logger.Error(err))
	}
	w := queue.Write{
		Op:         queue.OpUpdate,
		Collection: k.Collection,
		DocID:      k.ID,
		Fields:     codec.SupportFields(memberID, on),
		Done: func(err error) {
			if err != nil {
				failed(err)
				return
			}
			metrics.RecordSupportToggle(string(k.Collection), on)
		},
	}
	if !s.outbox.Enqueue(ctx, w) {
		failed(ErrBackpressure)
		return false, ErrBackpressure
	}
	return on, nil
}

func lookup(v reconcile.ViewState, k reconcile.ItemKey) (authorID string, supporters []string, ok bool) {
	switch k.Collection {
	case model.CollectionEvents:
		e, found := v.Event(k.ID)
		return e.AuthorID, e.Supporters, found
	case model.CollectionRequests:
		r, found := v.Request(k.ID)
		return r.AuthorID, r.Supporters, found
	}
	return "", nil, false
}
