// Package service is the composition of the feed: it owns the store, the
// write outbox, the mission cache and one live Session per signed-in member,
// and implements the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vibeteen/mural/internal/adapters/mq/queue"
	"github.com/vibeteen/mural/internal/adapters/mq/worker"
	"github.com/vibeteen/mural/internal/adapters/repository"
	"github.com/vibeteen/mural/internal/adapters/session"
	"github.com/vibeteen/mural/internal/domain/dedupe"
	"github.com/vibeteen/mural/internal/domain/hexspiral"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/scoring"
	"github.com/vibeteen/mural/internal/domain/support"
	"github.com/vibeteen/mural/internal/mission"
	"github.com/vibeteen/mural/internal/reconcile"
	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

const defaultNoticeLimit = 20

// Service implements the API dependencies for the impact feed.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	sessions session.Store
	deduper  dedupe.Deduper
	outbox   queue.Queue
	pool     *worker.Pool
	missions *mission.Cache
	source   mission.Source

	ledger    *scoring.Ledger
	xpTable   scoring.XPTable
	calendar  model.Calendar
	policy    support.Policy
	allocator *hexspiral.Allocator

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	noticeLimit     int
	missionFallback string
	missionInterval time.Duration
	now             func() time.Time

	// State
	started bool
	live    map[string]*Session
	members []model.Member
	cancel  context.CancelFunc
	bg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of outbox workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending writes.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the persistence collaborator. Without it Start opens an
// in-memory store. The service closes the store on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSessionStore sets where signed-in identities are remembered. The
// service closes it on Stop.
func WithSessionStore(store session.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithXPTable sets the points per action kind.
func WithXPTable(t scoring.XPTable) Option {
	return func(s *Service) {
		s.xpTable = t
	}
}

// WithCalendar sets the timezone policy for streak days and today's counts.
func WithCalendar(cal model.Calendar) Option {
	return func(s *Service) {
		s.calendar = cal
	}
}

// WithSupportPolicy sets who may mark support on an item.
func WithSupportPolicy(p support.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithAllocator sets the board allocator.
func WithAllocator(a *hexspiral.Allocator) Option {
	return func(s *Service) {
		if a != nil {
			s.allocator = a
		}
	}
}

// WithMissionSource sets where the daily mission text comes from.
func WithMissionSource(src mission.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithMissionFallback sets the text shown when the mission source fails.
func WithMissionFallback(text string) Option {
	return func(s *Service) {
		s.missionFallback = text
	}
}

// WithMissionRefreshInterval sets how often the mission text is refetched.
func WithMissionRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.missionInterval = d
		}
	}
}

// WithNoticeLimit bounds the notices kept per session.
func WithNoticeLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.noticeLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      100_000,
		noticeLimit:     defaultNoticeLimit,
		missionFallback: mission.DefaultFallback,
		missionInterval: 30 * time.Minute,
		calendar:        model.UTC(),
		policy:          support.Policy{AllowSelfSupport: true},
		allocator:       hexspiral.New(),
		now:             time.Now,
		live:            make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = scoring.NewLedger(scoring.WithXPTable(s.xpTable), scoring.WithCalendar(s.calendar))
	return s
}

// Start opens missing collaborators, starts the outbox and the mission
// refresher, and restores remembered sessions.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting feed service...")

	if s.store == nil {
		store, err := repository.OpenInMemory(ctx,
			repository.WithLogger(s.logger.Named("store")),
			repository.WithCalendar(s.calendar))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
	}
	if s.source == nil {
		s.source = mission.NewDailySource(s.calendar)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.outbox = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.outbox, s.store, worker.WithLogger(s.logger.Named("worker")))
	s.missions = mission.NewCache(s.source,
		mission.WithFallback(s.missionFallback),
		mission.WithRefreshInterval(s.missionInterval),
		mission.WithLogger(s.logger.Named("mission")))

	// Background work outlives the Start call; Stop cancels it.
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool.Start(bgCtx)
	s.missions.Init(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		_ = s.missions.Run(bgCtx)
	}()

	if err := s.watchMembers(bgCtx); err != nil {
		cancel()
		return fmt.Errorf("subscribe members: %w", err)
	}

	s.started = true
	s.restoreSessions(ctx)

	s.logger.Info(ctx, "feed service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("sessions", len(s.live)),
	)
	return nil
}

// watchMembers keeps the service-wide member list used by the leaderboard.
func (s *Service) watchMembers(ctx context.Context) error {
	ch, err := s.store.Subscribe(ctx, model.CollectionMembers, model.OrderByID)
	if err != nil {
		return err
	}
	apply := func(snap model.Snapshot) {
		members := snap.Members()
		s.mu.Lock()
		s.members = members
		s.mu.Unlock()
	}
	// The first snapshot is already buffered; take it while s.mu is held by Start.
	if snap, ok := <-ch; ok {
		s.members = snap.Members()
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		for snap := range ch {
			apply(snap)
		}
	}()
	return nil
}

// restoreSessions reopens sessions remembered by the session store. Callers hold s.mu.
func (s *Service) restoreSessions(ctx context.Context) {
	records, err := s.sessions.List(ctx)
	if err != nil {
		s.logger.Warn(ctx, "could not list remembered sessions", logger.Error(err))
		return
	}
	for _, rec := range records {
		member := rec.Member()
		if stored, err := s.loadMember(ctx, member.ID); err == nil {
			member = stored
		}
		if _, err := s.openSessionLocked(ctx, member); err != nil {
			s.logger.Warn(ctx, "could not restore session",
				logger.String("memberID", member.ID), logger.Error(err))
		}
	}
}

// Stop cancels sessions, delivers pending writes and closes every collaborator.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping feed service...")
	s.started = false

	for id, sess := range s.live {
		sess.close()
		delete(s.live, id)
	}
	metrics.UpdateSessionCount(0)

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "outbox did not drain", logger.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	if err := s.sessions.Close(); err != nil {
		s.logger.Warn(ctx, "closing session store", logger.Error(err))
	}
	// Members watcher exits once the store closes its channel.
	s.mu.Unlock()
	s.bg.Wait()
	s.mu.Lock()

	s.logger.Info(ctx, "feed service stopped")
}

// SignIn opens a session for m. A member seen for the first time is created
// with zero xp and a palette color; otherwise the stored record is used.
func (s *Service) SignIn(ctx context.Context, m model.Member) (model.Member, error) {
	if m.ID == "" && m.Email != "" {
		m.ID = model.MemberIDFromLogin(m.Email)
	}
	m.FirstName = strings.TrimSpace(m.FirstName)
	if m.ID == "" || m.FirstName == "" {
		return model.Member{}, fmt.Errorf("sign in: %w", ErrEmptyField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return model.Member{}, ErrNotStarted
	}

	member, err := s.loadMember(ctx, m.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		member = s.newMember(m)
		if _, err := s.store.Append(ctx, model.CollectionMembers, model.MemberRecord{Member: member}); err != nil && !errors.Is(err, repository.ErrExists) {
			return model.Member{}, fmt.Errorf("sign in: %w", err)
		}
		s.logger.Info(ctx, "member created", logger.String("memberID", member.ID))
	case err != nil:
		return model.Member{}, fmt.Errorf("sign in: %w", err)
	}

	if err := s.sessions.Save(ctx, session.RecordOf(member, s.now())); err != nil {
		// The session still works; it just won't survive a restart.
		s.logger.Warn(ctx, "could not remember session",
			logger.String("memberID", member.ID), logger.Error(err))
	}
	if _, err := s.openSessionLocked(ctx, member); err != nil {
		return model.Member{}, fmt.Errorf("sign in: %w", err)
	}
	return member, nil
}

func (s *Service) newMember(m model.Member) model.Member {
	member := model.Member{
		ID:          m.ID,
		FirstName:   m.FirstName,
		LastName:    strings.TrimSpace(m.LastName),
		Email:       strings.TrimSpace(m.Email),
		AvatarColor: m.AvatarColor,
		Role:        model.ParseRole(string(m.Role)),
		CreatedAt:   s.now(),
	}
	if member.AvatarColor == "" {
		member.AvatarColor = model.AvatarPalette[rand.IntN(len(model.AvatarPalette))] //nolint:gosec // cosmetic choice
	}
	return member
}

func (s *Service) loadMember(ctx context.Context, id string) (model.Member, error) {
	rec, err := s.store.Get(ctx, model.CollectionMembers, id)
	if err != nil {
		return model.Member{}, err
	}
	mr, ok := rec.(model.MemberRecord)
	if !ok {
		return model.Member{}, fmt.Errorf("member %s: %w", id, repository.ErrKindMismatch)
	}
	return mr.Member, nil
}

// openSessionLocked replaces any live session of the member. Callers hold s.mu.
func (s *Service) openSessionLocked(ctx context.Context, member model.Member) (*Session, error) {
	if old, ok := s.live[member.ID]; ok {
		old.close()
		delete(s.live, member.ID)
	}
	sess := newSession(member, s.noticeLimit, s.logger.Named("session"))
	if err := sess.subscribe(context.WithoutCancel(ctx), s.store); err != nil {
		return nil, err
	}
	s.live[member.ID] = sess
	metrics.UpdateSessionCount(len(s.live))
	return sess, nil
}

// SignOut ends the member's session and forgets it in the session store.
func (s *Service) SignOut(ctx context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	sess, ok := s.live[memberID]
	if !ok {
		return ErrNoSession
	}
	sess.update(reconcile.ViewState.SignOut)
	sess.close()
	delete(s.live, memberID)
	metrics.UpdateSessionCount(len(s.live))

	if err := s.sessions.Clear(ctx, memberID); err != nil {
		s.logger.Warn(ctx, "could not forget session",
			logger.String("memberID", memberID), logger.Error(err))
	}
	return nil
}

// Session returns the live session of memberID.
func (s *Service) Session(memberID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	sess, ok := s.live[memberID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Member returns a member record from the store.
func (s *Service) Member(ctx context.Context, memberID string) (model.Member, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.Member{}, ErrNotStarted
	}
	m, err := s.loadMember(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Member{}, fmt.Errorf("member %s: %w", memberID, ErrUnknownItem)
	}
	return m, err
}

// Mission returns the cached daily mission text.
func (s *Service) Mission() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.missions == nil {
		return s.missionFallback
	}
	return s.missions.Current()
}

// Notices returns and clears the member's pending notices.
func (s *Service) Notices(memberID string) ([]Notice, error) {
	sess, err := s.Session(memberID)
	if err != nil {
		return nil, err
	}
	return sess.drainNotices(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		stats["queueLength"] = s.outbox.Len(ctx)
		stats["sessions"] = len(s.live)
		stats["members"] = s.store.Count(ctx, model.CollectionMembers)
		stats["events"] = s.store.Count(ctx, model.CollectionEvents)
		stats["requests"] = s.store.Count(ctx, model.CollectionRequests)
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}
