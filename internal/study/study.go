// Package study hosts study sessions for many learners at once.
//
// Each learner gets a private session.Manager behind its own mutex, so reviews
// from one learner are serialized while different learners never contend.
// Rated cards are written through to the Store as soon as they are rated.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/knoldeck/internal/clock"
	"github.com/conorfennell/knoldeck/internal/deck"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/due"
	"github.com/conorfennell/knoldeck/internal/session"
)

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Store is the persistence the service needs.
type Store interface {
	LoadAllCards(ctx context.Context, userID string) ([]domain.Card, error)
	SaveCard(ctx context.Context, userID string, card domain.Card) error
	AppendReviewLog(ctx context.Context, userID string, log domain.ReviewLog) error
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIdleTimeout sets how long a session may go without activity before
// Run ends it. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) { s.idleTimeout = d }
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) { s.sweepInterval = d }
}

type learner struct {
	mu       sync.Mutex
	mgr      *session.Manager
	lastSeen time.Time
	removed  bool // dropped from the registry by ExpireIdle
}

// Service owns the study sessions of every learner.
type Service struct {
	store         Store
	clock         clock.Clock
	idleTimeout   time.Duration
	sweepInterval time.Duration

	mu       sync.Mutex
	learners map[string]*learner

	// testHookAfterLookup runs between finding a learner and locking it.
	testHookAfterLookup func()
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		clock:         clock.System{},
		idleTimeout:   DefaultIdleTimeout,
		sweepInterval: DefaultSweepInterval,
		learners:      make(map[string]*learner),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) learner(userID string, create bool) *learner {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.learners[userID]
	if !ok && create {
		l = &learner{}
		s.learners[userID] = l
	}
	return l
}

// acquire returns the learner's registered entry, locked. An entry that
// ExpireIdle removed between lookup and lock is discarded and looked up again.
func (s *Service) acquire(userID string) *learner {
	for {
		l := s.learner(userID, true)
		if s.testHookAfterLookup != nil {
			s.testHookAfterLookup()
		}
		l.mu.Lock()
		if !l.removed {
			return l
		}
		l.mu.Unlock()
	}
}

// existing returns the learner's registered entry, locked, or nil.
func (s *Service) existing(userID string) *learner {
	l := s.learner(userID, false)
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.removed {
		l.mu.Unlock()
		return nil
	}
	return l
}

// Start loads the learner's cards and opens a session over the due cards
// matching f.
func (s *Service) Start(ctx context.Context, userID string, f due.Filter) (int, error) {
	l := s.acquire(userID)
	defer l.mu.Unlock()

	if l.mgr != nil && l.mgr.State() == session.Active {
		return 0, fmt.Errorf("start: %w: learner %s already has session %s", session.ErrInvalidSessionState, userID, l.mgr.ID())
	}

	cards, err := s.store.LoadAllCards(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("start: %w", err)
	}
	mgr := session.NewManager(deck.New(cards), session.WithClock(s.clock))
	n, err := mgr.Start(f)
	if err != nil {
		return 0, err
	}
	l.mgr = mgr
	l.lastSeen = s.clock.Now()

	slog.Info("study session started", "user", userID, "session", mgr.ID(), "cards", n)
	return n, nil
}

// Current returns the learner's current card and progress.
func (s *Service) Current(userID string) (domain.Card, session.Progress, bool) {
	l := s.existing(userID)
	if l == nil {
		return domain.Card{}, session.Progress{}, false
	}
	defer l.mu.Unlock()
	if l.mgr == nil {
		return domain.Card{}, session.Progress{}, false
	}
	l.lastSeen = s.clock.Now()
	card, ok := l.mgr.Current()
	return card, l.mgr.Progress(), ok
}

// Active reports whether the learner has an open session.
func (s *Service) Active(userID string) bool {
	l := s.existing(userID)
	if l == nil {
		return false
	}
	defer l.mu.Unlock()
	return l.mgr != nil && l.mgr.State() == session.Active
}

// Review rates the learner's current card and persists the result. If
// persisting fails the rating still stands in the session and the error is
// returned.
func (s *Service) Review(ctx context.Context, userID string, rating domain.Rating) (session.ReviewResult, error) {
	l := s.existing(userID)
	if l == nil {
		return session.ReviewResult{}, fmt.Errorf("review: %w: learner %s has no session", session.ErrInvalidSessionState, userID)
	}
	defer l.mu.Unlock()
	if l.mgr == nil {
		return session.ReviewResult{}, fmt.Errorf("review: %w: learner %s has no session", session.ErrInvalidSessionState, userID)
	}

	res, err := l.mgr.Review(rating)
	if err != nil {
		return session.ReviewResult{}, err
	}
	l.lastSeen = s.clock.Now()

	if err := s.store.SaveCard(ctx, userID, res.Card); err != nil {
		slog.Error("Failed to save reviewed card", "user", userID, "card", res.Card.ID, "error", err)
		return res, fmt.Errorf("review: %w", err)
	}
	log := domain.ReviewLog{
		CardID:     res.Card.ID,
		SessionID:  res.SessionID,
		Rating:     rating,
		ReviewedAt: *res.Card.LastReviewed,
		Interval:   res.Card.Interval,
		EaseFactor: res.Card.EaseFactor,
	}
	if err := s.store.AppendReviewLog(ctx, userID, log); err != nil {
		slog.Warn("Failed to append review log", "user", userID, "card", res.Card.ID, "error", err)
	}

	if res.Summary != nil {
		logSummary(userID, "completed", *res.Summary)
	}
	return res, nil
}

// End closes the learner's session.
func (s *Service) End(userID string) (session.Summary, error) {
	l := s.existing(userID)
	if l == nil {
		return session.Summary{}, fmt.Errorf("end: %w: learner %s has no session", session.ErrInvalidSessionState, userID)
	}
	defer l.mu.Unlock()
	if l.mgr == nil {
		return session.Summary{}, fmt.Errorf("end: %w: learner %s has no session", session.ErrInvalidSessionState, userID)
	}
	summary, err := l.mgr.End()
	if err != nil {
		return session.Summary{}, err
	}
	logSummary(userID, "ended", summary)
	return summary, nil
}

// Overview summarizes the learner's whole deck.
func (s *Service) Overview(ctx context.Context, userID string) (due.Summary, error) {
	cards, err := s.store.LoadAllCards(ctx, userID)
	if err != nil {
		return due.Summary{}, fmt.Errorf("overview: %w", err)
	}
	return due.Summarize(cards, s.clock.Now()), nil
}

// ExpireIdle ends sessions idle for longer than the idle timeout and forgets
// learners without an open session. It returns the number of sessions ended.
func (s *Service) ExpireIdle() int {
	if s.idleTimeout <= 0 {
		return 0
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for userID, l := range s.learners {
		l.mu.Lock()
		if now.Sub(l.lastSeen) > s.idleTimeout {
			if l.mgr != nil && l.mgr.State() == session.Active {
				if summary, err := l.mgr.End(); err == nil {
					logSummary(userID, "expired", summary)
					expired++
				}
			}
			l.removed = true
			delete(s.learners, userID)
		}
		l.mu.Unlock()
	}
	return expired
}

// Run expires idle sessions every sweep interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.idleTimeout <= 0 || s.sweepInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.ExpireIdle(); n > 0 {
				slog.Debug("expired idle sessions", "count", n)
			}
		}
	}
}

func logSummary(userID, how string, s session.Summary) {
	slog.Info("study session "+how,
		"user", userID,
		"session", s.SessionID,
		"completed", s.Completed,
		"again", s.Stats.Again,
		"hard", s.Stats.Hard,
		"good", s.Stats.Good,
		"easy", s.Stats.Easy,
		"minutes", s.Minutes(),
	)
}
