// Package session runs one learner's study session over a card collection.
//
// A Manager is either Idle or Active. Start snapshots the due set, Review
// rates the card at the head of the queue and End closes the session. The
// session ends on its own once the queue is empty.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/conorfennell/knoldeck/internal/clock"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/due"
	"github.com/conorfennell/knoldeck/internal/sm2"
)

var (
	// ErrInvalidSessionState is returned for Review or End on an idle
	// session, Start on an active one and Review with nothing left to rate.
	ErrInvalidSessionState = errors.New("invalid session state")

	// ErrUnknownCard is returned when the queued card has been removed from
	// the collection since the session started.
	ErrUnknownCard = errors.New("card not in collection")
)

// Collection is the caller-owned card set. The manager reads the due set from
// it and writes every rated card back by ID.
type Collection interface {
	All() []domain.Card
	Get(id string) (domain.Card, bool)
	Put(card domain.Card)
}

type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Stats counts applied ratings by kind.
type Stats struct {
	Again int `json:"again"`
	Hard  int `json:"hard"`
	Good  int `json:"good"`
	Easy  int `json:"easy"`
}

func (s *Stats) add(r domain.Rating) {
	switch r {
	case domain.Again:
		s.Again++
	case domain.Hard:
		s.Hard++
	case domain.Good:
		s.Good++
	case domain.Easy:
		s.Easy++
	}
}

// Count returns the number of times r was applied.
func (s Stats) Count(r domain.Rating) int {
	switch r {
	case domain.Again:
		return s.Again
	case domain.Hard:
		return s.Hard
	case domain.Good:
		return s.Good
	case domain.Easy:
		return s.Easy
	}
	return 0
}

func (s Stats) Total() int {
	return s.Again + s.Hard + s.Good + s.Easy
}

// Progress is derived from the live queue and the length of the initial
// snapshot.
type Progress struct {
	Completed int
	Total     int
	Remaining int
}

// Summary describes a finished session.
type Summary struct {
	SessionID string
	Completed int
	Stats     Stats
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration // rounded to whole minutes
}

// Minutes returns the session length in whole minutes.
func (s Summary) Minutes() int {
	return int(s.Duration / time.Minute)
}

// ReviewResult is returned by Review.
type ReviewResult struct {
	SessionID string
	Card      domain.Card
	HasMore   bool
	Stats     Stats
	// Summary is set when this review emptied the queue and ended the session.
	Summary *Summary
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// Manager owns the lifecycle of one learner's study session. It is not safe
// for concurrent use; hosts serialize calls per learner.
type Manager struct {
	cards Collection
	clock clock.Clock

	state     State
	id        string
	queue     []string
	total     int
	completed int
	stats     Stats
	startTime time.Time
}

// NewManager returns an idle manager over cards.
func NewManager(cards Collection, opts ...Option) *Manager {
	m := &Manager{cards: cards, clock: clock.System{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() State { return m.state }

// ID returns the active session's ID, or "" when idle.
func (m *Manager) ID() string { return m.id }

// StartedAt returns when the active session started.
func (m *Manager) StartedAt() time.Time { return m.startTime }

// Start selects the due cards matching f and makes them the session queue.
// It returns the number of cards selected; zero is allowed.
func (m *Manager) Start(f due.Filter) (int, error) {
	if m.state != Idle {
		return 0, fmt.Errorf("start: %w: session %s is already active", ErrInvalidSessionState, m.id)
	}
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("start: %w", err)
	}

	now := m.clock.Now()
	selected := due.Select(m.cards.All(), f, now)

	m.queue = make([]string, len(selected))
	for i, c := range selected {
		m.queue[i] = c.ID
	}
	m.total = len(selected)
	m.completed = 0
	m.stats = Stats{}
	m.startTime = now
	m.id = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	m.state = Active
	return m.total, nil
}

// Current returns the card at the head of the queue.
func (m *Manager) Current() (domain.Card, bool) {
	if m.state != Active || len(m.queue) == 0 {
		return domain.Card{}, false
	}
	return m.cards.Get(m.queue[0])
}

// Stats returns the ratings applied so far in the active session.
func (m *Manager) Stats() Stats { return m.stats }

// Progress reports how far through the queue the session is.
func (m *Manager) Progress() Progress {
	return Progress{
		Completed: m.completed,
		Total:     m.total,
		Remaining: len(m.queue),
	}
}

// Review rates the current card, writes the rescheduled card back to the
// collection and advances the queue. Nothing changes when an error is
// returned.
func (m *Manager) Review(rating domain.Rating) (ReviewResult, error) {
	if m.state != Active {
		return ReviewResult{}, fmt.Errorf("review: %w: no active session", ErrInvalidSessionState)
	}
	if len(m.queue) == 0 {
		return ReviewResult{}, fmt.Errorf("review: %w: no cards left in session %s", ErrInvalidSessionState, m.id)
	}
	if !rating.IsValid() {
		return ReviewResult{}, fmt.Errorf("review: %w: %d", domain.ErrInvalidRating, int(rating))
	}

	id := m.queue[0]
	card, ok := m.cards.Get(id)
	if !ok {
		return ReviewResult{}, fmt.Errorf("review: %w: %s", ErrUnknownCard, id)
	}
	updated, err := sm2.Next(card, rating, m.clock.Now())
	if err != nil {
		return ReviewResult{}, fmt.Errorf("review: %w", err)
	}

	m.cards.Put(updated)
	m.stats.add(rating)
	m.completed++
	m.queue = m.queue[1:]

	res := ReviewResult{
		SessionID: m.id,
		Card:      updated,
		HasMore:   len(m.queue) > 0,
		Stats:     m.stats,
	}
	if !res.HasMore {
		summary, _ := m.End()
		res.Summary = &summary
	}
	return res, nil
}

// End closes the active session and returns what it accomplished. On an idle
// session it changes nothing and returns ErrInvalidSessionState.
func (m *Manager) End() (Summary, error) {
	if m.state != Active {
		return Summary{}, fmt.Errorf("end: %w: no active session", ErrInvalidSessionState)
	}
	ended := m.clock.Now()
	summary := Summary{
		SessionID: m.id,
		Completed: m.completed,
		Stats:     m.stats,
		StartedAt: m.startTime,
		EndedAt:   ended,
		Duration:  max(0, ended.Sub(m.startTime)).Round(time.Minute),
	}

	m.state = Idle
	m.id = ""
	m.queue = nil
	m.total = 0
	m.completed = 0
	m.stats = Stats{}
	m.startTime = time.Time{}
	return summary, nil
}
