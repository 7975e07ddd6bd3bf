package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/clock"
	"github.com/conorfennell/knoldeck/internal/deck"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/due"
)

var t0 = time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)

func scheduled(id string, next time.Time) domain.Card {
	last := next.Add(-24 * time.Hour)
	return domain.Card{ID: id, Interval: 1, EaseFactor: 2.5, Repetitions: 1, TotalReviews: 1, LastReviewed: &last, NextReview: next}
}

func newTestManager(t *testing.T, cards ...domain.Card) (*Manager, *deck.Deck, *clock.Manual) {
	t.Helper()
	d := deck.New(cards)
	clk := clock.NewManual(t0)
	return NewManager(d, WithClock(clk)), d, clk
}

func TestSessionLifecycle(t *testing.T) {
	m, d, clk := newTestManager(t,
		scheduled("c", t0.Add(-24*time.Hour)),
		domain.NewCard("a", "q", "a", t0),
		scheduled("b", t0.Add(-48*time.Hour)),
		scheduled("later", t0.Add(24*time.Hour)),
	)

	n, err := m.Start(due.Filter{})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, Active, m.State())
	assert.NotEmpty(t, m.ID())
	assert.Equal(t, Progress{Completed: 0, Total: 3, Remaining: 3}, m.Progress())

	var served []string
	ratings := []domain.Rating{domain.Good, domain.Again, domain.Easy}
	for i, r := range ratings {
		cur, ok := m.Current()
		require.True(t, ok)
		served = append(served, cur.ID)

		clk.Advance(4 * time.Minute)
		res, err := m.Review(r)
		require.NoError(t, err)
		assert.Equal(t, cur.ID, res.Card.ID)
		assert.Equal(t, cur.TotalReviews+1, res.Card.TotalReviews)
		assert.Equal(t, i < 2, res.HasMore)

		stored, _ := d.Get(cur.ID)
		if diff := cmp.Diff(res.Card, stored); diff != "" {
			t.Errorf("collection not updated (-want +got):\n%s", diff)
		}
		if i < 2 {
			assert.Nil(t, res.Summary)
		}
	}

	assert.Equal(t, []string{"a", "b", "c"}, served)
	assert.Equal(t, Idle, m.State(), "session must end when the queue empties")

	_, ok := m.Current()
	assert.False(t, ok)

	summary, err := m.End()
	assert.True(t, errors.Is(err, ErrInvalidSessionState))
	assert.Equal(t, Summary{}, summary, "End after auto-end must not report new stats")
}

func TestReviewReturnsSummaryOnLastCard(t *testing.T) {
	m, _, clk := newTestManager(t, domain.NewCard("a", "q", "a", t0))

	_, err := m.Start(due.Filter{})
	require.NoError(t, err)
	id := m.ID()

	clk.Advance(7*time.Minute + 40*time.Second)
	res, err := m.Review(domain.Hard)
	require.NoError(t, err)
	require.NotNil(t, res.Summary)

	assert.Equal(t, id, res.Summary.SessionID)
	assert.Equal(t, 1, res.Summary.Completed)
	assert.Equal(t, Stats{Hard: 1}, res.Summary.Stats)
	assert.Equal(t, 8*time.Minute, res.Summary.Duration)
	assert.Equal(t, 8, res.Summary.Minutes())
}

func TestReviewWhileIdle(t *testing.T) {
	m, d, _ := newTestManager(t, domain.NewCard("a", "q", "a", t0))
	before := d.All()

	_, err := m.Review(domain.Good)
	require.ErrorIs(t, err, ErrInvalidSessionState)

	if diff := cmp.Diff(before, d.All()); diff != "" {
		t.Errorf("cards changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, Stats{}, m.Stats())
}

func TestStartWhileActive(t *testing.T) {
	m, _, _ := newTestManager(t, domain.NewCard("a", "q", "a", t0), domain.NewCard("b", "q", "a", t0))

	_, err := m.Start(due.Filter{})
	require.NoError(t, err)
	_, err = m.Review(domain.Good)
	require.NoError(t, err)
	id := m.ID()

	_, err = m.Start(due.Filter{})
	require.ErrorIs(t, err, ErrInvalidSessionState)
	assert.Equal(t, id, m.ID())
	assert.Equal(t, Progress{Completed: 1, Total: 2, Remaining: 1}, m.Progress())
}

func TestReviewInvalidRating(t *testing.T) {
	m, d, _ := newTestManager(t, domain.NewCard("a", "q", "a", t0))
	_, err := m.Start(due.Filter{})
	require.NoError(t, err)

	_, err = m.Review(domain.Rating(7))
	require.ErrorIs(t, err, domain.ErrInvalidRating)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
	assert.True(t, cur.IsNew())
	assert.Equal(t, Progress{Completed: 0, Total: 1, Remaining: 1}, m.Progress())
	stored, _ := d.Get("a")
	assert.Equal(t, 0, stored.TotalReviews)
}

func TestEndExplicitly(t *testing.T) {
	m, _, clk := newTestManager(t,
		domain.NewCard("a", "q", "a", t0),
		domain.NewCard("b", "q", "a", t0),
	)
	_, err := m.Start(due.Filter{})
	require.NoError(t, err)
	_, err = m.Review(domain.Again)
	require.NoError(t, err)

	clk.Advance(90 * time.Second)
	summary, err := m.End()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, Stats{Again: 1}, summary.Stats)
	assert.Equal(t, 2*time.Minute, summary.Duration)
	assert.Equal(t, t0, summary.StartedAt)

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, Progress{}, m.Progress())
	assert.Equal(t, Stats{}, m.Stats())
	assert.Empty(t, m.ID())
}

func TestStartWithNothingDue(t *testing.T) {
	m, _, _ := newTestManager(t, scheduled("later", t0.Add(time.Hour)))

	n, err := m.Start(due.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, Active, m.State())

	_, err = m.Review(domain.Good)
	require.ErrorIs(t, err, ErrInvalidSessionState)

	summary, err := m.End()
	require.NoError(t, err)
	assert.Zero(t, summary.Completed)
}

func TestStartRejectsInvalidFilter(t *testing.T) {
	m, _, _ := newTestManager(t, domain.NewCard("a", "q", "a", t0))

	_, err := m.Start(due.Filter{Status: "someday"})
	require.Error(t, err)
	assert.Equal(t, Idle, m.State())
}

func TestStartAppliesFilter(t *testing.T) {
	a := domain.NewCard("a", "q", "a", t0)
	a.Category = "kanji"
	b := domain.NewCard("b", "q", "a", t0)
	b.Category = "grammar"
	m, _, _ := newTestManager(t, a, b)

	n, err := m.Start(due.Filter{Category: "grammar"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	cur, _ := m.Current()
	assert.Equal(t, "b", cur.ID)
}

func TestSnapshotIsNotAffectedByCollectionChanges(t *testing.T) {
	m, d, _ := newTestManager(t, domain.NewCard("a", "q", "a", t0))
	_, err := m.Start(due.Filter{})
	require.NoError(t, err)

	d.Put(domain.NewCard("b", "q", "a", t0))
	assert.Equal(t, 1, m.Progress().Total)
}

func TestReviewUnknownCard(t *testing.T) {
	m := NewManager(&shrinkingCollection{Deck: deck.New([]domain.Card{domain.NewCard("a", "q", "a", t0)})}, WithClock(clock.NewManual(t0)))
	_, err := m.Start(due.Filter{})
	require.NoError(t, err)

	_, err = m.Review(domain.Good)
	require.ErrorIs(t, err, ErrUnknownCard)
	assert.Equal(t, 1, m.Progress().Remaining)
}

// shrinkingCollection forgets every card after listing them.
type shrinkingCollection struct {
	*deck.Deck
}

func (s *shrinkingCollection) Get(string) (domain.Card, bool) { return domain.Card{}, false }

func TestStats(t *testing.T) {
	var s Stats
	for _, r := range []domain.Rating{domain.Good, domain.Good, domain.Easy, domain.Again} {
		s.add(r)
	}
	assert.Equal(t, 2, s.Count(domain.Good))
	assert.Equal(t, 0, s.Count(domain.Hard))
	assert.Equal(t, 4, s.Total())
}
