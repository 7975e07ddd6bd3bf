package sm2

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/domain"
)

var t0 = time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)

func TestNextSequenceOfGood(t *testing.T) {
	card := domain.NewCard("c1", "q", "a", t0)

	wantIntervals := []int{1, 6, 15}
	now := t0
	for i, want := range wantIntervals {
		var err error
		card, err = Next(card, domain.Good, now)
		require.NoError(t, err)
		assert.Equal(t, want, card.Interval, "interval after review %d", i+1)
		assert.Equal(t, i+1, card.Repetitions)
		assert.Equal(t, 2.5, card.EaseFactor)
		assert.True(t, card.NextReview.Equal(now.Add(time.Duration(want)*24*time.Hour)), "next review %v", card.NextReview)
		now = card.NextReview
	}
}

func TestNextHard(t *testing.T) {
	card := domain.Card{ID: "c1", Interval: 10, EaseFactor: 2.0, Repetitions: 5}

	got, err := Next(card, domain.Hard, t0)
	require.NoError(t, err)

	assert.InDelta(t, 1.85, got.EaseFactor, 1e-9)
	assert.Equal(t, 9, got.Interval)
	assert.Equal(t, 6, got.Repetitions)
}

func TestNextTable(t *testing.T) {
	testCases := []struct {
		name     string
		card     domain.Card
		rating   domain.Rating
		interval int
		ease     float64
		reps     int
	}{
		{"again resets a mature card", domain.Card{Interval: 120, EaseFactor: 2.8, Repetitions: 9}, domain.Again, 1, 2.6, 0},
		{"again floors ease", domain.Card{Interval: 3, EaseFactor: 1.4, Repetitions: 2}, domain.Again, 1, 1.3, 0},
		{"hard floors ease", domain.Card{Interval: 2, EaseFactor: 1.35, Repetitions: 1}, domain.Hard, 2, 1.3, 2},
		{"hard never drops below one day", domain.Card{Interval: 1, EaseFactor: 2.5}, domain.Hard, 1, 2.35, 1},
		{"good second repetition", domain.Card{Interval: 1, EaseFactor: 2.5, Repetitions: 1}, domain.Good, 6, 2.5, 2},
		{"easy first repetition", domain.Card{Interval: 1, EaseFactor: 2.5}, domain.Easy, 4, 2.65, 1},
		{"easy second repetition", domain.Card{Interval: 4, EaseFactor: 2.65, Repetitions: 1}, domain.Easy, 6, 2.8, 2},
		{"easy grows geometrically", domain.Card{Interval: 6, EaseFactor: 2.8, Repetitions: 2}, domain.Easy, 23, 2.95, 3},
		{"easy has no ceiling", domain.Card{Interval: 10, EaseFactor: 4.0, Repetitions: 7}, domain.Easy, 54, 4.15, 8},
		{"missing fields default", domain.Card{}, domain.Good, 1, 2.5, 1},
		{"ease below floor is lifted", domain.Card{Interval: 10, EaseFactor: 1.0, Repetitions: 4}, domain.Good, 13, 1.3, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.card, tc.rating, t0)
			require.NoError(t, err)
			assert.Equal(t, tc.interval, got.Interval, "interval")
			assert.InDelta(t, tc.ease, got.EaseFactor, 1e-9, "ease")
			assert.Equal(t, tc.reps, got.Repetitions, "repetitions")
		})
	}
}

func TestNextInvariants(t *testing.T) {
	cards := []domain.Card{
		{},
		domain.NewCard("n", "q", "a", t0),
		{Interval: 1, EaseFactor: 1.3, Repetitions: 0},
		{Interval: 400, EaseFactor: 3.1, Repetitions: 12, TotalReviews: 30},
		{Interval: -4, EaseFactor: -1, Repetitions: -2, TotalReviews: 2},
	}
	for _, card := range cards {
		for _, r := range domain.Ratings {
			got, err := Next(card, r, t0)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, got.EaseFactor, MinEaseFactor)
			assert.GreaterOrEqual(t, got.Interval, 1)
			assert.Equal(t, max(0, card.TotalReviews)+1, got.TotalReviews)
			require.NotNil(t, got.LastReviewed)
			assert.True(t, got.LastReviewed.Equal(t0))
			if r == domain.Again {
				assert.Equal(t, 0, got.Repetitions)
				assert.Equal(t, 1, got.Interval)
			}
		}
	}
}

func TestNextInvalidRating(t *testing.T) {
	card := domain.Card{ID: "c1", Interval: 6, EaseFactor: 2.5, Repetitions: 2, Tags: []string{"x"}}

	for _, r := range []domain.Rating{0, 5, -1} {
		got, err := Next(card, r, t0)
		if !errors.Is(err, domain.ErrInvalidRating) {
			t.Fatalf("Next(%d) error = %v, want ErrInvalidRating", r, err)
		}
		if diff := cmp.Diff(card, got); diff != "" {
			t.Errorf("card changed on invalid rating (-want +got):\n%s", diff)
		}
	}
}

func TestNextDoesNotMutateInput(t *testing.T) {
	reviewed := t0.Add(-48 * time.Hour)
	card := domain.Card{ID: "c1", Interval: 2, EaseFactor: 2.5, Repetitions: 1, Tags: []string{"go"}, LastReviewed: &reviewed}
	before := card.Clone()

	_, err := Next(card, domain.Easy, t0)
	require.NoError(t, err)

	if diff := cmp.Diff(before, card); diff != "" {
		t.Errorf("input card mutated (-before +after):\n%s", diff)
	}
}

func TestNextDueDateUsesUTC(t *testing.T) {
	// 2026-03-08 is the US spring-forward date.
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, ny)

	got := NextDueDate(now, 2)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 48*time.Hour, got.Sub(now))
}

func TestNextHugeIntervals(t *testing.T) {
	last := t0.AddDate(0, 0, -40000)
	testCases := []struct {
		name string
		card domain.Card
	}{
		{name: "stored interval past duration range", card: domain.Card{ID: "c1", Interval: 40000, EaseFactor: 2.5, Repetitions: 12, LastReviewed: &last, NextReview: t0}},
		{name: "interval near duration limit", card: domain.Card{ID: "c2", Interval: 106751, EaseFactor: 1.3, Repetitions: 5, LastReviewed: &last, NextReview: t0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.card, domain.Easy, t0)
			require.NoError(t, err)
			assert.Greater(t, got.Interval, tc.card.Interval)
			assert.True(t, got.NextReview.After(t0), "next review %s is not after %s", got.NextReview, t0)
			assert.True(t, got.NextReview.Equal(t0.AddDate(0, 0, got.Interval)))
		})
	}
}

func TestRepeatedEasyStaysInFuture(t *testing.T) {
	card := domain.NewCard("c1", "q", "a", t0)
	now := t0
	for i := range 10 {
		var err error
		card, err = Next(card, domain.Easy, now)
		require.NoError(t, err)
		require.True(t, card.NextReview.After(now), "easy #%d: interval %d due %s", i+1, card.Interval, card.NextReview)
		assert.True(t, card.NextReview.Equal(now.AddDate(0, 0, card.Interval)))
	}
}

func TestPreview(t *testing.T) {
	card := domain.NewCard("c1", "q", "a", t0)
	preview := Preview(card, t0)

	require.Len(t, preview, 4)
	assert.Equal(t, 1, preview[domain.Again].Interval)
	assert.Equal(t, 1, preview[domain.Hard].Interval)
	assert.Equal(t, 1, preview[domain.Good].Interval)
	assert.Equal(t, 4, preview[domain.Easy].Interval)
	assert.True(t, card.IsNew(), "Preview must not modify the card")
}
