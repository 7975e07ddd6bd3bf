// Package sm2 computes a card's next scheduling state with an SM-2 variant.
//
// Every function here is pure: cards are taken and returned by value and the
// caller supplies the current time.
package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
)

const (
	DefaultInterval   = 1
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3

	// MatureInterval is the interval, in days, from which a card counts as mature.
	MatureInterval = 21

	againEasePenalty = 0.2
	hardEasePenalty  = 0.15
	easyEaseBonus    = 0.15
	hardIntervalMul  = 0.85
	easyIntervalMul  = 1.3
)

// Next returns the card as it stands after being rated at now.
// For an invalid rating the card is returned unchanged along with an error
// wrapping domain.ErrInvalidRating.
func Next(card domain.Card, rating domain.Rating, now time.Time) (domain.Card, error) {
	if !rating.IsValid() {
		return card, fmt.Errorf("sm2: %w: %d", domain.ErrInvalidRating, int(rating))
	}

	interval, ease, reps := normalize(card)

	switch rating {
	case domain.Again:
		reps = 0
		ease = math.Max(MinEaseFactor, ease-againEasePenalty)
		interval = 1
	case domain.Hard:
		reps++
		ease = math.Max(MinEaseFactor, ease-hardEasePenalty)
		interval = max(1, round(float64(interval)*hardIntervalMul))
	case domain.Good:
		reps++
		switch reps {
		case 1:
			interval = 1
		case 2:
			interval = 6
		default:
			interval = round(float64(interval) * ease)
		}
	case domain.Easy:
		reps++
		ease += easyEaseBonus
		switch reps {
		case 1:
			interval = 4
		case 2:
			interval = 6
		default:
			interval = round(float64(interval) * ease * easyIntervalMul)
		}
	}

	reviewed := now.UTC()
	out := card.Clone()
	out.Interval = max(1, interval)
	out.EaseFactor = ease
	out.Repetitions = reps
	out.TotalReviews = max(0, card.TotalReviews) + 1
	out.LastReviewed = &reviewed
	out.NextReview = NextDueDate(reviewed, out.Interval)
	return out, nil
}

// Preview returns the outcome of each rating without committing any of them.
func Preview(card domain.Card, now time.Time) map[domain.Rating]domain.Card {
	out := make(map[domain.Rating]domain.Card, len(domain.Ratings))
	for _, r := range domain.Ratings {
		c, _ := Next(card, r, now)
		out[r] = c
	}
	return out
}

// NextDueDate adds days calendar days to now in UTC, so daylight-saving
// transitions in the learner's zone never shift a due date. Calendar
// arithmetic keeps intervals far beyond a time.Duration's range correct.
func NextDueDate(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, days)
}

// normalize substitutes new-card defaults for missing or out-of-range values.
func normalize(card domain.Card) (interval int, ease float64, reps int) {
	interval = card.Interval
	if interval < 1 {
		interval = DefaultInterval
	}
	ease = card.EaseFactor
	switch {
	case ease <= 0 || math.IsNaN(ease):
		ease = DefaultEaseFactor
	case ease < MinEaseFactor:
		ease = MinEaseFactor
	}
	reps = max(0, card.Repetitions)
	return interval, ease, reps
}

func round(x float64) int {
	return int(math.Round(x))
}
