// Package due selects and orders the cards eligible for review.
package due

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/sm2"
)

// Status narrows a selection by learning stage.
type Status string

const (
	StatusAll      Status = "all"
	StatusNew      Status = "new"
	StatusLearning Status = "learning"
	StatusMature   Status = "mature"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Filter is a conjunctive card filter. Empty fields match everything.
type Filter struct {
	Category string
	Level    string
	Status   Status `validate:"omitempty,oneof=all new learning mature"`
	Tag      string
	Limit    int `validate:"gte=0"` // 0 means unbounded
}

// Validate reports an unknown status or a negative limit.
func (f Filter) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	return nil
}

// Match reports whether card passes every set field of f.
func (f Filter) Match(card domain.Card) bool {
	if f.Category != "" && card.Category != f.Category {
		return false
	}
	if f.Level != "" && card.Level != f.Level {
		return false
	}
	if f.Tag != "" && !card.HasTag(f.Tag) {
		return false
	}
	switch f.Status {
	case StatusNew:
		return card.IsNew()
	case StatusLearning:
		return !card.IsNew() && card.Interval < sm2.MatureInterval
	case StatusMature:
		return card.Interval >= sm2.MatureInterval
	}
	return true
}

// IsDue reports whether card should be reviewed at now. Never-reviewed cards
// are always due.
func IsDue(card domain.Card, now time.Time) bool {
	return card.IsNew() || !card.NextReview.After(now)
}

// Select returns the due cards matching f, new cards first and then the most
// overdue. The input slice is not reordered.
func Select(cards []domain.Card, f Filter, now time.Time) []domain.Card {
	var out []domain.Card
	for _, c := range cards {
		if f.Match(c) && IsDue(c, now) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, compare)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func compare(a, b domain.Card) int {
	an, bn := unscheduled(a), unscheduled(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	return a.NextReview.Compare(b.NextReview)
}

func unscheduled(c domain.Card) bool {
	return c.IsNew() || c.NextReview.IsZero()
}

// Summary counts a deck by learning stage.
type Summary struct {
	Total    int
	New      int
	Learning int
	Mature   int
	Due      int
}

// Summarize tallies cards at now.
func Summarize(cards []domain.Card, now time.Time) Summary {
	var s Summary
	for _, c := range cards {
		s.Total++
		switch {
		case c.IsNew():
			s.New++
		case c.Interval >= sm2.MatureInterval:
			s.Mature++
		default:
			s.Learning++
		}
		if IsDue(c, now) {
			s.Due++
		}
	}
	return s
}
